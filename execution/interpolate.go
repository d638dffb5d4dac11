package execution

import (
	"fmt"
	"strings"
	"text/template"
)

// interpolate renders a Go text template against the run's variable
// snapshot. Missing keys are errors rather than "<no value>" so a typo in
// a command or message surfaces as an action failure.
func interpolate(name, text string, vars map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid %s template: %w", name, err)
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return buf.String(), nil
}
