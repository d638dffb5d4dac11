package workflow

import (
	"fmt"
	"strings"
)

// ParseError describes action text that matched a recognized verb but was
// malformed. The offending span is carried for diagnostics.
type ParseError struct {
	Text   string
	Span   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid action %q: %s (at %q)", e.Text, e.Reason, e.Span)
}

// ParseAction converts a free-text action description into a structured
// Action. The grammar recognizes a fixed vocabulary of verbs; text that
// matches no verb becomes a log action carrying the raw text, so workflow
// authoring stays forgiving. This fallback is a deliberate policy, not an
// omission. Parsing is pure and idempotent.
func ParseAction(text string) (*Action, error) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, "execute prompt "):
		rest := trimmed[len("execute prompt "):]
		name, bindings, err := parseNameAndBindings(trimmed, rest)
		if err != nil {
			return nil, err
		}
		return &Action{Type: ActionTypePrompt, Name: name, Bindings: bindings}, nil

	case strings.HasPrefix(lower, "run shell:"):
		command := strings.TrimSpace(trimmed[len("run shell:"):])
		if command == "" {
			return nil, &ParseError{Text: trimmed, Span: trimmed, Reason: "missing shell command"}
		}
		return &Action{Type: ActionTypeShell, Command: command}, nil

	case strings.HasPrefix(lower, "run workflow "):
		rest := trimmed[len("run workflow "):]
		name, bindings, err := parseNameAndBindings(trimmed, rest)
		if err != nil {
			return nil, err
		}
		return &Action{Type: ActionTypeSubWorkflow, Name: name, Bindings: bindings}, nil

	case strings.HasPrefix(lower, "set variable "):
		rest := trimmed[len("set variable "):]
		idx := strings.Index(rest, " to ")
		if idx < 0 {
			return nil, &ParseError{Text: trimmed, Span: rest, Reason: "expected \"to\" after variable name"}
		}
		name := strings.TrimSpace(rest[:idx])
		expr := strings.TrimSpace(rest[idx+len(" to "):])
		if name == "" || strings.ContainsAny(name, " \t") {
			return nil, &ParseError{Text: trimmed, Span: rest[:idx], Reason: "invalid variable name"}
		}
		if expr == "" {
			return nil, &ParseError{Text: trimmed, Span: rest, Reason: "missing expression"}
		}
		return &Action{Type: ActionTypeSetVariable, Variable: name, Expression: expr}, nil

	case strings.HasPrefix(lower, "wait for user input:"):
		prompt := strings.TrimSpace(trimmed[len("wait for user input:"):])
		return &Action{Type: ActionTypeWaitForInput, Prompt: prompt}, nil
	}

	if level, message, ok := parseLogAction(trimmed, lower); ok {
		return &Action{Type: ActionTypeLog, Level: level, Message: message}, nil
	}

	// Unrecognized text defaults to an informational log of the raw text
	return &Action{Type: ActionTypeLog, Level: LogLevelInfo, Message: trimmed}, nil
}

// parseNameAndBindings splits "NAME [with k=v, k2=v2]" into its parts
func parseNameAndBindings(text, rest string) (string, map[string]string, error) {
	name := strings.TrimSpace(rest)
	var bindingText string

	lower := strings.ToLower(rest)
	if idx := strings.Index(lower, " with "); idx >= 0 {
		name = strings.TrimSpace(rest[:idx])
		bindingText = strings.TrimSpace(rest[idx+len(" with "):])
	}

	if name == "" || strings.ContainsAny(name, " \t") {
		return "", nil, &ParseError{Text: text, Span: rest, Reason: "invalid name"}
	}
	if bindingText == "" {
		return name, nil, nil
	}

	bindings := make(map[string]string)
	for _, pair := range strings.Split(bindingText, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return "", nil, &ParseError{Text: text, Span: pair, Reason: "bindings must be key=value pairs"}
		}
		bindings[key] = strings.TrimSpace(value)
	}
	return name, bindings, nil
}

// parseLogAction recognizes "Log LEVEL: MESSAGE" for the known levels
func parseLogAction(trimmed, lower string) (LogLevel, string, bool) {
	if !strings.HasPrefix(lower, "log ") {
		return "", "", false
	}
	rest := trimmed[len("log "):]
	levelText, message, found := strings.Cut(rest, ":")
	if !found {
		return "", "", false
	}
	level := LogLevel(strings.ToLower(strings.TrimSpace(levelText)))
	switch level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return level, strings.TrimSpace(message), true
	}
	return "", "", false
}
