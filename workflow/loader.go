package workflow

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// DefinitionError describes a malformed workflow definition file
type DefinitionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DefinitionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid workflow definition %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid workflow definition: %s", e.Reason)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// definitionFile is the on-disk YAML document describing one workflow:
// front matter (name, description) plus the state diagram as states and
// transitions.
type definitionFile struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Initial     string                 `yaml:"initial,omitempty"`
	States      []definitionState      `yaml:"states"`
	Transitions []definitionTransition `yaml:"transitions,omitempty"`
}

type definitionState struct {
	ID           string `yaml:"id"`
	Type         string `yaml:"type,omitempty"`
	Action       string `yaml:"action,omitempty"`
	Compensation string `yaml:"compensation,omitempty"`
}

type definitionTransition struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	When string `yaml:"when,omitempty"`
}

// ParseDefinition parses a workflow definition document. The `when` field
// of a transition is empty for unconditional edges, the keywords
// on_success / on_failure for outcome-matched edges, and any other text is
// treated as an expression.
func ParseDefinition(data []byte) (*Workflow, error) {
	var file definitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &DefinitionError{Reason: "not valid YAML", Err: err}
	}
	if file.Name == "" {
		return nil, &DefinitionError{Reason: "missing workflow name"}
	}

	states := make([]*State, 0, len(file.States))
	for _, fs := range file.States {
		state, err := NewState(StateOptions{
			ID:           fs.ID,
			Type:         StateType(fs.Type),
			ActionText:   fs.Action,
			Compensation: fs.Compensation,
		})
		if err != nil {
			return nil, &DefinitionError{
				Reason: fmt.Sprintf("state %q: %s", fs.ID, err),
				Err:    err,
			}
		}
		states = append(states, state)
	}

	transitions := make([]*Transition, 0, len(file.Transitions))
	for _, ft := range file.Transitions {
		transitions = append(transitions, &Transition{
			From:      ft.From,
			To:        ft.To,
			Condition: parseWhen(ft.When),
		})
	}

	w, err := New(Options{
		Name:        file.Name,
		Description: file.Description,
		States:      states,
		Transitions: transitions,
		Initial:     file.Initial,
	})
	if err != nil {
		return nil, &DefinitionError{Reason: err.Error(), Err: err}
	}
	return w, nil
}

func parseWhen(when string) Condition {
	switch when {
	case "":
		return Always()
	case "always":
		return Always()
	case "on_success":
		return OnSuccess()
	case "on_failure":
		return OnFailure()
	default:
		return Expression(when)
	}
}
