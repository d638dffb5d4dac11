package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// ActionType identifies one of the closed set of executable action variants
type ActionType string

const (
	ActionTypePrompt       ActionType = "prompt"
	ActionTypeShell        ActionType = "shell"
	ActionTypeSetVariable  ActionType = "set_variable"
	ActionTypeWaitForInput ActionType = "wait_for_input"
	ActionTypeSubWorkflow  ActionType = "sub_workflow"
	ActionTypeLog          ActionType = "log"
)

// LogLevel is the severity attached to a log action
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Action is pure data describing a single operation a state performs on
// entry. Execution semantics live in the execution package. Exactly the
// fields relevant to the action's type are populated.
type Action struct {
	Type ActionType `json:"type"`

	// Prompt and SubWorkflow actions
	Name     string            `json:"name,omitempty"`
	Bindings map[string]string `json:"bindings,omitempty"`

	// Shell actions
	Command string `json:"command,omitempty"`

	// SetVariable actions
	Variable   string `json:"variable,omitempty"`
	Expression string `json:"expression,omitempty"`

	// WaitForInput actions
	Prompt string `json:"prompt,omitempty"`

	// Log actions
	Level   LogLevel `json:"level,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Describe renders the action back to its authoring text. It is the
// inverse of ParseAction: ParseAction(a.Describe()) yields an action
// structurally equal to a for every action the parser vocabulary covers.
func (a *Action) Describe() string {
	switch a.Type {
	case ActionTypePrompt:
		return "Execute prompt " + a.Name + describeBindings(a.Bindings)
	case ActionTypeShell:
		return "Run shell: " + a.Command
	case ActionTypeSetVariable:
		return fmt.Sprintf("Set variable %s to %s", a.Variable, a.Expression)
	case ActionTypeWaitForInput:
		return "Wait for user input: " + a.Prompt
	case ActionTypeSubWorkflow:
		return "Run workflow " + a.Name + describeBindings(a.Bindings)
	case ActionTypeLog:
		return fmt.Sprintf("Log %s: %s", a.Level, a.Message)
	}
	return ""
}

func describeBindings(bindings map[string]string) string {
	if len(bindings) == 0 {
		return ""
	}
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+bindings[name])
	}
	return " with " + strings.Join(pairs, ", ")
}
