package stateflow

import "context"

// RunStatus indicates a workflow run's execution status
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal indicates whether the status is a terminal state
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// FailureKind distinguishes runs that failed because the workflow said so
// from runs the engine could not execute. The former is actionable by
// editing the workflow, the latter by fixing environment or configuration.
type FailureKind string

const (
	FailureKindNone     FailureKind = ""
	FailureKindWorkflow FailureKind = "workflow"
	FailureKindEngine   FailureKind = "engine"
)

// RunOutcome is returned to callers when a run reaches a terminal state
type RunOutcome struct {
	RunID       string      `json:"run_id"`
	Workflow    string      `json:"workflow"`
	Status      RunStatus   `json:"status"`
	Output      any         `json:"output,omitempty"`
	FailureKind FailureKind `json:"failure_kind,omitempty"`
	Reason      string      `json:"reason,omitempty"`
}

// PromptService renders a named prompt with the given variable bindings
// and executes it against an agent, returning the response text. The
// implementation is external to this engine (an LLM agent, typically).
type PromptService interface {
	RenderAndExecute(ctx context.Context, name string, bindings map[string]any) (string, error)
}

// ShellResult captures the result of running a shell command
type ShellResult struct {
	ExitStatus int    `json:"exit_status"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

// ShellService runs a shell command and reports its exit status and output.
// A non-zero exit status is returned in the result, not as an error; an
// error indicates the command could not be started at all.
type ShellService interface {
	Run(ctx context.Context, command string) (*ShellResult, error)
}

// SignalSource blocks until an external signal arrives for the given run,
// or the context is done. Used by wait-for-input steps. The prompt text is
// surfaced to whatever UI collects the input.
type SignalSource interface {
	AwaitSignal(ctx context.Context, runID string, prompt string) (string, error)
}

// PromptServiceFunc adapts a function to the PromptService interface
type PromptServiceFunc func(ctx context.Context, name string, bindings map[string]any) (string, error)

func (f PromptServiceFunc) RenderAndExecute(ctx context.Context, name string, bindings map[string]any) (string, error) {
	return f(ctx, name, bindings)
}

// ShellServiceFunc adapts a function to the ShellService interface
type ShellServiceFunc func(ctx context.Context, command string) (*ShellResult, error)

func (f ShellServiceFunc) Run(ctx context.Context, command string) (*ShellResult, error) {
	return f(ctx, command)
}
