package workflow

import (
	"time"

	"github.com/deepnoodle-ai/stateflow"
	"github.com/google/uuid"
)

// OutputsKey is the reserved variable under which per-state action
// outcomes are recorded, keyed by state id. Workflow expressions read it
// as `outputs["state_id"]`.
const OutputsKey = "outputs"

// StepOutcome records the result of executing one state's action
type StepOutcome struct {
	Success  bool   `json:"success"`
	Value    any    `json:"value,omitempty"`
	Error    string `json:"error,omitempty"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

// HistoryEntry records one visit to a state during a run
type HistoryEntry struct {
	StateID   string       `json:"state_id"`
	EnteredAt time.Time    `json:"entered_at"`
	ExitedAt  time.Time    `json:"exited_at,omitempty"`
	Outcome   *StepOutcome `json:"outcome,omitempty"`
}

// Run is a single stateful execution instance of a workflow. It is owned
// exclusively by one executor invocation at a time; between steps the run
// store is the durable owner via checkpoint writes.
type Run struct {
	ID           string                `json:"id"`
	WorkflowName string                `json:"workflow_name"`
	WorkflowHash string                `json:"workflow_hash,omitempty"`
	CurrentState string                `json:"current_state"`
	Status       stateflow.RunStatus   `json:"status"`
	FailureKind  stateflow.FailureKind `json:"failure_kind,omitempty"`
	Reason       string                `json:"reason,omitempty"`
	Variables    map[string]any        `json:"variables"`
	History      []HistoryEntry        `json:"history"`
	ParentRunID  string                `json:"parent_run_id,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// RunOptions configures a new run
type RunOptions struct {
	Workflow    *Workflow
	Inputs      map[string]any
	ParentRunID string
}

// NewRun creates a pending run positioned at the workflow's initial state.
// The variable context is seeded with a deep copy of the inputs, never a
// shared reference.
func NewRun(opts RunOptions) *Run {
	hash, _ := opts.Workflow.Hash()
	now := time.Now()
	variables := CopyVariables(opts.Inputs)
	variables[OutputsKey] = map[string]any{}
	return &Run{
		ID:           uuid.New().String(),
		WorkflowName: opts.Workflow.Name(),
		WorkflowHash: hash,
		CurrentState: opts.Workflow.Initial(),
		Status:       stateflow.RunStatusPending,
		Variables:    variables,
		ParentRunID:  opts.ParentRunID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SetOutput records a state's outcome value under the reserved outputs map
func (r *Run) SetOutput(stateID string, value any) {
	outputs, ok := r.Variables[OutputsKey].(map[string]any)
	if !ok {
		outputs = map[string]any{}
		r.Variables[OutputsKey] = outputs
	}
	outputs[stateID] = value
}

// Output returns a state's recorded outcome value
func (r *Run) Output(stateID string) (any, bool) {
	outputs, ok := r.Variables[OutputsKey].(map[string]any)
	if !ok {
		return nil, false
	}
	value, ok := outputs[stateID]
	return value, ok
}

// LastOutcome returns the most recent completed step outcome, if any
func (r *Run) LastOutcome() *StepOutcome {
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].Outcome != nil {
			return r.History[i].Outcome
		}
	}
	return nil
}

// Snapshot returns an immutable copy of the run's variables for
// side-effect-free expression evaluation.
func (r *Run) Snapshot() map[string]any {
	return CopyVariables(r.Variables)
}

// Clone deep-copies the run so a checkpoint write never aliases the
// executor's mutable state.
func (r *Run) Clone() *Run {
	dup := *r
	dup.Variables = CopyVariables(r.Variables)
	dup.History = make([]HistoryEntry, len(r.History))
	for i, entry := range r.History {
		dup.History[i] = entry
		if entry.Outcome != nil {
			outcome := *entry.Outcome
			dup.History[i].Outcome = &outcome
		}
	}
	return &dup
}

// Summary returns the caller-facing view of the run
func (r *Run) Summary() *RunSummary {
	return &RunSummary{
		RunID:        r.ID,
		WorkflowName: r.WorkflowName,
		CurrentState: r.CurrentState,
		Status:       r.Status,
		FailureKind:  r.FailureKind,
		Reason:       r.Reason,
		StepCount:    len(r.History),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// RunSummary is the condensed view of a run returned by status and list
// operations.
type RunSummary struct {
	RunID        string                `json:"run_id"`
	WorkflowName string                `json:"workflow_name"`
	CurrentState string                `json:"current_state"`
	Status       stateflow.RunStatus   `json:"status"`
	FailureKind  stateflow.FailureKind `json:"failure_kind,omitempty"`
	Reason       string                `json:"reason,omitempty"`
	StepCount    int                   `json:"step_count"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// CopyVariables deep-copies a variable context. Sub-workflow contexts are
// always fresh copies, never aliases, so sibling or repeated invocations
// cannot pollute each other's state.
func CopyVariables(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return CopyVariables(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
