package stateflow

import "errors"

// Definition errors are surfaced at load time, never partially.
var (
	// ErrWorkflowNotFound indicates the named workflow is absent from all
	// configured definition sources.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrRunNotFound indicates no persisted run exists with the given ID
	ErrRunNotFound = errors.New("run not found")
)

// Engine errors always drive the run to a failed terminal state. They are
// not recoverable by workflow authors via on_failure transitions.
var (
	// ErrUndefinedVariable indicates a condition or expression referenced a
	// variable not present in the run's variable context.
	ErrUndefinedVariable = errors.New("undefined variable")

	// ErrNestingLimitExceeded indicates sub-workflow recursion went past the
	// configured maximum depth.
	ErrNestingLimitExceeded = errors.New("nesting limit exceeded")

	// ErrNoMatchingTransition indicates a choice state had no matching
	// expression transition and no default.
	ErrNoMatchingTransition = errors.New("no matching transition")

	// ErrStorageUnavailable indicates the run store could not persist a
	// checkpoint.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
