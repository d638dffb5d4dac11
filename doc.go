// Package stateflow provides a workflow orchestration engine for
// long-running, resumable, nested state machines. Workflows are authored
// declaratively as graphs of states and transitions, with free-text action
// descriptions parsed into a closed set of executable actions (prompt
// execution, shell commands, variable assignment, user-input waits, and
// sub-workflow invocation).
//
// The core types are:
//
//   - [github.com/deepnoodle-ai/stateflow/workflow.Workflow] is the
//     immutable definition: states, transitions, and one initial state.
//   - [github.com/deepnoodle-ai/stateflow/workflow.Run] is a single
//     stateful execution instance, checkpointed to a RunStore after every
//     step so interrupted runs resume from persisted state.
//   - [github.com/deepnoodle-ai/stateflow/execution.Executor] drives runs:
//     it selects actions, evaluates transitions, enforces timeouts, and
//     recurses into sub-workflows with isolated variable contexts.
//
// External collaborators (LLM prompt execution, shell command execution,
// user-input signals) are consumed through the small interfaces defined in
// this package.
package stateflow
