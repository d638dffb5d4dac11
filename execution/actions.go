package execution

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/stateflow"
	"github.com/deepnoodle-ai/stateflow/workflow"
)

// executeAction runs the action attached to a state and produces a step
// outcome. Action-level failures (non-zero exits, timeouts, collaborator
// errors) become failure outcomes that transition evaluation can route;
// only failures of the engine itself are returned as errors.
func (e *Executor) executeAction(ctx context.Context, w *workflow.Workflow, run *workflow.Run, state *workflow.State, depth int) (*workflow.StepOutcome, error) {
	action := state.Action()
	if action == nil {
		// States without actions pass through
		return &workflow.StepOutcome{Success: true}, nil
	}
	if e.formatter != nil {
		e.formatter.PrintStepStart(state.ID(), action.Type)
	}

	switch action.Type {
	case workflow.ActionTypePrompt:
		return e.executePrompt(ctx, run, action)
	case workflow.ActionTypeShell:
		return e.executeShell(ctx, run, action)
	case workflow.ActionTypeSetVariable:
		return e.executeSetVariable(ctx, run, action), nil
	case workflow.ActionTypeWaitForInput:
		return e.executeWaitForInput(ctx, run, action)
	case workflow.ActionTypeSubWorkflow:
		return e.executeSubWorkflow(ctx, run, action, depth)
	case workflow.ActionTypeLog:
		return e.executeLog(run, action), nil
	}
	return nil, fmt.Errorf("unsupported action type %q in state %q", action.Type, state.ID())
}

// executePrompt delegates to the external rendering/agent collaborator,
// passing the full variable snapshot plus any explicit bindings.
func (e *Executor) executePrompt(ctx context.Context, run *workflow.Run, action *workflow.Action) (*workflow.StepOutcome, error) {
	if e.prompts == nil {
		return nil, fmt.Errorf("no prompt service configured")
	}
	snapshot := run.Snapshot()
	bindings, err := evaluateBindings(ctx, action.Bindings, snapshot)
	if err != nil {
		return failureOutcome(err), nil
	}
	for k, v := range snapshot {
		if _, bound := bindings[k]; !bound {
			bindings[k] = v
		}
	}

	actionCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	defer cancel()
	text, err := e.prompts.RenderAndExecute(actionCtx, action.Name, bindings)
	if err != nil {
		if timedOut(actionCtx, err) {
			return timeoutOutcome(), nil
		}
		return failureOutcome(err), nil
	}
	return &workflow.StepOutcome{Success: true, Value: text}, nil
}

// executeShell interpolates the command template from run variables and
// delegates to the shell collaborator. A non-zero exit status is a failure
// outcome, not a fatal error: the workflow author decides via on_failure
// transitions whether it is fatal.
func (e *Executor) executeShell(ctx context.Context, run *workflow.Run, action *workflow.Action) (*workflow.StepOutcome, error) {
	if e.shell == nil {
		return nil, fmt.Errorf("no shell service configured")
	}
	command, err := interpolate("command", action.Command, run.Snapshot())
	if err != nil {
		return failureOutcome(err), nil
	}

	actionCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	defer cancel()
	result, err := e.shell.Run(actionCtx, command)
	if err != nil {
		if timedOut(actionCtx, err) {
			return timeoutOutcome(), nil
		}
		return failureOutcome(err), nil
	}
	if result.ExitStatus != 0 {
		message := fmt.Sprintf("command exited with status %d", result.ExitStatus)
		if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
			message += ": " + stderr
		}
		return &workflow.StepOutcome{Error: message}, nil
	}
	return &workflow.StepOutcome{Success: true, Value: result.Stdout}, nil
}

// executeSetVariable evaluates the expression against a snapshot and
// writes the result into the run's variable context. Evaluation is pure
// and synchronous; the only failure mode is a bad expression, which the
// author can observe via an on_failure transition.
func (e *Executor) executeSetVariable(ctx context.Context, run *workflow.Run, action *workflow.Action) *workflow.StepOutcome {
	value, err := workflow.EvaluateValue(ctx, action.Expression, run.Snapshot())
	if err != nil {
		return failureOutcome(err)
	}
	run.Variables[action.Variable] = value
	return &workflow.StepOutcome{Success: true, Value: value}
}

// executeWaitForInput suspends until the signal source delivers input or
// the action timeout elapses. A timeout is a failure outcome with the
// timed-out flag set, never a distinct terminal run state.
func (e *Executor) executeWaitForInput(ctx context.Context, run *workflow.Run, action *workflow.Action) (*workflow.StepOutcome, error) {
	if e.signals == nil {
		return nil, fmt.Errorf("no signal source configured")
	}
	prompt, err := interpolate("prompt", action.Prompt, run.Snapshot())
	if err != nil {
		return failureOutcome(err), nil
	}

	actionCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	defer cancel()
	text, err := e.signals.AwaitSignal(actionCtx, run.ID, prompt)
	if err != nil {
		if timedOut(actionCtx, err) {
			return timeoutOutcome(), nil
		}
		return failureOutcome(err), nil
	}
	return &workflow.StepOutcome{Success: true, Value: text}, nil
}

// executeSubWorkflow resolves the named workflow and executes it to
// completion as a nested run. The child's variable context is seeded only
// from the explicit input bindings, deep-copied from evaluation results,
// never a reference into the parent's context; this is the isolation
// invariant that prevents state pollution between sibling or repeated
// invocations. Recursion depth is bounded by an explicit counter threaded
// through the call, so the limit failure is deterministic rather than a
// stack overflow.
func (e *Executor) executeSubWorkflow(ctx context.Context, run *workflow.Run, action *workflow.Action, depth int) (*workflow.StepOutcome, error) {
	if depth+1 > e.maxNestingDepth {
		return nil, fmt.Errorf("%w: workflow %q at depth %d",
			stateflow.ErrNestingLimitExceeded, action.Name, depth+1)
	}
	child, err := e.resolver.Get(ctx, action.Name)
	if err != nil {
		return nil, err
	}
	inputs, err := evaluateBindings(ctx, action.Bindings, run.Snapshot())
	if err != nil {
		return failureOutcome(err), nil
	}

	childRun := workflow.NewRun(workflow.RunOptions{
		Workflow:    child,
		Inputs:      inputs,
		ParentRunID: run.ID,
	})
	outcome, err := e.executeRun(ctx, child, childRun, depth+1)
	if err != nil {
		return nil, err
	}
	switch outcome.Status {
	case stateflow.RunStatusCompleted:
		return &workflow.StepOutcome{Success: true, Value: outcome.Output}, nil
	case stateflow.RunStatusFailed:
		if outcome.FailureKind == stateflow.FailureKindEngine {
			// The engine could not execute the child; the parent cannot
			// make progress either.
			return nil, fmt.Errorf("sub-workflow %q failed: %s", action.Name, outcome.Reason)
		}
		return &workflow.StepOutcome{Error: fmt.Sprintf("sub-workflow %q failed: %s", action.Name, outcome.Reason)}, nil
	default:
		return &workflow.StepOutcome{Error: fmt.Sprintf("sub-workflow %q was cancelled", action.Name)}, nil
	}
}

// executeLog interpolates and logs the message. Log actions are pure and
// always succeed.
func (e *Executor) executeLog(run *workflow.Run, action *workflow.Action) *workflow.StepOutcome {
	message, err := interpolate("message", action.Message, run.Snapshot())
	if err != nil {
		return failureOutcome(err)
	}
	logger := e.logger.With("run_id", run.ID, "workflow", run.WorkflowName)
	switch action.Level {
	case workflow.LogLevelDebug:
		logger.Debug(message)
	case workflow.LogLevelWarn:
		logger.Warn(message)
	case workflow.LogLevelError:
		logger.Error(message)
	default:
		logger.Info(message)
	}
	return &workflow.StepOutcome{Success: true, Value: message}
}

// evaluateBindings evaluates each binding expression against the given
// snapshot. Results are deep-copied so the receiver never aliases the
// snapshot's nested values.
func evaluateBindings(ctx context.Context, bindings map[string]string, snapshot map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(bindings))
	for name, expression := range bindings {
		value, err := workflow.EvaluateValue(ctx, expression, snapshot)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", name, err)
		}
		out[name] = value
	}
	return workflow.CopyVariables(out), nil
}

func failureOutcome(err error) *workflow.StepOutcome {
	return &workflow.StepOutcome{Error: err.Error()}
}

func timeoutOutcome() *workflow.StepOutcome {
	return &workflow.StepOutcome{Error: "timed out", TimedOut: true}
}
