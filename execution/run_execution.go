package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deepnoodle-ai/stateflow"
	"github.com/deepnoodle-ai/stateflow/workflow"
)

// executeRun drives a single run to a terminal state. Steps execute
// strictly sequentially; the run is checkpointed after every step before
// the next state's action executes, so a crash never loses more than the
// in-flight step. Sub-workflow recursion re-enters this function with an
// incremented depth.
func (e *Executor) executeRun(ctx context.Context, w *workflow.Workflow, run *workflow.Run, depth int) (*stateflow.RunOutcome, error) {
	logger := e.logger.With("run_id", run.ID, "workflow", run.WorkflowName)
	startTime := time.Now()

	if run.Status == stateflow.RunStatusPending {
		run.Status = stateflow.RunStatusRunning
		if err := e.checkpoint(ctx, run); err != nil {
			return e.failEngine(ctx, run, startTime, err), nil
		}
	}
	e.metrics.RunStarted(run.ID, run.WorkflowName)
	if e.formatter != nil {
		e.formatter.PrintRunStart(run.ID, run.WorkflowName)
	}
	logger.Info("run executing", "state", run.CurrentState, "depth", depth)

	for {
		// Cancellation is observed between steps and again right after
		// an action returns; an in-flight action is never abandoned
		select {
		case <-ctx.Done():
			return e.cancelRun(ctx, run, startTime), nil
		default:
		}

		state, ok := w.State(run.CurrentState)
		if !ok {
			err := fmt.Errorf("current state %q not found in workflow %q", run.CurrentState, w.Name())
			return e.failEngine(ctx, run, startTime, err), nil
		}
		if state.Terminal() {
			return e.completeRun(ctx, run, startTime), nil
		}

		entered := time.Now()
		outcome, err := e.executeAction(ctx, w, run, state, depth)
		if err != nil {
			run.History = append(run.History, workflow.HistoryEntry{
				StateID:   state.ID(),
				EnteredAt: entered,
				ExitedAt:  time.Now(),
			})
			return e.failEngine(ctx, run, startTime, err), nil
		}

		exited := time.Now()
		run.History = append(run.History, workflow.HistoryEntry{
			StateID:   state.ID(),
			EnteredAt: entered,
			ExitedAt:  exited,
			Outcome:   outcome,
		})
		if outcome.Success {
			run.SetOutput(state.ID(), outcome.Value)
		} else {
			run.SetOutput(state.ID(), outcome.Error)
		}
		e.metrics.StepObserved(run.ID, state.ID(), exited.Sub(entered), outcome.Success)
		if e.formatter != nil {
			e.formatter.PrintStepOutcome(state.ID(), outcome)
		}
		if !outcome.Success {
			logger.Warn("action failed", "state", state.ID(),
				"error", outcome.Error, "timed_out", outcome.TimedOut)
		}

		// A cancellation that landed mid-action surfaces as a failed
		// outcome; terminate as cancelled instead of routing the failure
		// or evaluating conditions under a dead context.
		if ctx.Err() != nil {
			return e.cancelRun(ctx, run, startTime), nil
		}

		transitions := w.TransitionsFrom(state.ID())
		if len(transitions) == 0 {
			if !outcome.Success {
				return e.failUnhandled(ctx, w, run, state, outcome, startTime, depth), nil
			}
			return e.completeRun(ctx, run, startTime), nil
		}

		next, err := e.selectTransition(ctx, run, transitions, outcome)
		if err != nil {
			return e.failEngine(ctx, run, startTime, err), nil
		}
		if next == "" {
			if !outcome.Success {
				return e.failUnhandled(ctx, w, run, state, outcome, startTime, depth), nil
			}
			err := fmt.Errorf("%w: state %q", stateflow.ErrNoMatchingTransition, state.ID())
			return e.failEngine(ctx, run, startTime, err), nil
		}

		run.CurrentState = next
		if err := e.checkpoint(ctx, run); err != nil {
			return e.failEngine(ctx, run, startTime, err), nil
		}
	}
}

// selectTransition evaluates outgoing transitions in declared order and
// returns the target of the first match, or "" if none matched. Expression
// conditions are evaluated against an immutable snapshot of run variables;
// an evaluation error (including an undefined variable reference) is an
// engine failure, never "condition not met".
func (e *Executor) selectTransition(ctx context.Context, run *workflow.Run, transitions []*workflow.Transition, outcome *workflow.StepOutcome) (string, error) {
	var snapshot map[string]any
	for _, t := range transitions {
		switch t.Condition.Type {
		case workflow.ConditionAlways:
			return t.To, nil
		case workflow.ConditionOnSuccess:
			if outcome.Success {
				return t.To, nil
			}
		case workflow.ConditionOnFailure:
			if !outcome.Success {
				return t.To, nil
			}
		case workflow.ConditionExpression:
			if snapshot == nil {
				snapshot = run.Snapshot()
			}
			match, err := workflow.EvaluateExpression(ctx, t.Condition.Expression, snapshot)
			if err != nil {
				return "", fmt.Errorf("transition %s -> %s: %w", t.From, t.To, err)
			}
			if match {
				return t.To, nil
			}
		}
	}
	return "", nil
}

func (e *Executor) completeRun(ctx context.Context, run *workflow.Run, startTime time.Time) *stateflow.RunOutcome {
	run.Status = stateflow.RunStatusCompleted
	e.finishRun(ctx, run, startTime)
	return runOutcome(run)
}

func (e *Executor) cancelRun(ctx context.Context, run *workflow.Run, startTime time.Time) *stateflow.RunOutcome {
	run.Status = stateflow.RunStatusCancelled
	run.Reason = "cancelled"
	e.finishRun(ctx, run, startTime)
	return runOutcome(run)
}

// failUnhandled terminates a run whose action failed with no transition
// prepared to handle it. The failing state's compensation action, if one
// is declared, runs first so authors can release whatever the failed
// action acquired. The workflow declared no handling for the failure, so
// the run fails because the workflow said so.
func (e *Executor) failUnhandled(ctx context.Context, w *workflow.Workflow, run *workflow.Run, state *workflow.State, outcome *workflow.StepOutcome, startTime time.Time, depth int) *stateflow.RunOutcome {
	e.runCompensation(ctx, w, run, state, depth)
	reason := outcome.Error
	if reason == "" {
		reason = "action failed"
	}
	return e.failWorkflow(ctx, run, startTime, reason)
}

// runCompensation executes the compensation state's action and records it
// in the run history. Compensation is single-step and best-effort: its
// outcome never changes the run's disposition, and a compensation that
// itself fails is logged and abandoned.
func (e *Executor) runCompensation(ctx context.Context, w *workflow.Workflow, run *workflow.Run, state *workflow.State, depth int) {
	if state.Compensation() == "" {
		return
	}
	comp, ok := w.State(state.Compensation())
	if !ok {
		return
	}
	entered := time.Now()
	outcome, err := e.executeAction(ctx, w, run, comp, depth)
	if err != nil {
		e.logger.Warn("compensation did not run",
			"run_id", run.ID, "state", comp.ID(), "error", err)
		return
	}
	exited := time.Now()
	run.History = append(run.History, workflow.HistoryEntry{
		StateID:   comp.ID(),
		EnteredAt: entered,
		ExitedAt:  exited,
		Outcome:   outcome,
	})
	if outcome.Success {
		run.SetOutput(comp.ID(), outcome.Value)
	} else {
		run.SetOutput(comp.ID(), outcome.Error)
		e.logger.Warn("compensation failed",
			"run_id", run.ID, "state", comp.ID(), "error", outcome.Error)
	}
	e.metrics.StepObserved(run.ID, comp.ID(), exited.Sub(entered), outcome.Success)
	if e.formatter != nil {
		e.formatter.PrintStepOutcome(comp.ID(), outcome)
	}
}

func (e *Executor) failWorkflow(ctx context.Context, run *workflow.Run, startTime time.Time, reason string) *stateflow.RunOutcome {
	run.Status = stateflow.RunStatusFailed
	run.FailureKind = stateflow.FailureKindWorkflow
	run.Reason = reason
	e.finishRun(ctx, run, startTime)
	return runOutcome(run)
}

// failEngine terminates the run with the verbatim engine failure reason.
// These failures indicate the engine itself could not make progress and
// are never recoverable by workflow authors.
func (e *Executor) failEngine(ctx context.Context, run *workflow.Run, startTime time.Time, err error) *stateflow.RunOutcome {
	run.Status = stateflow.RunStatusFailed
	run.FailureKind = stateflow.FailureKindEngine
	run.Reason = err.Error()
	e.logger.Error("run failed", "run_id", run.ID, "workflow", run.WorkflowName, "error", err)
	e.finishRun(ctx, run, startTime)
	return runOutcome(run)
}

// finishRun persists the terminal state and emits the closing
// observations. The checkpoint uses a detached context so a terminal
// record still lands after cancellation.
func (e *Executor) finishRun(ctx context.Context, run *workflow.Run, startTime time.Time) {
	if err := e.checkpoint(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Error("failed to persist terminal run state", "run_id", run.ID, "error", err)
	}
	e.metrics.RunCompleted(run.ID, run.Status, time.Since(startTime))
	if e.formatter != nil {
		e.formatter.PrintRunEnd(run.ID, run.Status, run.Reason)
	}
}

func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded
}
