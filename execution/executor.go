package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deepnoodle-ai/stateflow"
	"github.com/deepnoodle-ai/stateflow/slogger"
	"github.com/deepnoodle-ai/stateflow/workflow"
)

const (
	DefaultActionTimeout   = 5 * time.Minute
	DefaultMaxNestingDepth = 10
)

// Options configures a new Executor
type Options struct {
	Resolver  *workflow.Resolver
	RunStore  workflow.RunStore
	Prompts   stateflow.PromptService
	Shell     stateflow.ShellService
	Signals   stateflow.SignalSource
	Metrics   MetricsCollector
	Logger    slogger.Logger
	Formatter Formatter

	// ActionTimeout is the single unified timeout applied to every action
	ActionTimeout time.Duration

	// MaxNestingDepth bounds sub-workflow recursion
	MaxNestingDepth int
}

// Executor drives workflow runs: it selects actions, invokes them
// (possibly through sub-workflow recursion), evaluates transitions,
// persists checkpoints, enforces timeouts, and reports metrics. Each run
// executes as an independently scheduled unit; within one run, steps are
// strictly sequential.
type Executor struct {
	resolver        *workflow.Resolver
	store           workflow.RunStore
	prompts         stateflow.PromptService
	shell           stateflow.ShellService
	signals         stateflow.SignalSource
	metrics         MetricsCollector
	logger          slogger.Logger
	formatter       Formatter
	actionTimeout   time.Duration
	maxNestingDepth int

	mutex   sync.Mutex
	running map[string]*runHandle
}

type runHandle struct {
	cancel  context.CancelFunc
	done    chan struct{}
	outcome *stateflow.RunOutcome
	err     error
}

// NewExecutor creates a new Executor
func NewExecutor(opts Options) (*Executor, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if opts.RunStore == nil {
		return nil, fmt.Errorf("run store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics{}
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	if opts.MaxNestingDepth <= 0 {
		opts.MaxNestingDepth = DefaultMaxNestingDepth
	}
	return &Executor{
		resolver:        opts.Resolver,
		store:           opts.RunStore,
		prompts:         opts.Prompts,
		shell:           opts.Shell,
		signals:         opts.Signals,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		formatter:       opts.Formatter,
		actionTimeout:   opts.ActionTimeout,
		maxNestingDepth: opts.MaxNestingDepth,
		running:         make(map[string]*runHandle),
	}, nil
}

// Start resolves the named workflow, creates and persists a new run, and
// begins executing it concurrently. Validation findings are logged but
// never block execution; callers wanting to refuse invalid workflows
// should call Validate first.
func (e *Executor) Start(ctx context.Context, workflowName string, inputs map[string]any) (string, error) {
	w, err := e.resolver.Get(ctx, workflowName)
	if err != nil {
		return "", err
	}

	report := workflow.Analyze(w)
	for _, d := range report.Diagnostics {
		switch d.Severity {
		case workflow.SeverityError:
			e.logger.Error("workflow validation finding", "workflow", workflowName,
				"kind", d.Kind, "state", d.StateID, "message", d.Message)
		case workflow.SeverityWarning:
			e.logger.Warn("workflow validation finding", "workflow", workflowName,
				"kind", d.Kind, "state", d.StateID, "message", d.Message)
		}
	}

	run := workflow.NewRun(workflow.RunOptions{Workflow: w, Inputs: inputs})
	if err := e.checkpoint(ctx, run); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle := &runHandle{cancel: cancel, done: make(chan struct{})}
	e.mutex.Lock()
	e.running[run.ID] = handle
	e.mutex.Unlock()

	go func() {
		defer close(handle.done)
		defer cancel()
		outcome, err := e.executeRun(runCtx, w, run, 0)
		handle.outcome = outcome
		handle.err = err
		e.mutex.Lock()
		delete(e.running, run.ID)
		e.mutex.Unlock()
	}()

	return run.ID, nil
}

// Resume reloads a persisted run and continues executing it synchronously
// until it reaches a terminal state. Used after process restart. The
// caller must guarantee no other executor owns the run id.
func (e *Executor) Resume(ctx context.Context, runID string) (*stateflow.RunOutcome, error) {
	run, err := e.store.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return runOutcome(run), nil
	}
	w, err := e.resolver.Get(ctx, run.WorkflowName)
	if err != nil {
		return nil, err
	}
	if hash, hashErr := w.Hash(); hashErr == nil && run.WorkflowHash != "" && hash != run.WorkflowHash {
		e.logger.Warn("workflow definition changed since run was checkpointed",
			"run_id", runID, "workflow", run.WorkflowName)
	}
	return e.executeRun(ctx, w, run, 0)
}

// Status returns the persisted summary of a run
func (e *Executor) Status(ctx context.Context, runID string) (*workflow.RunSummary, error) {
	run, err := e.store.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	return run.Summary(), nil
}

// Validate statically analyzes the named workflow without starting a run
func (e *Executor) Validate(ctx context.Context, workflowName string) (*workflow.ValidationReport, error) {
	w, err := e.resolver.Get(ctx, workflowName)
	if err != nil {
		return nil, err
	}
	return workflow.Analyze(w), nil
}

// Cancel requests cancellation of a running run. The signal is observed
// between steps, never mid-action; a currently blocking external call may
// finish before cancellation takes effect.
func (e *Executor) Cancel(runID string) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	handle, ok := e.running[runID]
	if !ok {
		return false
	}
	handle.cancel()
	return true
}

// Wait blocks until a run started by this executor reaches a terminal
// state and returns its outcome.
func (e *Executor) Wait(ctx context.Context, runID string) (*stateflow.RunOutcome, error) {
	e.mutex.Lock()
	handle, ok := e.running[runID]
	e.mutex.Unlock()
	if !ok {
		// Not in flight; fall back to the persisted record
		run, err := e.store.Load(ctx, runID)
		if err != nil {
			return nil, err
		}
		if !run.Status.Terminal() {
			return nil, fmt.Errorf("run %s is not owned by this executor", runID)
		}
		return runOutcome(run), nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-handle.done:
		return handle.outcome, handle.err
	}
}

// checkpoint persists the run, wrapping store failures in the storage
// sentinel so they are classified as engine failures.
func (e *Executor) checkpoint(ctx context.Context, run *workflow.Run) error {
	run.UpdatedAt = time.Now()
	if err := e.store.Save(ctx, run); err != nil {
		return fmt.Errorf("%w: %s", stateflow.ErrStorageUnavailable, err)
	}
	return nil
}

func runOutcome(run *workflow.Run) *stateflow.RunOutcome {
	outcome := &stateflow.RunOutcome{
		RunID:       run.ID,
		Workflow:    run.WorkflowName,
		Status:      run.Status,
		FailureKind: run.FailureKind,
		Reason:      run.Reason,
	}
	if last := run.LastOutcome(); last != nil && run.Status == stateflow.RunStatusCompleted {
		outcome.Output = last.Value
	}
	return outcome
}
