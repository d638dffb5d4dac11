package execution

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/deepnoodle-ai/stateflow"
	"github.com/deepnoodle-ai/stateflow/workflow"
	"github.com/fatih/color"
)

// Formatter receives progress notifications as a run executes. The
// executor calls it inline from the run goroutine; implementations should
// return quickly.
type Formatter interface {
	PrintRunStart(runID, workflowName string)
	PrintStepStart(stateID string, actionType workflow.ActionType)
	PrintStepOutcome(stateID string, outcome *workflow.StepOutcome)
	PrintRunEnd(runID string, status stateflow.RunStatus, reason string)
}

// ConsoleFormatter writes colored progress lines to a terminal
type ConsoleFormatter struct {
	mutex      sync.Mutex
	out        io.Writer
	boldStyle  *color.Color
	stepStyle  *color.Color
	okStyle    *color.Color
	errorStyle *color.Color
}

// NewConsoleFormatter creates a formatter writing to stdout
func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{
		out:        os.Stdout,
		boldStyle:  color.New(color.Bold),
		stepStyle:  color.New(color.FgCyan),
		okStyle:    color.New(color.FgGreen),
		errorStyle: color.New(color.FgRed),
	}
}

// WithOutput redirects the formatter's output, primarily for tests
func (f *ConsoleFormatter) WithOutput(w io.Writer) *ConsoleFormatter {
	f.out = w
	return f
}

func (f *ConsoleFormatter) PrintRunStart(runID, workflowName string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	fmt.Fprintf(f.out, "%s %s (run %s)\n",
		f.boldStyle.Sprint("Running workflow:"), workflowName, runID)
}

func (f *ConsoleFormatter) PrintStepStart(stateID string, actionType workflow.ActionType) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	fmt.Fprintf(f.out, "  %s %s (%s)\n", f.stepStyle.Sprint("→"), stateID, actionType)
}

func (f *ConsoleFormatter) PrintStepOutcome(stateID string, outcome *workflow.StepOutcome) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if outcome.Success {
		fmt.Fprintf(f.out, "  %s %s\n", f.okStyle.Sprint("✓"), stateID)
		return
	}
	suffix := ""
	if outcome.TimedOut {
		suffix = " (timed out)"
	}
	fmt.Fprintf(f.out, "  %s %s: %s%s\n", f.errorStyle.Sprint("✗"), stateID, outcome.Error, suffix)
}

func (f *ConsoleFormatter) PrintRunEnd(runID string, status stateflow.RunStatus, reason string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	style := f.okStyle
	if status != stateflow.RunStatusCompleted {
		style = f.errorStyle
	}
	line := fmt.Sprintf("Run %s %s", runID, status)
	if reason != "" {
		line += ": " + reason
	}
	fmt.Fprintf(f.out, "%s\n", style.Sprint(line))
}
