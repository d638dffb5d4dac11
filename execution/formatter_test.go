package execution

import (
	"bytes"
	"testing"

	"github.com/deepnoodle-ai/stateflow"
	"github.com/deepnoodle-ai/stateflow/workflow"
	"github.com/stretchr/testify/require"
)

func TestConsoleFormatter(t *testing.T) {
	assert := require.New(t)
	var buf bytes.Buffer
	formatter := NewConsoleFormatter().WithOutput(&buf)

	formatter.PrintRunStart("run-1", "deploy")
	formatter.PrintStepStart("ship", workflow.ActionTypeShell)
	formatter.PrintStepOutcome("ship", &workflow.StepOutcome{Success: true})
	formatter.PrintStepOutcome("verify", &workflow.StepOutcome{Error: "timed out", TimedOut: true})
	formatter.PrintRunEnd("run-1", stateflow.RunStatusFailed, "unhandled action failure")

	out := buf.String()
	assert.Contains(out, "deploy")
	assert.Contains(out, "run-1")
	assert.Contains(out, "ship")
	assert.Contains(out, "timed out")
	assert.Contains(out, "failed")
	assert.Contains(out, "unhandled action failure")
}
