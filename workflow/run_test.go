package workflow

import (
	"testing"

	"github.com/deepnoodle-ai/stateflow"
	"github.com/stretchr/testify/require"
)

func TestNewRun(t *testing.T) {
	assert := require.New(t)
	run := sampleRun(t, "demo")

	assert.NotEmpty(run.ID)
	assert.Equal("demo", run.WorkflowName)
	assert.NotEmpty(run.WorkflowHash)
	assert.Equal("a", run.CurrentState)
	assert.Equal(stateflow.RunStatusPending, run.Status)
	assert.Equal(1, run.Variables["x"])
	assert.Equal(map[string]any{}, run.Variables[OutputsKey])
}

func TestNewRun_CopiesInputs(t *testing.T) {
	assert := require.New(t)
	a := mustState(t, StateOptions{ID: "a", Type: StateTypeEnd})
	w, err := New(Options{Name: "demo", States: []*State{a}})
	assert.NoError(err)

	inputs := map[string]any{"cfg": map[string]any{"region": "east"}}
	run := NewRun(RunOptions{Workflow: w, Inputs: inputs})

	inputs["cfg"].(map[string]any)["region"] = "west"
	assert.Equal("east", run.Variables["cfg"].(map[string]any)["region"])
}

func TestRun_Outputs(t *testing.T) {
	assert := require.New(t)
	run := sampleRun(t, "demo")

	run.SetOutput("fetch", "payload")
	value, ok := run.Output("fetch")
	assert.True(ok)
	assert.Equal("payload", value)

	_, ok = run.Output("missing")
	assert.False(ok)

	// Outputs are visible to expressions through the variable snapshot
	snapshot := run.Snapshot()
	outputs := snapshot[OutputsKey].(map[string]any)
	assert.Equal("payload", outputs["fetch"])
}

func TestRun_SnapshotIsolation(t *testing.T) {
	assert := require.New(t)
	run := sampleRun(t, "demo")
	run.Variables["list"] = []any{"a"}

	snapshot := run.Snapshot()
	snapshot["list"].([]any)[0] = "mutated"
	snapshot["x"] = 99

	assert.Equal("a", run.Variables["list"].([]any)[0])
	assert.Equal(1, run.Variables["x"])
}

func TestRun_LastOutcome(t *testing.T) {
	assert := require.New(t)
	run := sampleRun(t, "demo")
	assert.Nil(run.LastOutcome())

	run.History = append(run.History,
		HistoryEntry{StateID: "a", Outcome: &StepOutcome{Success: true, Value: "first"}},
		HistoryEntry{StateID: "b"},
		HistoryEntry{StateID: "c", Outcome: &StepOutcome{Success: true, Value: "last"}},
	)
	assert.Equal("last", run.LastOutcome().Value)
}

func TestCopyVariables_DeepCopy(t *testing.T) {
	assert := require.New(t)
	original := map[string]any{
		"nested": map[string]any{"list": []any{map[string]any{"k": "v"}}},
	}
	dup := CopyVariables(original)
	dup["nested"].(map[string]any)["list"].([]any)[0].(map[string]any)["k"] = "changed"
	assert.Equal("v", original["nested"].(map[string]any)["list"].([]any)[0].(map[string]any)["k"])
}
