package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildWorkflow(t *testing.T, states []*State, transitions []*Transition) *Workflow {
	t.Helper()
	w, err := New(Options{Name: "test", States: states, Transitions: transitions})
	require.NoError(t, err)
	return w
}

func TestAnalyze_CleanWorkflow(t *testing.T) {
	assert := require.New(t)
	w := buildWorkflow(t,
		[]*State{
			mustState(t, StateOptions{ID: "start", Type: StateTypeStart}),
			mustState(t, StateOptions{ID: "end", Type: StateTypeEnd}),
		},
		[]*Transition{{From: "start", To: "end", Condition: Always()}},
	)
	report := Analyze(w)
	assert.Empty(report.Diagnostics)
	assert.False(report.HasErrors())
}

func TestAnalyze_UnreachableState(t *testing.T) {
	assert := require.New(t)
	w := buildWorkflow(t,
		[]*State{
			mustState(t, StateOptions{ID: "start", Type: StateTypeStart}),
			mustState(t, StateOptions{ID: "orphan", Type: StateTypeEnd}),
			mustState(t, StateOptions{ID: "end", Type: StateTypeEnd}),
		},
		[]*Transition{{From: "start", To: "end", Condition: Always()}},
	)
	report := Analyze(w)
	findings := report.ByKind(DiagnosticUnreachable)
	assert.Len(findings, 1)
	assert.Equal("orphan", findings[0].StateID)
	assert.Equal(SeverityWarning, findings[0].Severity)
	assert.False(report.HasErrors())
}

func TestAnalyze_DeadEndState(t *testing.T) {
	assert := require.New(t)
	w := buildWorkflow(t,
		[]*State{
			mustState(t, StateOptions{ID: "start", Type: StateTypeStart}),
			mustState(t, StateOptions{ID: "stuck"}),
		},
		[]*Transition{{From: "start", To: "stuck", Condition: Always()}},
	)
	report := Analyze(w)
	findings := report.ByKind(DiagnosticDeadEnd)
	assert.Len(findings, 1)
	assert.Equal("stuck", findings[0].StateID)
	assert.True(report.HasErrors())
}

func TestAnalyze_CycleWithExit(t *testing.T) {
	assert := require.New(t)
	w := buildWorkflow(t,
		[]*State{
			mustState(t, StateOptions{ID: "start", Type: StateTypeStart}),
			mustState(t, StateOptions{ID: "retry"}),
			mustState(t, StateOptions{ID: "end", Type: StateTypeEnd}),
		},
		[]*Transition{
			{From: "start", To: "retry", Condition: Always()},
			{From: "retry", To: "retry", Condition: Expression("attempts < 3")},
			{From: "retry", To: "end", Condition: Expression("attempts >= 3")},
		},
	)
	report := Analyze(w)
	findings := report.ByKind(DiagnosticCycle)
	assert.Len(findings, 1)
	assert.Equal(SeverityInfo, findings[0].Severity)
	assert.Empty(report.ByKind(DiagnosticNonTerminatingCycle))
	assert.False(report.HasErrors())
}

func TestAnalyze_NonTerminatingCycle(t *testing.T) {
	assert := require.New(t)
	w := buildWorkflow(t,
		[]*State{
			mustState(t, StateOptions{ID: "start", Type: StateTypeStart}),
			mustState(t, StateOptions{ID: "a"}),
			mustState(t, StateOptions{ID: "b"}),
		},
		[]*Transition{
			{From: "start", To: "a", Condition: Always()},
			{From: "a", To: "b", Condition: Always()},
			{From: "b", To: "a", Condition: Always()},
		},
	)
	report := Analyze(w)
	findings := report.ByKind(DiagnosticNonTerminatingCycle)
	assert.Len(findings, 1)
	assert.Equal(SeverityError, findings[0].Severity)
	assert.Contains(findings[0].Message, "no exit")
	assert.True(report.HasErrors())
}
