package workflow

import (
	"fmt"
	"strings"
)

// DiagnosticKind identifies the category of a validation finding
type DiagnosticKind string

const (
	DiagnosticUnreachable         DiagnosticKind = "unreachable_state"
	DiagnosticDeadEnd             DiagnosticKind = "dead_end_state"
	DiagnosticDanglingTransition  DiagnosticKind = "dangling_transition"
	DiagnosticCycle               DiagnosticKind = "cycle"
	DiagnosticNonTerminatingCycle DiagnosticKind = "non_terminating_cycle"
)

// Severity grades a diagnostic
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a single validation finding
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Severity Severity       `json:"severity"`
	StateID  string         `json:"state_id,omitempty"`
	Message  string         `json:"message"`
}

// ValidationReport is the result of static analysis over a workflow graph.
// The analyzer never blocks execution itself; callers decide whether a
// report with errors should refuse to run.
type ValidationReport struct {
	WorkflowName string       `json:"workflow_name"`
	Diagnostics  []Diagnostic `json:"diagnostics"`
}

// HasErrors reports whether any diagnostic is error severity
func (r *ValidationReport) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ByKind returns the diagnostics of the given kind
func (r *ValidationReport) ByKind(kind DiagnosticKind) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Analyze statically validates a workflow graph: reachability from the
// initial state, dead-end non-terminal states, dangling transitions, and
// cycle reporting. It performs a single depth-first traversal tracking a
// visited set and a recursion stack, linear in states plus transitions.
func Analyze(w *Workflow) *ValidationReport {
	report := &ValidationReport{WorkflowName: w.Name()}

	// Dangling transitions are excluded by construction; re-verify
	// defensively since reports may be produced for hand-built graphs.
	for _, t := range w.Transitions() {
		for _, id := range []string{t.From, t.To} {
			if _, ok := w.State(id); !ok {
				report.Diagnostics = append(report.Diagnostics, Diagnostic{
					Kind:     DiagnosticDanglingTransition,
					Severity: SeverityError,
					StateID:  id,
					Message:  fmt.Sprintf("transition %s -> %s references unknown state %q", t.From, t.To, id),
				})
			}
		}
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)
		for _, t := range w.TransitionsFrom(id) {
			next := t.To
			if _, ok := w.State(next); !ok {
				continue
			}
			if onStack[next] {
				cycles = append(cycles, extractCycle(stack, next))
				continue
			}
			if !visited[next] {
				visit(next)
			}
		}
		stack = stack[:len(stack)-1]
		onStack[id] = false
	}
	visit(w.Initial())

	for _, state := range w.States() {
		if !visited[state.ID()] {
			report.Diagnostics = append(report.Diagnostics, Diagnostic{
				Kind:     DiagnosticUnreachable,
				Severity: SeverityWarning,
				StateID:  state.ID(),
				Message:  fmt.Sprintf("state %q has no path from the initial state", state.ID()),
			})
		}
		if !state.Terminal() && len(w.TransitionsFrom(state.ID())) == 0 {
			report.Diagnostics = append(report.Diagnostics, Diagnostic{
				Kind:     DiagnosticDeadEnd,
				Severity: SeverityError,
				StateID:  state.ID(),
				Message:  fmt.Sprintf("non-terminal state %q has no outgoing transitions", state.ID()),
			})
		}
	}

	for _, cycle := range cycles {
		report.Diagnostics = append(report.Diagnostics, diagnoseCycle(w, cycle))
	}
	return report
}

// extractCycle returns the portion of the DFS stack forming the cycle,
// starting at the revisited state.
func extractCycle(stack []string, start string) []string {
	for i, id := range stack {
		if id == start {
			cycle := make([]string, len(stack)-i)
			copy(cycle, stack[i:])
			return cycle
		}
	}
	return []string{start}
}

// diagnoseCycle grades a cycle. A cycle with at least one transition
// leaving the cycle can terminate, so it is reported informally. A cycle
// with no exit guarantees non-termination and is an error.
func diagnoseCycle(w *Workflow, cycle []string) Diagnostic {
	members := make(map[string]bool, len(cycle))
	for _, id := range cycle {
		members[id] = true
	}
	hasExit := false
	for _, id := range cycle {
		for _, t := range w.TransitionsFrom(id) {
			if !members[t.To] {
				hasExit = true
				break
			}
		}
	}
	path := strings.Join(append(cycle, cycle[0]), " -> ")
	if !hasExit {
		return Diagnostic{
			Kind:     DiagnosticNonTerminatingCycle,
			Severity: SeverityError,
			StateID:  cycle[0],
			Message:  fmt.Sprintf("cycle %s has no exit and cannot terminate", path),
		}
	}
	return Diagnostic{
		Kind:     DiagnosticCycle,
		Severity: SeverityInfo,
		StateID:  cycle[0],
		Message:  fmt.Sprintf("cycle %s has a conditional exit", path),
	}
}
