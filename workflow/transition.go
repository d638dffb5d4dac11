package workflow

// ConditionType identifies how a transition's guard is evaluated
type ConditionType string

const (
	// ConditionAlways matches unconditionally
	ConditionAlways ConditionType = "always"

	// ConditionOnSuccess matches when the prior action's outcome succeeded.
	// It is special-cased against the recorded outcome, not the expression
	// engine.
	ConditionOnSuccess ConditionType = "on_success"

	// ConditionOnFailure matches when the prior action's outcome failed
	ConditionOnFailure ConditionType = "on_failure"

	// ConditionExpression evaluates an expression against the run's
	// variable context.
	ConditionExpression ConditionType = "expression"
)

// Condition guards a transition
type Condition struct {
	Type       ConditionType `json:"type"`
	Expression string        `json:"expression,omitempty"`
}

// Always returns an unconditional condition
func Always() Condition {
	return Condition{Type: ConditionAlways}
}

// OnSuccess returns a condition matching a successful prior outcome
func OnSuccess() Condition {
	return Condition{Type: ConditionOnSuccess}
}

// OnFailure returns a condition matching a failed prior outcome
func OnFailure() Condition {
	return Condition{Type: ConditionOnFailure}
}

// Expression returns a condition evaluated against run variables
func Expression(text string) Condition {
	return Condition{Type: ConditionExpression, Expression: text}
}

// Conditional reports whether the condition can fail to match
func (c Condition) Conditional() bool {
	return c.Type != ConditionAlways
}

// Transition is a directed edge between two states, guarded by a condition.
// Transitions out of a state are evaluated in declared order and the first
// match is taken.
type Transition struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Condition Condition `json:"condition"`
}
