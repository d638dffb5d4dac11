package workflow

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Source identifies where a workflow definition was loaded from. Later
// sources override earlier ones by name collision.
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceProject Source = "project"
	SourceUser    Source = "user"
)

// Workflow defines a repeatable process as an immutable graph of states
// and transitions with one designated initial state.
type Workflow struct {
	name        string
	description string
	source      Source
	states      []*State
	statesByID  map[string]*State
	transitions []*Transition
	initial     string
}

// Options configures a new workflow
type Options struct {
	Name        string
	Description string
	Source      Source
	States      []*State
	Transitions []*Transition
	Initial     string
}

// New creates and validates a Workflow
func New(opts Options) (*Workflow, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("workflow name required")
	}
	if len(opts.States) == 0 {
		return nil, fmt.Errorf("workflow %q: states required", opts.Name)
	}
	statesByID := make(map[string]*State, len(opts.States))
	for _, state := range opts.States {
		if state.ID() == "" {
			return nil, fmt.Errorf("workflow %q: state id cannot be empty", opts.Name)
		}
		if !state.Type().Valid() {
			return nil, fmt.Errorf("workflow %q: state %q has unknown type %q",
				opts.Name, state.ID(), state.Type())
		}
		if _, exists := statesByID[state.ID()]; exists {
			return nil, fmt.Errorf("workflow %q: duplicate state id %q", opts.Name, state.ID())
		}
		statesByID[state.ID()] = state
	}
	if opts.Initial == "" {
		opts.Initial = opts.States[0].ID()
	}
	if _, ok := statesByID[opts.Initial]; !ok {
		return nil, fmt.Errorf("workflow %q: initial state %q does not exist",
			opts.Name, opts.Initial)
	}
	w := &Workflow{
		name:        opts.Name,
		description: opts.Description,
		source:      opts.Source,
		states:      opts.States,
		statesByID:  statesByID,
		transitions: opts.Transitions,
		initial:     opts.Initial,
	}
	if err := w.validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workflow) validate() error {
	alwaysCount := make(map[string]int)
	for _, t := range w.transitions {
		from, ok := w.statesByID[t.From]
		if !ok {
			return fmt.Errorf("workflow %q: transition from unknown state %q", w.name, t.From)
		}
		to, ok := w.statesByID[t.To]
		if !ok {
			return fmt.Errorf("workflow %q: transition to unknown state %q", w.name, t.To)
		}
		if from.Type() == StateTypeEnd {
			return fmt.Errorf("workflow %q: end state %q cannot have outgoing transitions",
				w.name, from.ID())
		}
		if to.Type() == StateTypeStart {
			return fmt.Errorf("workflow %q: start state %q cannot have incoming transitions",
				w.name, to.ID())
		}
		if t.Condition.Type == ConditionAlways && from.Type() != StateTypeChoice {
			alwaysCount[t.From]++
			if alwaysCount[t.From] > 1 {
				return fmt.Errorf("workflow %q: state %q has multiple unconditional transitions",
					w.name, t.From)
			}
		}
		if t.Condition.Type == ConditionExpression && t.Condition.Expression == "" {
			return fmt.Errorf("workflow %q: transition %s -> %s has an empty expression",
				w.name, t.From, t.To)
		}
	}
	for _, state := range w.states {
		if comp := state.Compensation(); comp != "" {
			if _, ok := w.statesByID[comp]; !ok {
				return fmt.Errorf("workflow %q: state %q references unknown compensation state %q",
					w.name, state.ID(), comp)
			}
		}
	}
	return nil
}

func (w *Workflow) Name() string {
	return w.name
}

func (w *Workflow) Description() string {
	return w.description
}

func (w *Workflow) Source() Source {
	return w.source
}

// States returns the workflow's states in declared order
func (w *Workflow) States() []*State {
	return w.states
}

// State returns a state by id
func (w *Workflow) State(id string) (*State, bool) {
	state, ok := w.statesByID[id]
	return state, ok
}

// Transitions returns all transitions in declared order
func (w *Workflow) Transitions() []*Transition {
	return w.transitions
}

// TransitionsFrom returns the outgoing transitions for a state, in
// declared order. Declaration order matters: the executor takes the first
// matching transition.
func (w *Workflow) TransitionsFrom(stateID string) []*Transition {
	var out []*Transition
	for _, t := range w.transitions {
		if t.From == stateID {
			out = append(out, t)
		}
	}
	return out
}

// Initial returns the id of the initial state
func (w *Workflow) Initial() string {
	return w.initial
}

// WithSource returns a copy of the workflow stamped with the given source
func (w *Workflow) WithSource(source Source) *Workflow {
	dup := *w
	dup.source = source
	return &dup
}

// Hash returns a deterministic hash of the workflow definition, used to
// detect definition drift between checkpoint and resume.
func (w *Workflow) Hash() (string, error) {
	type stateRepr struct {
		ID     string    `json:"id"`
		Type   StateType `json:"type"`
		Action string    `json:"action,omitempty"`
	}
	states := make([]stateRepr, 0, len(w.states))
	for _, s := range w.states {
		states = append(states, stateRepr{ID: s.ID(), Type: s.Type(), Action: s.ActionText()})
	}
	repr := map[string]any{
		"name":        w.name,
		"initial":     w.initial,
		"states":      states,
		"transitions": w.transitions,
	}
	data, err := json.Marshal(repr)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow for hashing: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}
