package workflow

// StateType categorizes a state within a workflow graph
type StateType string

const (
	StateTypeStart  StateType = "start"
	StateTypeNormal StateType = "normal"
	StateTypeFork   StateType = "fork"
	StateTypeJoin   StateType = "join"
	StateTypeChoice StateType = "choice"
	StateTypeEnd    StateType = "end"
)

// Valid reports whether the state type is a known value
func (t StateType) Valid() bool {
	switch t {
	case StateTypeStart, StateTypeNormal, StateTypeFork,
		StateTypeJoin, StateTypeChoice, StateTypeEnd:
		return true
	}
	return false
}

// State is a node in a workflow graph. A state may carry one action,
// described as free text and parsed into a structured Action at load time.
type State struct {
	id           string
	stateType    StateType
	actionText   string
	action       *Action
	compensation string
}

// StateOptions configures a new workflow state
type StateOptions struct {
	ID           string
	Type         StateType
	ActionText   string
	Compensation string
}

// NewState creates a state and parses its action description, if any.
// Parsing is forgiving: unrecognized text becomes a log action, so this
// only fails on malformed text for a recognized verb.
func NewState(opts StateOptions) (*State, error) {
	if opts.Type == "" {
		opts.Type = StateTypeNormal
	}
	s := &State{
		id:           opts.ID,
		stateType:    opts.Type,
		actionText:   opts.ActionText,
		compensation: opts.Compensation,
	}
	if opts.ActionText != "" {
		action, err := ParseAction(opts.ActionText)
		if err != nil {
			return nil, err
		}
		s.action = action
	}
	return s, nil
}

func (s *State) ID() string {
	return s.id
}

func (s *State) Type() StateType {
	return s.stateType
}

// ActionText returns the raw action description attached to the state
func (s *State) ActionText() string {
	return s.actionText
}

// Action returns the parsed action, or nil if the state carries none
func (s *State) Action() *Action {
	return s.action
}

// Compensation returns the id of the state to run on failure unwind,
// or an empty string if none is configured.
func (s *State) Compensation() string {
	return s.compensation
}

// Terminal reports whether the state ends a run when reached
func (s *State) Terminal() bool {
	return s.stateType == StateTypeEnd
}
