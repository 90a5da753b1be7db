package types

var (
	InitState string = "init"
)

// MonitorState is a state in the state machine (Monitor)
// Use MonitorBuilder to create monitor states (do not instantiate directly)
type MonitorState struct {
	Success     bool
	Name        string
	transitions []monitorEdge
}

type monitorEdge struct {
	next string
	cond MonitorCondition
}

// Transitions of a Monitor are labelled with a MonitorCondition
// MonitorCondition is a predicate on a step of the trace (state, action, outcome)
type MonitorCondition func(State, Action, *Transition) bool

// Not operator on the MonitorCondition
func (m MonitorCondition) Not() MonitorCondition {
	return func(s State, a Action, tr *Transition) bool {
		return !m(s, a, tr)
	}
}

// Or operator between MonitorCondition's
func (m MonitorCondition) Or(other MonitorCondition) MonitorCondition {
	return func(s State, a Action, tr *Transition) bool {
		return m(s, a, tr) || other(s, a, tr)
	}
}

// And operator between MonitorCondition's
func (m MonitorCondition) And(other MonitorCondition) MonitorCondition {
	return func(s State, a Action, tr *Transition) bool {
		return m(s, a, tr) && other(s, a, tr)
	}
}

// OnAction holds when the step took the action with the given hash
func OnAction(hash string) MonitorCondition {
	return func(_ State, a Action, _ *Transition) bool {
		return a != nil && a.Hash() == hash
	}
}

// Executed holds when the action of the step could be carried out
func Executed() MonitorCondition {
	return func(_ State, _ Action, tr *Transition) bool {
		return tr != nil && tr.Valid
	}
}

// Monitor is a generic state machine over the steps of a trace
type Monitor struct {
	states map[string]*MonitorState
}

// Check simulates the monitor on the trace and returns the step
// at which a success state is reached
func (m *Monitor) Check(t *Trace) (int, bool) {
	curState := m.states[InitState]
	if curState.Success {
		return 0, true
	}
	for i := 0; i < t.Len(); i++ {
		s, a, tr, _ := t.Get(i)
		// edges are tried in the order they were defined, no match stays put
		for _, e := range curState.transitions {
			if e.cond(s, a, tr) {
				curState = m.states[e.next]
				break
			}
		}
		if curState.Success {
			return i, true
		}
	}
	return -1, false
}

// Creates a new Monitor
// with a default initial state
func NewMonitor() *Monitor {
	m := &Monitor{
		states: make(map[string]*MonitorState),
	}
	m.states[InitState] = &MonitorState{
		Name:        InitState,
		Success:     false,
		transitions: make([]monitorEdge, 0),
	}
	return m
}

// Returns a MonitorBuilder to construct the remainder of the state machine
// Initialized at the initial state
func (m *Monitor) Build() *MonitorBuilder {
	return &MonitorBuilder{
		monitor:  m,
		curState: m.states[InitState],
	}
}

// At returns a builder indexed at an existing state, nil if there is no such state
func (m *Monitor) At(name string) *MonitorBuilder {
	s, ok := m.states[name]
	if !ok {
		return nil
	}
	return &MonitorBuilder{monitor: m, curState: s}
}

// Encodes a Builder pattern to create the state machine
// The builder is indexed at a particular state of the state machine (Monitor)
type MonitorBuilder struct {
	monitor  *Monitor
	curState *MonitorState
}

// On defines a transition from the current state based on the condition the next state
// returns a new builder instance that is indexed at the next state.
// To construct a chain of state one can call s1.On().On().On()...
// Note: If `next` is not part of the state machine, then its newly created otherwise the existing state is indexed
func (m *MonitorBuilder) On(cond MonitorCondition, next string) *MonitorBuilder {
	nextState, ok := m.monitor.states[next]
	if !ok {
		nextState = &MonitorState{
			Name:        next,
			Success:     false,
			transitions: make([]monitorEdge, 0),
		}
		m.monitor.states[next] = nextState
	}
	m.curState.transitions = append(m.curState.transitions, monitorEdge{next: next, cond: cond})
	return &MonitorBuilder{
		monitor:  m.monitor,
		curState: nextState,
	}
}

// Mark the corresponding state indexed at this builder instance as a success state
func (m *MonitorBuilder) MarkSuccess() *MonitorBuilder {
	m.curState.Success = true
	return m
}
