package types

// Trace of an episode as triplets (state, action, transition)
type Trace struct {
	states      []State
	actions     []Action
	transitions []*Transition
}

func NewTrace() *Trace {
	return &Trace{
		states:      make([]State, 0),
		actions:     make([]Action, 0),
		transitions: make([]*Transition, 0),
	}
}

func (t *Trace) Append(state State, action Action, transition *Transition) {
	t.states = append(t.states, state)
	t.actions = append(t.actions, action)
	t.transitions = append(t.transitions, transition)
}

func (t *Trace) Len() int {
	return len(t.states)
}

func (t *Trace) Get(i int) (State, Action, *Transition, bool) {
	if i < 0 || i >= len(t.states) {
		return nil, nil, nil, false
	}
	return t.states[i], t.actions[i], t.transitions[i], true
}

func (t *Trace) Last() (State, Action, *Transition, bool) {
	return t.Get(len(t.states) - 1)
}

// Return is the undiscounted sum of the rewards
func (t *Trace) Return() float64 {
	total := 0.0
	for _, tr := range t.transitions {
		total += tr.Reward
	}
	return total
}

// Invalid counts the steps whose action could not be executed
func (t *Trace) Invalid() int {
	count := 0
	for _, tr := range t.transitions {
		if !tr.Valid {
			count += 1
		}
	}
	return count
}

// Lost reports whether the episode ended with the loss of the controlled entity
func (t *Trace) Lost() bool {
	_, _, tr, ok := t.Last()
	return ok && tr.Lost
}

// Count the steps taking the action with the given hash
func (t *Trace) Count(actionHash string) int {
	count := 0
	for _, a := range t.actions {
		if a.Hash() == actionHash {
			count += 1
		}
	}
	return count
}
