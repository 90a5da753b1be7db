package types

import (
	"golang.org/x/exp/rand"
)

type Policy interface {
	// UpdateIteration is called with the trace at the end of every episode
	UpdateIteration(int, *Trace)
	NextAction(int, State, []Action) (Action, bool)
	Update(int, State, Action, *Transition)
	Reset()
}

// RandomPolicy picks actions uniformly, used as a baseline
type RandomPolicy struct {
	rand *rand.Rand
}

var _ Policy = &RandomPolicy{}

func NewRandomPolicy(seed uint64) *RandomPolicy {
	return &RandomPolicy{
		rand: rand.New(rand.NewSource(seed)),
	}
}

func (r *RandomPolicy) Reset() {}

func (r *RandomPolicy) UpdateIteration(_ int, _ *Trace) {}

func (r *RandomPolicy) NextAction(step int, state State, actions []Action) (Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	i := r.rand.Intn(len(actions))
	return actions[i], true
}

func (r *RandomPolicy) Update(_ int, _ State, _ Action, _ *Transition) {}
