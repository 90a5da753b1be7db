package policies

import "github.com/zeu5/sumo-lane-rl/types"

// Scripted plays a fixed schedule: the action of the step when one is
// scheduled, the fallback otherwise
type Scripted struct {
	fallback types.Action
	schedule map[int]types.Action
}

var _ types.Policy = &Scripted{}

func NewScripted(fallback types.Action, schedule map[int]types.Action) *Scripted {
	if schedule == nil {
		schedule = make(map[int]types.Action)
	}
	return &Scripted{
		fallback: fallback,
		schedule: schedule,
	}
}

func (s *Scripted) Reset() {}

func (s *Scripted) UpdateIteration(_ int, _ *types.Trace) {}

func (s *Scripted) Update(_ int, _ types.State, _ types.Action, _ *types.Transition) {}

func (s *Scripted) NextAction(step int, _ types.State, actions []types.Action) (types.Action, bool) {
	want := s.fallback
	if a, ok := s.schedule[step]; ok {
		want = a
	}
	for _, a := range actions {
		if a.Hash() == want.Hash() {
			return a, true
		}
	}
	return nil, false
}
