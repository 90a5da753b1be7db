package highway

import "github.com/zeu5/sumo-lane-rl/types"

// Event names reported by Events
const (
	EventCollision     = "collision"
	EventNearCollision = "near_collision"
	EventInvalid       = "invalid_change"
	EventOvertake      = "overtake"
)

// tooClose holds when the step ends with the ego within the close bucket of its leader
func tooClose(_ types.State, _ types.Action, tr *types.Transition) bool {
	if tr == nil {
		return false
	}
	obs, ok := tr.State.(Observation)
	return ok && !obs.Absent && obs.SameBucket == Close
}

func rejected(_ types.State, _ types.Action, tr *types.Transition) bool {
	return tr != nil && !tr.Valid
}

// overtakeMonitor succeeds on a left change followed, possibly much later, by a change back to the right
func overtakeMonitor() *types.Monitor {
	m := types.NewMonitor()
	m.Build().
		On(types.OnAction(Left.Hash()).And(types.Executed()), "passing").
		On(types.OnAction(Right.Hash()).And(types.Executed()), "overtaken").
		MarkSuccess()
	return m
}

// Events observed on the episodes of the lane change task
func Events() []types.EventDesc {
	return []types.EventDesc{
		{
			Name: EventCollision,
			Check: func(t *types.Trace) (bool, int) {
				if t.Lost() {
					return true, t.Len() - 1
				}
				return false, -1
			},
		},
		types.MonitorEvent(EventNearCollision, monitorOn(tooClose)),
		types.MonitorEvent(EventInvalid, monitorOn(rejected)),
		types.MonitorEvent(EventOvertake, overtakeMonitor()),
	}
}

// monitorOn succeeds on the first step satisfying cond
func monitorOn(cond types.MonitorCondition) *types.Monitor {
	m := types.NewMonitor()
	m.Build().On(cond, "seen").MarkSuccess()
	return m
}
