package highway

import (
	"testing"

	"github.com/zeu5/sumo-lane-rl/types"
)

func checkEvents(tr *types.Trace) map[string]int {
	out := make(map[string]int)
	for _, ev := range Events() {
		if ok, step := ev.Check(tr); ok {
			out[ev.Name] = step
		}
	}
	return out
}

func TestOvertakeAndNearCollision(t *testing.T) {
	tr := types.NewTrace()
	free := farObs()
	left := free
	left.Lane = 1
	tr.Append(free, Keep, &types.Transition{State: free, Valid: true})
	tr.Append(free, Right, &types.Transition{State: free, Valid: false})
	tr.Append(free, Left, &types.Transition{State: left, Valid: true})
	tr.Append(left, Keep, &types.Transition{State: left, Valid: true})
	tr.Append(left, Right, &types.Transition{State: closeObs(), Valid: true})

	got := checkEvents(tr)
	if got[EventInvalid] != 1 {
		t.Errorf("expected the invalid change at step 1, got %v", got)
	}
	if step, ok := got[EventOvertake]; !ok || step != 4 {
		t.Errorf("expected the overtake to finish at step 4, got %v", got)
	}
	if step, ok := got[EventNearCollision]; !ok || step != 4 {
		t.Errorf("expected the near collision at step 4, got %v", got)
	}
	if _, ok := got[EventCollision]; ok {
		t.Errorf("unexpected collision")
	}
}

func TestCollisionEvent(t *testing.T) {
	cfg := DefaultConfig()
	tr := types.NewTrace()
	tr.Append(farObs(), Keep, &types.Transition{State: farObs(), Valid: true})
	tr.Append(farObs(), Keep, &types.Transition{State: Sentinel(cfg, 2), Valid: true, Lost: true, Done: true})

	got := checkEvents(tr)
	if step, ok := got[EventCollision]; !ok || step != 1 {
		t.Errorf("expected the collision at step 1, got %v", got)
	}
	if _, ok := got[EventNearCollision]; ok {
		t.Errorf("the absent ego is never too close")
	}
	if _, ok := got[EventOvertake]; ok {
		t.Errorf("unexpected overtake")
	}
}
