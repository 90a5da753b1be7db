package sumo

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsFatal(t *testing.T) {
	cases := []struct {
		err   error
		fatal bool
	}{
		{nil, false},
		{ErrUnknownVehicle, false},
		{fmt.Errorf("lane of veh1: %w", ErrUnknownVehicle), false},
		{fmt.Errorf("change lane: %w", ErrRejected), false},
		{ErrNoSession, true},
		{fmt.Errorf("step: %w", ErrConnection), true},
		{errors.New("broken pipe"), true},
	}
	for _, c := range cases {
		if got := IsFatal(c.err); got != c.fatal {
			t.Errorf("IsFatal(%v) = %v, expected %v", c.err, got, c.fatal)
		}
	}
}

func TestContains(t *testing.T) {
	ids := []string{"obs0", "vehAgent"}
	if !Contains(ids, "vehAgent") {
		t.Errorf("expected vehAgent to be found")
	}
	if Contains(ids, "obs1") {
		t.Errorf("obs1 should not be found")
	}
	if Contains(nil, "vehAgent") {
		t.Errorf("empty snapshot contains nothing")
	}
}
