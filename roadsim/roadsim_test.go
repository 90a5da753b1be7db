package roadsim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zeu5/sumo-lane-rl/sumo"
)

func start(t *testing.T, s *Scenario, opts sumo.Options) *Session {
	t.Helper()
	session, err := NewLauncher(s).Start(context.Background(), sumo.Scenario{}, opts)
	if err != nil {
		t.Fatalf("failed to start session: %s", err)
	}
	return session.(*Session)
}

func sideBySide() *Scenario {
	return &Scenario{
		Name:   "side-by-side",
		Road:   Road{ID: "E0", Length: 500, Lanes: 2, SpeedLimit: 13.89},
		Routes: []Route{{ID: "r_0", Road: "E0"}},
		Types:  []VehicleType{{ID: "car", MaxSpeed: 13.89, Accel: 2.6, Decel: 4.5, Length: 5, MinGap: 2.5}},
		Vehicles: []VehicleSpec{
			{ID: "a", Route: "r_0", Type: "car", Lane: 0, Pos: 50},
			{ID: "b", Route: "r_0", Type: "car", Lane: 1, Pos: 52},
		},
	}
}

func freeze(s *Session, except string) {
	ids, _ := s.VehicleIDs()
	for _, id := range ids {
		if id != except {
			s.SetSpeed(id, 0)
		}
	}
}

func TestDefaultScenarioIsValid(t *testing.T) {
	if err := DefaultScenario().Validate(); err != nil {
		t.Fatalf("default scenario invalid: %s", err)
	}
}

func TestLoadScenario(t *testing.T) {
	bs, err := DefaultScenario().Marshal()
	if err != nil {
		t.Fatalf("marshal: %s", err)
	}
	p := filepath.Join(t.TempDir(), "obstacles.yaml")
	if err := os.WriteFile(p, bs, 0644); err != nil {
		t.Fatalf("write: %s", err)
	}
	s, err := LoadScenario(p)
	if err != nil {
		t.Fatalf("load: %s", err)
	}
	if s.Road.Lanes != 2 || len(s.Vehicles) != len(DefaultScenario().Vehicles) {
		t.Errorf("loaded scenario differs: %+v", s.Road)
	}
	if _, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for a missing file")
	}
}

func TestInvalidScenarios(t *testing.T) {
	cases := map[string]string{
		"no lanes":      "road: {id: E0, length: 100, lanes: 0}",
		"unknown route": "road: {id: E0, length: 100, lanes: 2}\nvtypes: [{id: car, max_speed: 10, length: 5}]\nvehicles: [{id: v, route: r_1, type: car}]",
		"missing lane":  "road: {id: E0, length: 100, lanes: 2}\nroutes: [{id: r_0, road: E0}]\nvtypes: [{id: car, max_speed: 10, length: 5}]\nvehicles: [{id: v, route: r_0, type: car, lane: 3}]",
		"bad yaml":      "road: [",
	}
	for name, doc := range cases {
		if _, err := ParseScenario([]byte(doc)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestVehiclesAppearAfterFirstStep(t *testing.T) {
	s := start(t, nil, sumo.Options{})

	ids, _ := s.VehicleIDs()
	if len(ids) != 0 {
		t.Errorf("expected empty world before the first step, got %v", ids)
	}
	err := s.AddVehicle("vehAgent", "r_0", "obstacle")
	if !errors.Is(err, sumo.ErrRejected) {
		t.Errorf("expected rejection before the first step, got %v", err)
	}

	s.Step()
	ids, _ = s.VehicleIDs()
	if len(ids) != len(DefaultScenario().Vehicles) {
		t.Errorf("expected all obstacles after the first step, got %v", ids)
	}
	freeze(s, "vehAgent")

	if err := s.AddVehicle("vehAgent", "r_0", "obstacle"); err != nil {
		t.Fatalf("add vehicle: %s", err)
	}
	if err := s.AddVehicle("vehAgent", "r_0", "obstacle"); !errors.Is(err, sumo.ErrRejected) {
		t.Errorf("expected duplicate id to be rejected, got %v", err)
	}
	if err := s.AddVehicle("other", "r_9", "obstacle"); !errors.Is(err, sumo.ErrRejected) {
		t.Errorf("expected unknown route to be rejected, got %v", err)
	}
	ids, _ = s.VehicleIDs()
	if sumo.Contains(ids, "vehAgent") {
		t.Errorf("added vehicle should not appear before the next step")
	}
	s.Step()
	ids, _ = s.VehicleIDs()
	if !sumo.Contains(ids, "vehAgent") {
		t.Errorf("added vehicle should appear after the next step")
	}
	leader, found, err := s.Leader("vehAgent", 100)
	if err != nil || !found {
		t.Fatalf("expected a leader, got %v %v", found, err)
	}
	if leader.ID != "obs0" || leader.Gap != 50 {
		t.Errorf("unexpected leader %+v", leader)
	}
}

func TestStopsBehindStoppedLeader(t *testing.T) {
	s := start(t, nil, sumo.Options{})
	s.Step()
	freeze(s, "vehAgent")
	s.AddVehicle("vehAgent", "r_0", "obstacle")
	for i := 0; i < 40; i++ {
		s.Step()
	}
	if s.Collisions() != 0 {
		t.Fatalf("expected no collisions, got %d", s.Collisions())
	}
	pos, err := s.LanePosition("vehAgent")
	if err != nil {
		t.Fatalf("lane position: %s", err)
	}
	if pos > 55-2.5 || pos < 50 {
		t.Errorf("expected to stop behind obs0, stopped at %f", pos)
	}
	speed, _ := s.Speed("vehAgent")
	if speed > 0.5 {
		t.Errorf("expected to be almost stopped, speed %f", speed)
	}
}

func TestLaneChangeCollisionRemovesMover(t *testing.T) {
	s := start(t, sideBySide(), sumo.Options{})
	s.Step()
	s.SetSpeed("b", 0)
	if err := s.ChangeLane("a", 1, 1); err != nil {
		t.Fatalf("change lane: %s", err)
	}
	s.Step()
	ids, _ := s.VehicleIDs()
	if sumo.Contains(ids, "a") || !sumo.Contains(ids, "b") {
		t.Errorf("expected only the lane changer to be removed, got %v", ids)
	}
	if s.Collisions() != 1 {
		t.Errorf("expected one collision, got %d", s.Collisions())
	}
	if _, err := s.Speed("a"); !errors.Is(err, sumo.ErrUnknownVehicle) {
		t.Errorf("expected unknown vehicle, got %v", err)
	}
}

func TestCollisionWarnKeepsVehicles(t *testing.T) {
	s := start(t, sideBySide(), sumo.Options{CollisionAction: "warn"})
	s.Step()
	s.SetSpeed("b", 0)
	s.ChangeLane("a", 1, 1)
	s.Step()
	ids, _ := s.VehicleIDs()
	if len(ids) != 2 {
		t.Errorf("expected both vehicles, got %v", ids)
	}
	if s.Collisions() != 1 {
		t.Errorf("expected one collision, got %d", s.Collisions())
	}
}

func TestLaneChangeToMissingLaneRejected(t *testing.T) {
	s := start(t, sideBySide(), sumo.Options{})
	s.Step()
	if err := s.ChangeLane("b", 2, 1); !errors.Is(err, sumo.ErrRejected) {
		t.Errorf("expected rejection, got %v", err)
	}
	if _, err := s.LaneCount("E1"); !errors.Is(err, sumo.ErrRejected) {
		t.Errorf("expected unknown road rejection, got %v", err)
	}
	n, err := s.LaneCount("E0")
	if err != nil || n != 2 {
		t.Errorf("expected 2 lanes, got %d %v", n, err)
	}
}

func TestClosedSession(t *testing.T) {
	s := start(t, nil, sumo.Options{})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %s", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close should not fail: %s", err)
	}
	if err := s.Step(); !errors.Is(err, sumo.ErrNoSession) {
		t.Errorf("expected no session, got %v", err)
	}
	if !sumo.IsFatal(s.Step()) {
		t.Errorf("step on a closed session must be fatal")
	}
}

func TestLauncherRejectsUnknownCollisionAction(t *testing.T) {
	l := NewLauncher(nil)
	if _, err := l.Start(context.Background(), sumo.Scenario{}, sumo.Options{CollisionAction: "teleport"}); err == nil {
		t.Errorf("expected an error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Start(ctx, sumo.Scenario{}, sumo.Options{}); !errors.Is(err, sumo.ErrConnection) {
		t.Errorf("expected connection error on cancelled context, got %v", err)
	}
	if l.Started() != 0 {
		t.Errorf("no session should have started")
	}
}

func TestStoppedVehiclesHoldPosition(t *testing.T) {
	scenario := sideBySide()
	scenario.Vehicles[1].Stopped = true
	s := start(t, scenario, sumo.Options{})
	for i := 0; i < 3; i++ {
		s.Step()
	}
	if pos, _ := s.LanePosition("b"); pos != 52 {
		t.Errorf("a stopped vehicle must not move, at %f", pos)
	}
	if speed, _ := s.Speed("b"); speed != 0 {
		t.Errorf("a stopped vehicle must keep speed 0, got %f", speed)
	}
	if pos, _ := s.LanePosition("a"); pos <= 50 {
		t.Errorf("a free vehicle should accelerate, still at %f", pos)
	}

	s.SetSpeed("b", -1)
	s.Step()
	if speed, _ := s.Speed("b"); speed == 0 {
		t.Errorf("releasing the vehicle should let it accelerate")
	}
}
