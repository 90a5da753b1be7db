package highway

import (
	"context"
	"fmt"
	"sort"

	"github.com/zeu5/sumo-lane-rl/sumo"
)

type fakeVehicle struct {
	lane     int
	pos      float64
	speed    float64
	maxSpeed float64
	road     string
}

// fakeSession is a scripted world that records the commands it receives
type fakeSession struct {
	vehicles map[string]*fakeVehicle
	pending  map[string]*fakeVehicle
	lanes    map[string]int
	// errs makes every query on the vehicle fail with the error
	errs     map[string]error
	commands []string
	steps    int
	closed   bool
	// changeErr is returned by ChangeLane
	changeErr error
}

var _ sumo.Session = &fakeSession{}

func newFakeSession() *fakeSession {
	return &fakeSession{
		vehicles: make(map[string]*fakeVehicle),
		pending:  make(map[string]*fakeVehicle),
		lanes:    map[string]int{"E0": 2},
		errs:     make(map[string]error),
		commands: make([]string, 0),
	}
}

func (f *fakeSession) put(id string, lane int, pos float64) *fakeVehicle {
	v := &fakeVehicle{lane: lane, pos: pos, maxSpeed: 10, road: "E0"}
	f.vehicles[id] = v
	return v
}

func (f *fakeSession) record(format string, args ...interface{}) {
	f.commands = append(f.commands, fmt.Sprintf(format, args...))
}

func (f *fakeSession) get(id string) (*fakeVehicle, error) {
	if f.closed {
		return nil, sumo.ErrNoSession
	}
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	v, ok := f.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sumo.ErrUnknownVehicle, id)
	}
	return v, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSession) Step() error {
	if f.closed {
		return sumo.ErrNoSession
	}
	f.steps += 1
	for id, v := range f.pending {
		f.vehicles[id] = v
	}
	f.pending = make(map[string]*fakeVehicle)
	return nil
}

func (f *fakeSession) AddVehicle(id, routeID, typeID string) error {
	if f.steps == 0 {
		return fmt.Errorf("%w: not ready", sumo.ErrRejected)
	}
	f.record("add %s %s %s", id, routeID, typeID)
	f.pending[id] = &fakeVehicle{lane: 0, pos: 0, maxSpeed: 10, road: "E0"}
	return nil
}

func (f *fakeSession) VehicleIDs() ([]string, error) {
	if f.closed {
		return nil, sumo.ErrNoSession
	}
	ids := make([]string, 0, len(f.vehicles))
	for id := range f.vehicles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeSession) LaneIndex(id string) (int, error) {
	v, err := f.get(id)
	if err != nil {
		return 0, err
	}
	return v.lane, nil
}

func (f *fakeSession) LanePosition(id string) (float64, error) {
	v, err := f.get(id)
	if err != nil {
		return 0, err
	}
	return v.pos, nil
}

func (f *fakeSession) Speed(id string) (float64, error) {
	v, err := f.get(id)
	if err != nil {
		return 0, err
	}
	return v.speed, nil
}

func (f *fakeSession) MaxSpeed(id string) (float64, error) {
	v, err := f.get(id)
	if err != nil {
		return 0, err
	}
	return v.maxSpeed, nil
}

func (f *fakeSession) RoadID(id string) (string, error) {
	v, err := f.get(id)
	if err != nil {
		return "", err
	}
	return v.road, nil
}

func (f *fakeSession) LaneCount(roadID string) (int, error) {
	n, ok := f.lanes[roadID]
	if !ok {
		return 0, fmt.Errorf("%w: unknown road %s", sumo.ErrRejected, roadID)
	}
	return n, nil
}

func (f *fakeSession) Leader(id string, dist float64) (sumo.Leader, bool, error) {
	ego, err := f.get(id)
	if err != nil {
		return sumo.Leader{}, false, err
	}
	best := sumo.Leader{}
	found := false
	for oid, v := range f.vehicles {
		if oid == id || v.lane != ego.lane || v.pos <= ego.pos {
			continue
		}
		gap := v.pos - ego.pos
		if gap <= dist && (!found || gap < best.Gap) {
			best = sumo.Leader{ID: oid, Gap: gap}
			found = true
		}
	}
	return best, found, nil
}

func (f *fakeSession) SetSpeed(id string, speed float64) error {
	if _, err := f.get(id); err != nil {
		return err
	}
	f.record("speed %s %.1f", id, speed)
	return nil
}

func (f *fakeSession) SetLaneChangeMode(id string, mode int) error {
	if _, err := f.get(id); err != nil {
		return err
	}
	f.record("lcmode %s %d", id, mode)
	return nil
}

func (f *fakeSession) ChangeLane(id string, lane int, duration float64) error {
	if _, err := f.get(id); err != nil {
		return err
	}
	if f.changeErr != nil {
		return f.changeErr
	}
	f.record("changelane %s %d %.1f", id, lane, duration)
	return nil
}

// fakeLauncher hands out scripted sessions
type fakeLauncher struct {
	setup    func(*fakeSession)
	sessions []*fakeSession
	err      error
}

func (l *fakeLauncher) Start(_ context.Context, _ sumo.Scenario, _ sumo.Options) (sumo.Session, error) {
	if l.err != nil {
		return nil, l.err
	}
	s := newFakeSession()
	if l.setup != nil {
		l.setup(s)
	}
	l.sessions = append(l.sessions, s)
	return s, nil
}
