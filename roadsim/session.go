package roadsim

import (
	"fmt"
	"sync"

	"github.com/zeu5/sumo-lane-rl/sumo"
)

// Session is an in-process simulation implementing sumo.Session
type Session struct {
	lock   *sync.Mutex
	world  *world
	closed bool
}

var _ sumo.Session = &Session{}

func newSession(s *Scenario, opts sumo.Options) *Session {
	return &Session{
		lock:  new(sync.Mutex),
		world: newWorld(s, opts.CollisionAction != "warn"),
	}
}

func (s *Session) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
	return nil
}

func (s *Session) Step() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return sumo.ErrNoSession
	}
	s.world.step()
	return nil
}

// Collisions is the number of collisions detected so far
func (s *Session) Collisions() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.world.collisions
}

func (s *Session) AddVehicle(id, routeID, typeID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return sumo.ErrNoSession
	}
	w := s.world
	if w.time == 0 {
		return fmt.Errorf("%w: adding %s: scenario not loaded before the first step", sumo.ErrRejected, id)
	}
	if _, ok := w.vehicles[id]; ok || w.isPending(id) {
		return fmt.Errorf("%w: vehicle %s already exists", sumo.ErrRejected, id)
	}
	route, ok := w.scenario.route(routeID)
	if !ok {
		return fmt.Errorf("%w: unknown route %s", sumo.ErrRejected, routeID)
	}
	vtype, ok := w.scenario.vehicleType(typeID)
	if !ok {
		return fmt.Errorf("%w: unknown vehicle type %s", sumo.ErrRejected, typeID)
	}
	w.pending = append(w.pending, &pendingVehicle{
		spec: VehicleSpec{
			ID:     id,
			Route:  routeID,
			Type:   typeID,
			Lane:   route.DepartLane,
			Pos:    route.DepartPos,
			Depart: w.time,
		},
		vtype: vtype,
	})
	return nil
}

func (s *Session) VehicleIDs() ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil, sumo.ErrNoSession
	}
	return s.world.ids(), nil
}

// vehicle must be called with the lock held
func (s *Session) vehicle(id string) (*vehicle, error) {
	if s.closed {
		return nil, sumo.ErrNoSession
	}
	v, ok := s.world.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sumo.ErrUnknownVehicle, id)
	}
	return v, nil
}

func (s *Session) LaneIndex(id string) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, err := s.vehicle(id)
	if err != nil {
		return 0, err
	}
	return v.lane, nil
}

func (s *Session) LanePosition(id string) (float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, err := s.vehicle(id)
	if err != nil {
		return 0, err
	}
	return v.pos, nil
}

func (s *Session) Speed(id string) (float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, err := s.vehicle(id)
	if err != nil {
		return 0, err
	}
	return v.speed, nil
}

func (s *Session) MaxSpeed(id string) (float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, err := s.vehicle(id)
	if err != nil {
		return 0, err
	}
	return v.vtype.MaxSpeed, nil
}

func (s *Session) RoadID(id string) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, err := s.vehicle(id); err != nil {
		return "", err
	}
	return s.world.scenario.Road.ID, nil
}

func (s *Session) LaneCount(roadID string) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return 0, sumo.ErrNoSession
	}
	if roadID != s.world.scenario.Road.ID {
		return 0, fmt.Errorf("%w: unknown road %s", sumo.ErrRejected, roadID)
	}
	return s.world.scenario.Road.Lanes, nil
}

func (s *Session) Leader(id string, dist float64) (sumo.Leader, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, err := s.vehicle(id)
	if err != nil {
		return sumo.Leader{}, false, err
	}
	l, gap, ok := s.world.leader(v, dist)
	if !ok {
		return sumo.Leader{}, false, nil
	}
	return sumo.Leader{ID: l.id, Gap: gap}, true, nil
}

func (s *Session) SetSpeed(id string, speed float64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, err := s.vehicle(id)
	if err != nil {
		return err
	}
	if speed < 0 {
		v.override = -1
		return nil
	}
	v.override = speed
	return nil
}

func (s *Session) SetLaneChangeMode(id string, mode int) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, err := s.vehicle(id)
	if err != nil {
		return err
	}
	v.lcMode = mode
	return nil
}

// ChangeLane is applied at the start of the next tick, the duration is not modelled
func (s *Session) ChangeLane(id string, lane int, _ float64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, err := s.vehicle(id)
	if err != nil {
		return err
	}
	if lane < 0 || lane >= s.world.scenario.Road.Lanes {
		return fmt.Errorf("%w: lane %d does not exist on %s", sumo.ErrRejected, lane, s.world.scenario.Road.ID)
	}
	v.targetLane = lane
	return nil
}
