package roadsim

import (
	"math"
	"sort"
)

type vehicle struct {
	id    string
	vtype VehicleType
	lane  int
	pos   float64
	speed float64

	// fixed speed set by a command, negative when the vehicle follows traffic
	override float64
	// autonomous lane changes are not modelled, the mode is only kept
	lcMode int
	// requested lane, -1 when there is no request
	targetLane int
	// lane changed during the current tick
	changed bool
}

func (v *vehicle) rear() float64 {
	return v.pos - v.vtype.Length
}

type pendingVehicle struct {
	spec  VehicleSpec
	vtype VehicleType
}

// world is the state of one simulation. One tick is one second.
type world struct {
	scenario *Scenario
	vehicles map[string]*vehicle
	// insertion order, VehicleIDs is reported in this order
	order   []string
	pending []*pendingVehicle
	time    int

	removeOnCollision bool
	collisions        int
	arrived           int
}

func newWorld(s *Scenario, removeOnCollision bool) *world {
	w := &world{
		scenario:          s,
		vehicles:          make(map[string]*vehicle),
		order:             make([]string, 0),
		pending:           make([]*pendingVehicle, 0),
		removeOnCollision: removeOnCollision,
	}
	for _, spec := range s.Vehicles {
		vtype, _ := s.vehicleType(spec.Type)
		w.pending = append(w.pending, &pendingVehicle{spec: spec, vtype: vtype})
	}
	return w
}

func (w *world) ids() []string {
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}

// step advances the world by one tick: lane changes, movement,
// collisions, arrivals and then insertion of departing vehicles
func (w *world) step() {
	w.time += 1
	for _, v := range w.vehicles {
		v.changed = false
		if v.targetLane >= 0 {
			if v.targetLane < w.scenario.Road.Lanes && v.targetLane != v.lane {
				v.lane = v.targetLane
				v.changed = true
			}
			v.targetLane = -1
		}
	}

	for _, lane := range w.lanes() {
		var leader *vehicle
		for _, v := range lane {
			w.move(v, leader)
			leader = v
		}
	}

	w.detectCollisions()

	for _, id := range w.ids() {
		if v := w.vehicles[id]; v.rear() > w.scenario.Road.Length {
			w.remove(id)
			w.arrived += 1
		}
	}

	w.insertPending()
}

func (w *world) move(v *vehicle, leader *vehicle) {
	limit := v.vtype.MaxSpeed
	if w.scenario.Road.SpeedLimit > 0 && w.scenario.Road.SpeedLimit < limit {
		limit = w.scenario.Road.SpeedLimit
	}
	target := v.speed + v.vtype.Accel
	if v.override >= 0 {
		target = v.override
	}
	if target > limit {
		target = limit
	}
	if leader != nil {
		// the leader has already moved this tick
		gap := leader.rear() - v.vtype.MinGap - v.pos
		if leader.vtype.Decel > 0 {
			gap += leader.speed * leader.speed / (2 * leader.vtype.Decel)
		}
		if safe := safeSpeed(gap, v.vtype.Decel); target > safe {
			target = safe
		}
	}
	floor := v.speed - v.vtype.Decel
	if floor < 0 {
		floor = 0
	}
	if target < floor {
		target = floor
	}
	v.speed = target
	v.pos += target
}

// safeSpeed is the highest speed v for which moving v and then braking
// at decel still stops within gap: v + v^2/(2*decel) <= gap
func safeSpeed(gap, decel float64) float64 {
	if gap <= 0 {
		return 0
	}
	if decel <= 0 {
		return gap
	}
	return -decel + math.Sqrt(decel*decel+2*decel*gap)
}

// lanes returns the vehicles of every lane sorted front to back
func (w *world) lanes() [][]*vehicle {
	out := make([][]*vehicle, w.scenario.Road.Lanes)
	for _, id := range w.order {
		v := w.vehicles[id]
		out[v.lane] = append(out[v.lane], v)
	}
	for _, lane := range out {
		sort.SliceStable(lane, func(i, j int) bool {
			return lane[i].pos > lane[j].pos
		})
	}
	return out
}

func (w *world) detectCollisions() {
	victims := make(map[string]bool)
	for _, lane := range w.lanes() {
		for i := 1; i < len(lane); i++ {
			leader, follower := lane[i-1], lane[i]
			if follower.pos <= leader.rear() {
				continue
			}
			w.collisions += 1
			switch {
			case follower.changed:
				victims[follower.id] = true
			case leader.changed:
				victims[leader.id] = true
			default:
				victims[follower.id] = true
			}
		}
	}
	if !w.removeOnCollision {
		return
	}
	for _, id := range w.ids() {
		if victims[id] {
			w.remove(id)
		}
	}
}

func (w *world) insertPending() {
	remaining := make([]*pendingVehicle, 0, len(w.pending))
	for _, p := range w.pending {
		if p.spec.Depart >= w.time || w.blocked(p) {
			remaining = append(remaining, p)
			continue
		}
		v := &vehicle{
			id:         p.spec.ID,
			vtype:      p.vtype,
			lane:       p.spec.Lane,
			pos:        p.spec.Pos,
			speed:      p.spec.Speed,
			override:   -1,
			targetLane: -1,
		}
		if p.spec.Stopped {
			v.speed = 0
			v.override = 0
		}
		w.vehicles[v.id] = v
		w.order = append(w.order, v.id)
	}
	w.pending = remaining
}

func (w *world) blocked(p *pendingVehicle) bool {
	front := p.spec.Pos
	rear := front - p.vtype.Length
	for _, v := range w.vehicles {
		if v.lane != p.spec.Lane {
			continue
		}
		if v.rear()-p.vtype.MinGap < front && rear-v.vtype.MinGap < v.pos {
			return true
		}
	}
	return false
}

func (w *world) isPending(id string) bool {
	for _, p := range w.pending {
		if p.spec.ID == id {
			return true
		}
	}
	return false
}

func (w *world) remove(id string) {
	delete(w.vehicles, id)
	for i, o := range w.order {
		if o == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

// leader of the vehicle in its lane, gap is measured bumper to bumper
func (w *world) leader(v *vehicle, dist float64) (*vehicle, float64, bool) {
	var best *vehicle
	for _, o := range w.vehicles {
		if o.id == v.id || o.lane != v.lane || o.pos <= v.pos {
			continue
		}
		if best == nil || o.pos < best.pos {
			best = o
		}
	}
	if best == nil {
		return nil, 0, false
	}
	gap := best.rear() - v.pos
	if gap > dist {
		return nil, 0, false
	}
	return best, gap, true
}
