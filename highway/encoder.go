package highway

import (
	"fmt"

	"github.com/zeu5/sumo-lane-rl/sumo"
)

// Encoder reads the world around the ego vehicle into an Observation
type Encoder struct {
	cfg *Config
}

func NewEncoder(cfg *Config) *Encoder {
	return &Encoder{cfg: cfg}
}

// Encode the current state of the session.
// An absent ego vehicle yields the sentinel observation, only fatal
// session errors are returned.
func (e *Encoder) Encode(s sumo.Session, step int) (Observation, error) {
	ids, err := s.VehicleIDs()
	if err != nil {
		return Sentinel(e.cfg, step), fmt.Errorf("listing vehicles: %w", err)
	}
	if !sumo.Contains(ids, e.cfg.EgoID) {
		return Sentinel(e.cfg, step), nil
	}

	lane, err := s.LaneIndex(e.cfg.EgoID)
	if err != nil {
		if sumo.IsFatal(err) {
			return Sentinel(e.cfg, step), fmt.Errorf("ego lane: %w", err)
		}
		return Sentinel(e.cfg, step), nil
	}
	lane = e.clampLane(lane)

	same, found, err := e.sameLaneGap(s)
	if err != nil {
		return Sentinel(e.cfg, step), err
	}
	if !found {
		same = e.cfg.SensingRange
	}
	other, found, err := e.adjacentLaneGap(s, ids, lane)
	if err != nil {
		return Sentinel(e.cfg, step), err
	}
	if !found {
		other = e.cfg.SensingRange
	}

	speed, err := s.Speed(e.cfg.EgoID)
	if err != nil {
		if sumo.IsFatal(err) {
			return Sentinel(e.cfg, step), fmt.Errorf("ego speed: %w", err)
		}
		speed = 0
	}

	same = e.clip(same)
	other = e.clip(other)
	return Observation{
		Lane:        lane,
		Same:        same,
		Other:       other,
		SameBucket:  Bucket(same, e.cfg.CloseThreshold, e.cfg.FarThreshold),
		OtherBucket: Bucket(other, e.cfg.CloseThreshold, e.cfg.FarThreshold),
		Speed:       speed,
		Step:        step,
	}, nil
}

// sameLaneGap to the leader of the ego vehicle within the sensing range
func (e *Encoder) sameLaneGap(s sumo.Session) (float64, bool, error) {
	leader, found, err := s.Leader(e.cfg.EgoID, e.cfg.SensingRange)
	if err != nil {
		if sumo.IsFatal(err) {
			return 0, false, fmt.Errorf("ego leader: %w", err)
		}
		return 0, false, nil
	}
	if !found {
		return 0, false, nil
	}
	return leader.Gap, true, nil
}

// adjacentLaneGap is the smallest strictly positive forward offset of a
// vehicle in the adjacent lane within the sensing range. Vehicles that
// leave the world while being scanned are skipped.
func (e *Encoder) adjacentLaneGap(s sumo.Session, ids []string, lane int) (float64, bool, error) {
	egoPos, err := s.LanePosition(e.cfg.EgoID)
	if err != nil {
		if sumo.IsFatal(err) {
			return 0, false, fmt.Errorf("ego position: %w", err)
		}
		return 0, false, nil
	}
	other := adjacentLane(lane)

	best := e.cfg.SensingRange
	found := false
	for _, id := range ids {
		if id == e.cfg.EgoID {
			continue
		}
		offset, ok, err := e.forwardOffset(s, id, other, egoPos)
		if err != nil {
			return 0, false, err
		}
		if ok && offset < best {
			best = offset
			found = true
		}
	}
	return best, found, nil
}

// forwardOffset of the vehicle if it is in the given lane and ahead of egoPos
func (e *Encoder) forwardOffset(s sumo.Session, id string, lane int, egoPos float64) (float64, bool, error) {
	vehLane, err := s.LaneIndex(id)
	if err != nil {
		if sumo.IsFatal(err) {
			return 0, false, fmt.Errorf("lane of %s: %w", id, err)
		}
		return 0, false, nil
	}
	if vehLane != lane {
		return 0, false, nil
	}
	pos, err := s.LanePosition(id)
	if err != nil {
		if sumo.IsFatal(err) {
			return 0, false, fmt.Errorf("position of %s: %w", id, err)
		}
		return 0, false, nil
	}
	offset := pos - egoPos
	if offset <= 0 {
		return 0, false, nil
	}
	return offset, true, nil
}

func (e *Encoder) clip(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d > e.cfg.SensingRange {
		return e.cfg.SensingRange
	}
	return d
}

func (e *Encoder) clampLane(lane int) int {
	if lane < 0 {
		return 0
	}
	if lane >= e.cfg.Lanes {
		return e.cfg.Lanes - 1
	}
	return lane
}

// adjacentLane on a two lane road
func adjacentLane(lane int) int {
	return 1 - lane
}
