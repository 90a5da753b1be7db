package highway

import (
	"fmt"
	"strings"

	"github.com/zeu5/sumo-lane-rl/sumo"
)

// defaultLanes is assumed when the ego vehicle is not on a regular road
const defaultLanes = 2

// Translator turns an intent into at most one lane change command
type Translator struct {
	cfg *Config
}

func NewTranslator(cfg *Config) *Translator {
	return &Translator{cfg: cfg}
}

// Apply the intent to the ego vehicle. Keep is always valid and issues
// no command. A lane change is valid when the target lane exists and the
// simulator accepted the request. Only fatal session errors are returned.
func (t *Translator) Apply(s sumo.Session, intent Intent) (bool, error) {
	if intent == Keep {
		return true, nil
	}
	if intent != Left && intent != Right {
		return false, nil
	}

	ids, err := s.VehicleIDs()
	if err != nil {
		return false, fmt.Errorf("listing vehicles: %w", err)
	}
	if !sumo.Contains(ids, t.cfg.EgoID) {
		return false, nil
	}

	lane, err := s.LaneIndex(t.cfg.EgoID)
	if err != nil {
		return false, fatalOnly(err)
	}
	lanes, err := t.laneCount(s)
	if err != nil {
		return false, err
	}
	target := lane + intent.delta()
	if target < 0 || target >= lanes {
		return false, nil
	}
	if err := s.ChangeLane(t.cfg.EgoID, target, t.cfg.LaneChangeDuration); err != nil {
		return false, fatalOnly(err)
	}
	return true, nil
}

// laneCount of the road the ego vehicle is on
func (t *Translator) laneCount(s sumo.Session) (int, error) {
	road, err := s.RoadID(t.cfg.EgoID)
	if err != nil {
		return 0, fatalOnly(err)
	}
	// internal junction edges start with ':'
	if road == "" || strings.HasPrefix(road, ":") {
		return defaultLanes, nil
	}
	lanes, err := s.LaneCount(road)
	if err != nil {
		if sumo.IsFatal(err) {
			return 0, err
		}
		return defaultLanes, nil
	}
	return lanes, nil
}

// fatalOnly drops soft errors, they make the intent invalid
func fatalOnly(err error) error {
	if sumo.IsFatal(err) {
		return err
	}
	return nil
}
