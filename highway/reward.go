package highway

import (
	"fmt"

	"github.com/zeu5/sumo-lane-rl/sumo"
)

// SpeedReading of the ego vehicle taken after the tick
type SpeedReading struct {
	Speed    float64
	MaxSpeed float64
	// OK is false when the speed could not be read
	OK bool
}

// Reward split into its terms
type Reward struct {
	Speed         float64
	LaneChange    float64
	Invalid       float64
	NearCollision float64
	Loss          float64
}

func (r Reward) Total() float64 {
	return r.Speed + r.LaneChange + r.Invalid + r.NearCollision + r.Loss
}

func (r Reward) String() string {
	return fmt.Sprintf("speed=%.3f lane=%.2f invalid=%.2f near=%.2f loss=%.2f", r.Speed, r.LaneChange, r.Invalid, r.NearCollision, r.Loss)
}

// RewardModel scores transitions
type RewardModel struct {
	cfg *Config
}

func NewRewardModel(cfg *Config) *RewardModel {
	return &RewardModel{cfg: cfg}
}

// Score is a pure function of its inputs
func (m *RewardModel) Score(intent Intent, valid bool, obs Observation, speed SpeedReading) float64 {
	return m.Terms(intent, valid, obs, speed).Total()
}

// Terms computes the reward terms. The loss of the ego vehicle
// short-circuits every other term, an invalid intent combines with
// the rest according to the configured InvalidRule.
func (m *RewardModel) Terms(intent Intent, valid bool, obs Observation, speed SpeedReading) Reward {
	if obs.Absent {
		return Reward{Loss: m.cfg.EntityLossPenalty}
	}
	if !valid && m.cfg.InvalidRule == InvalidShortCircuit {
		return Reward{Invalid: m.cfg.InvalidPenalty}
	}

	r := Reward{Speed: speedTerm(speed)}
	if intent != Keep {
		r.LaneChange = m.cfg.LaneChangeCost
	}
	if obs.Same < m.cfg.NearCollisionDistance {
		r.NearCollision = m.cfg.NearCollisionPenalty
	}
	if !valid {
		r.Invalid = m.cfg.InvalidPenalty
		if m.cfg.InvalidRule == InvalidReplacesCollision {
			r.NearCollision = 0
		}
	}
	return r
}

func speedTerm(s SpeedReading) float64 {
	if !s.OK || s.MaxSpeed <= 0 {
		return 0
	}
	v := s.Speed / s.MaxSpeed
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ReadSpeed queries the current and maximum speed of the ego vehicle
func (m *RewardModel) ReadSpeed(s sumo.Session) (SpeedReading, error) {
	speed, err := s.Speed(m.cfg.EgoID)
	if err != nil {
		return SpeedReading{}, fatalOnly(err)
	}
	maxSpeed, err := s.MaxSpeed(m.cfg.EgoID)
	if err != nil {
		return SpeedReading{}, fatalOnly(err)
	}
	return SpeedReading{Speed: speed, MaxSpeed: maxSpeed, OK: true}, nil
}

// Evaluate reads a fresh speed and scores the transition
func (m *RewardModel) Evaluate(s sumo.Session, intent Intent, valid bool, obs Observation) (Reward, error) {
	if obs.Absent {
		return m.Terms(intent, valid, obs, SpeedReading{}), nil
	}
	speed, err := m.ReadSpeed(s)
	if err != nil {
		return Reward{}, err
	}
	return m.Terms(intent, valid, obs, speed), nil
}
