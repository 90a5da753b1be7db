package highway

import (
	"errors"
	"fmt"
)

// Mode selects how observations are rendered as vectors
type Mode int

const (
	// Discrete observations are (lane, bucket(same), bucket(other))
	Discrete Mode = iota
	// Continuous observations are (lane, same, other) with distances clipped to the sensing range
	Continuous
	// Normalized observations are (lane, speed, same, other, step) scaled to [0, 1]
	Normalized
)

func (m Mode) String() string {
	switch m {
	case Discrete:
		return "discrete"
	case Continuous:
		return "continuous"
	case Normalized:
		return "normalized"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "discrete":
		return Discrete, nil
	case "continuous":
		return Continuous, nil
	case "normalized":
		return Normalized, nil
	}
	return Discrete, fmt.Errorf("unknown observation mode %q", s)
}

// InvalidRule decides how the invalid action penalty combines with the other reward terms
type InvalidRule int

const (
	// InvalidShortCircuit scores an invalid intent with exactly the invalid penalty
	InvalidShortCircuit InvalidRule = iota
	// InvalidReplacesCollision drops the near collision term in favour of the invalid penalty
	InvalidReplacesCollision
	// InvalidAdditive adds the invalid penalty to every other term
	InvalidAdditive
)

func (r InvalidRule) String() string {
	switch r {
	case InvalidShortCircuit:
		return "short-circuit"
	case InvalidReplacesCollision:
		return "replace-collision"
	case InvalidAdditive:
		return "additive"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

func ParseInvalidRule(s string) (InvalidRule, error) {
	switch s {
	case "short-circuit":
		return InvalidShortCircuit, nil
	case "replace-collision":
		return InvalidReplacesCollision, nil
	case "additive":
		return InvalidAdditive, nil
	}
	return InvalidShortCircuit, fmt.Errorf("unknown invalid action rule %q", s)
}

// FreezePolicy applied to the other vehicles at reset
type FreezePolicy int

const (
	// FreezeAll stops the other vehicles and disables their lane changes
	FreezeAll FreezePolicy = iota
	// FreezeLaneChanges only disables lane changes of the other vehicles
	FreezeLaneChanges
	FreezeNone
)

func (f FreezePolicy) String() string {
	switch f {
	case FreezeAll:
		return "all"
	case FreezeLaneChanges:
		return "lanechanges"
	case FreezeNone:
		return "none"
	default:
		return fmt.Sprintf("freeze(%d)", int(f))
	}
}

func ParseFreezePolicy(s string) (FreezePolicy, error) {
	switch s {
	case "all":
		return FreezeAll, nil
	case "lanechanges":
		return FreezeLaneChanges, nil
	case "none":
		return FreezeNone, nil
	}
	return FreezeAll, fmt.Errorf("unknown freeze policy %q", s)
}

// Config of the lane change MDP
type Config struct {
	EgoID       string
	RouteID     string
	VehicleType string

	Mode Mode
	// Lanes is the number of lanes the observation space covers
	Lanes int
	// SensingRange is the distance reported when there is no vehicle ahead
	SensingRange float64
	// CloseThreshold and FarThreshold split distances into close, medium and far
	CloseThreshold float64
	FarThreshold   float64
	// NormalizationSpeed divides the speed in Normalized mode
	NormalizationSpeed float64

	LaneChangeCost        float64
	LaneChangeDuration    float64
	InvalidPenalty        float64
	NearCollisionPenalty  float64
	NearCollisionDistance float64
	EntityLossPenalty     float64
	InvalidRule           InvalidRule

	// Horizon is the number of steps of an episode
	Horizon int
	// SpawnTicks bounds the ticks waited at reset for the ego vehicle to appear
	SpawnTicks int
	Freeze     FreezePolicy
}

// DefaultConfig is the discrete two lane setup
func DefaultConfig() *Config {
	return &Config{
		EgoID:       "vehAgent",
		RouteID:     "r_0",
		VehicleType: "obstacle",

		Mode:               Discrete,
		Lanes:              2,
		SensingRange:       100,
		CloseThreshold:     5,
		FarThreshold:       15,
		NormalizationSpeed: 30,

		LaneChangeCost:        -0.2,
		LaneChangeDuration:    1,
		InvalidPenalty:        -5,
		NearCollisionPenalty:  -15,
		NearCollisionDistance: 5,
		EntityLossPenalty:     -100,
		InvalidRule:           InvalidShortCircuit,

		Horizon:    200,
		SpawnTicks: 10,
		Freeze:     FreezeAll,
	}
}

func (c *Config) Validate() error {
	if c.EgoID == "" {
		return errors.New("config: ego id is empty")
	}
	if c.Lanes != 2 {
		return fmt.Errorf("config: the observation space covers two lanes, got %d", c.Lanes)
	}
	if c.SensingRange <= 0 {
		return fmt.Errorf("config: sensing range must be positive, got %f", c.SensingRange)
	}
	if c.CloseThreshold <= 0 || c.CloseThreshold >= c.FarThreshold || c.FarThreshold > c.SensingRange {
		return fmt.Errorf("config: thresholds must satisfy 0 < close < far <= range, got %f %f %f",
			c.CloseThreshold, c.FarThreshold, c.SensingRange)
	}
	if c.Mode == Normalized && c.NormalizationSpeed <= 0 {
		return errors.New("config: normalization speed must be positive")
	}
	for name, v := range map[string]float64{
		"lane change cost":       c.LaneChangeCost,
		"invalid penalty":        c.InvalidPenalty,
		"near collision penalty": c.NearCollisionPenalty,
		"entity loss penalty":    c.EntityLossPenalty,
	} {
		if v > 0 {
			return fmt.Errorf("config: %s must not be positive, got %f", name, v)
		}
	}
	if c.InvalidPenalty > c.LaneChangeCost {
		return errors.New("config: invalid penalty must be larger in magnitude than the lane change cost")
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("config: horizon must be positive, got %d", c.Horizon)
	}
	if c.SpawnTicks < 1 {
		return fmt.Errorf("config: spawn ticks must be at least 1, got %d", c.SpawnTicks)
	}
	return nil
}
