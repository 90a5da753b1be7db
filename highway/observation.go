package highway

import (
	"fmt"

	"github.com/zeu5/sumo-lane-rl/types"
)

// Buckets is the number of distance categories
const Buckets = 3

// Distance categories
const (
	Close = iota
	Medium
	Far
)

// NumStates of the discrete observation space over two lanes
const NumStates = 2 * Buckets * Buckets

// Bucket maps a distance to Close, Medium or Far
func Bucket(dist, closeBelow, farFrom float64) int {
	switch {
	case dist < closeBelow:
		return Close
	case dist < farFrom:
		return Medium
	default:
		return Far
	}
}

// StateIndex is a bijection from (lane, same, other) to [0, NumStates)
func StateIndex(lane, same, other int) int {
	return lane*Buckets*Buckets + same*Buckets + other
}

// DecodeState is the inverse of StateIndex
func DecodeState(index int) (lane, same, other int) {
	lane = index / (Buckets * Buckets)
	same = (index / Buckets) % Buckets
	other = index % Buckets
	return
}

// Observation of the ego vehicle after a step
type Observation struct {
	Lane int
	// Same and Other are the distances to the vehicle ahead in the current and the adjacent lane,
	// clipped to the sensing range
	Same  float64
	Other float64

	SameBucket  int
	OtherBucket int

	Speed float64
	Step  int
	// Absent marks the sentinel observation of a vehicle that left the world
	Absent bool
}

var _ types.State = Observation{}

// Sentinel is the worst case observation used when the ego vehicle is absent
func Sentinel(cfg *Config, step int) Observation {
	return Observation{
		Lane:        0,
		Same:        cfg.SensingRange,
		Other:       cfg.SensingRange,
		SameBucket:  Far,
		OtherBucket: Far,
		Step:        step,
		Absent:      true,
	}
}

func (o Observation) Index() int {
	return StateIndex(o.Lane, o.SameBucket, o.OtherBucket)
}

func (o Observation) Hash() string {
	return fmt.Sprintf("%d|%d|%d", o.Lane, o.SameBucket, o.OtherBucket)
}

// Actions is the closed set of intents
func (o Observation) Actions() []types.Action {
	return []types.Action{Keep, Left, Right}
}

// Vector renders the observation in the configured mode
func (o Observation) Vector(cfg *Config) []float64 {
	switch cfg.Mode {
	case Continuous:
		return []float64{float64(o.Lane), o.Same, o.Other}
	case Normalized:
		return []float64{
			float64(o.Lane),
			o.Speed / cfg.NormalizationSpeed,
			o.Same / cfg.SensingRange,
			o.Other / cfg.SensingRange,
			float64(o.Step) / float64(cfg.Horizon),
		}
	default:
		return []float64{float64(o.Lane), float64(o.SameBucket), float64(o.OtherBucket)}
	}
}

func (o Observation) String() string {
	if o.Absent {
		return "absent"
	}
	return fmt.Sprintf("lane=%d same=%.1f(%d) other=%.1f(%d) speed=%.2f", o.Lane, o.Same, o.SameBucket, o.Other, o.OtherBucket, o.Speed)
}

// Intent is the requested action of a single step.
// Lanes are numbered from the right so Left moves to lane+1.
type Intent int

const (
	Keep Intent = iota
	Left
	Right
)

// NumIntents is the size of the action space
const NumIntents = 3

var _ types.Action = Keep

func (i Intent) Index() int {
	return int(i)
}

func (i Intent) Hash() string {
	return i.String()
}

func (i Intent) String() string {
	switch i {
	case Keep:
		return "keep"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("intent(%d)", int(i))
	}
}

// IntentFromIndex returns the intent at the index of the action space
func IntentFromIndex(i int) (Intent, bool) {
	if i < 0 || i >= NumIntents {
		return Keep, false
	}
	return Intent(i), true
}

// delta is the change of lane index requested by the intent
func (i Intent) delta() int {
	switch i {
	case Left:
		return 1
	case Right:
		return -1
	default:
		return 0
	}
}
