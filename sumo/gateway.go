package sumo

import "context"

// Scenario identifies the road network and demand a session is started with
type Scenario struct {
	Name string
	// ConfigPath points to the scenario definition, empty selects the launcher default
	ConfigPath string
}

// Options passed to the simulator at start
type Options struct {
	GUI bool
	// CollisionAction is one of "remove" (default) or "warn"
	CollisionAction string
	// Extra command line arguments for simulators that accept them
	Extra []string
}

// Launcher starts fresh simulator sessions
type Launcher interface {
	Start(ctx context.Context, scenario Scenario, opts Options) (Session, error)
}

// Leader is the nearest vehicle ahead in the same lane
type Leader struct {
	ID  string
	Gap float64
}

// Session is a handle on a single running simulation.
// All vehicle queries and commands are scoped to the session,
// handles obtained from a closed session are invalid.
type Session interface {
	// Close tears down the session, safe to call more than once
	Close() error
	// Step advances the simulation by exactly one tick
	Step() error

	AddVehicle(id, routeID, typeID string) error
	VehicleIDs() ([]string, error)

	LaneIndex(id string) (int, error)
	// LanePosition is the offset of the vehicle front along its lane
	LanePosition(id string) (float64, error)
	Speed(id string) (float64, error)
	MaxSpeed(id string) (float64, error)
	RoadID(id string) (string, error)
	LaneCount(roadID string) (int, error)
	// Leader returns the nearest vehicle ahead within dist, found is false when there is none
	Leader(id string, dist float64) (leader Leader, found bool, err error)

	// SetSpeed fixes the speed of the vehicle, a negative value gives control back to the simulator
	SetSpeed(id string, speed float64) error
	// SetLaneChangeMode 0 disables autonomous lane changing
	SetLaneChangeMode(id string, mode int) error
	// ChangeLane requests a lane change, the simulator may not honor it within the current tick
	ChangeLane(id string, lane int, duration float64) error
}

// Contains checks if the vehicle id is present in the snapshot
func Contains(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}
