package sumo

import "errors"

var (
	// ErrUnknownVehicle is returned when the queried vehicle is not in the world
	ErrUnknownVehicle = errors.New("unknown vehicle")
	// ErrRejected is returned when the simulator refuses a command
	ErrRejected = errors.New("command rejected")
	// ErrNoSession is returned by a session that has been closed
	ErrNoSession = errors.New("no active session")
	// ErrConnection wraps failures to reach the simulator
	ErrConnection = errors.New("simulator connection failed")
)

// IsFatal reports whether the session can no longer be used after err
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnknownVehicle) || errors.Is(err, ErrRejected) {
		return false
	}
	return true
}
