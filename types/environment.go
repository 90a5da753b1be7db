package types

type Environment interface {
	// Reset called at the start of each episode
	Reset(*EpisodeContext) (State, error)
	// Step applies the action and advances the environment
	Step(Action, *StepContext) (*Transition, error)
	// Close releases the environment, safe to call in any state
	Close() error
}

// State of the system that RL policies observe
type State interface {
	// Indexed by the Hash
	// Should be deterministic
	Hash() string
	// Actions possible from the state
	Actions() []Action
}

// And Action that RL policy can take
type Action interface {
	// Index of the action
	// Should be deterministic
	Hash() string
}

// Transition is the outcome of a single step
type Transition struct {
	State  State
	Reward float64
	// Done at the horizon or when the controlled entity is lost
	Done bool
	// Valid is false when the requested action could not be executed
	Valid bool
	// Lost is true when the controlled entity left the world
	Lost bool
}
