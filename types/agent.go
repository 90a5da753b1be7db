package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoAction is set on the episode when the policy could not pick an action
var ErrNoAction = errors.New("policy returned no action")

type AgentConfig struct {
	Horizon     int
	Policy      Policy
	Environment Environment
}

// RL Agent configured with the corresponding
// policy and environment
type Agent struct {
	config      *AgentConfig
	policy      Policy
	environment Environment
}

// Instantiates a new Agent
func NewAgent(config *AgentConfig) *Agent {
	return &Agent{
		config:      config,
		policy:      config.Policy,
		environment: config.Environment,
	}
}

// RunEpisode resets the environment and then selects, steps and updates
// until the environment signals done or the horizon is reached.
// The outcome is recorded in the episode context.
func (a *Agent) RunEpisode(eCtx *EpisodeContext) {
	start := time.Now()
	defer func() {
		eCtx.RunDuration = time.Since(start)
	}()

	state, err := a.environment.Reset(eCtx)
	if err != nil {
		eCtx.SetError(fmt.Errorf("reset: %w", err))
		return
	}
	eCtx.Report.AddTimeEntry(time.Since(start), "reset_time", "agent.RunEpisode")

	for i := 0; i < a.config.Horizon; i++ {
		select {
		case <-eCtx.Context.Done():
			eCtx.SetError(eCtx.Context.Err())
			return
		default:
		}

		actions := state.Actions()
		if len(actions) == 0 {
			eCtx.Terminal = true
			break
		}
		action, ok := a.policy.NextAction(i, state, actions)
		if !ok {
			eCtx.SetError(ErrNoAction)
			return
		}

		stepStart := time.Now()
		transition, err := a.environment.Step(action, eCtx.StepContext(i))
		if err != nil {
			eCtx.SetError(fmt.Errorf("step %d: %w", i, err))
			return
		}
		eCtx.Report.AddTimeEntry(time.Since(stepStart), "step_time", "agent.RunEpisode")

		a.policy.Update(i, state, action, transition)
		eCtx.Trace.Append(state, action, transition)
		eCtx.Timesteps += 1
		state = transition.State

		if transition.Done {
			break
		}
	}

	if eCtx.Timesteps >= a.config.Horizon {
		eCtx.HorizonEnd = true
	} else {
		eCtx.Terminal = true
	}
	a.policy.UpdateIteration(eCtx.Episode, eCtx.Trace)
}
