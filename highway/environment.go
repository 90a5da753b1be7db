package highway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zeu5/sumo-lane-rl/sumo"
	"github.com/zeu5/sumo-lane-rl/types"
)

var (
	// ErrNotRunning is returned by Step outside of a running episode
	ErrNotRunning = errors.New("episode is not running")
	// ErrUnknownIntent is returned when the action is not an Intent
	ErrUnknownIntent = errors.New("action is not a lane change intent")
	// ErrLaneCount is returned by Reset when the road does not match the observation space
	ErrLaneCount = errors.New("road lane count does not match the observation space")
)

// Phase of the episode lifecycle
type Phase int

const (
	Uninitialized Phase = iota
	Running
	Done
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Environment is the lane change MDP over a simulator session
type Environment struct {
	cfg      *Config
	launcher sumo.Launcher
	scenario sumo.Scenario
	options  sumo.Options
	logger   *log.Logger

	encoder    *Encoder
	translator *Translator
	reward     *RewardModel

	session sumo.Session
	phase   Phase
	step    int
	last    Reward
}

var _ types.Environment = &Environment{}

func NewEnvironment(launcher sumo.Launcher, scenario sumo.Scenario, options sumo.Options, cfg *Config, logger *log.Logger) *Environment {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Environment{
		cfg:        cfg,
		launcher:   launcher,
		scenario:   scenario,
		options:    options,
		logger:     logger,
		encoder:    NewEncoder(cfg),
		translator: NewTranslator(cfg),
		reward:     NewRewardModel(cfg),
		phase:      Uninitialized,
	}
}

func (e *Environment) Phase() Phase {
	return e.phase
}

// LastReward is the breakdown of the reward returned by the last step
func (e *Environment) LastReward() Reward {
	return e.last
}

// Session is the current simulator session, nil before the first reset
func (e *Environment) Session() sumo.Session {
	return e.session
}

// Reset starts a fresh session, spawns the ego vehicle and returns the initial observation
func (e *Environment) Reset(eCtx *types.EpisodeContext) (types.State, error) {
	ctx := context.Background()
	if eCtx != nil {
		ctx = eCtx.Context
	}
	start := time.Now()

	e.closeSession()
	e.phase = Uninitialized
	e.step = 0
	e.last = Reward{}

	session, err := e.launcher.Start(ctx, e.scenario, e.options)
	if err != nil {
		return nil, fmt.Errorf("starting simulator: %w", err)
	}
	e.session = session

	if err := session.Step(); err != nil {
		return nil, fmt.Errorf("first tick: %w", err)
	}
	if err := session.AddVehicle(e.cfg.EgoID, e.cfg.RouteID, e.cfg.VehicleType); err != nil {
		if sumo.IsFatal(err) {
			return nil, fmt.Errorf("adding ego vehicle: %w", err)
		}
		e.logger.Warn("failed to add ego vehicle", "ego", e.cfg.EgoID, "err", err)
	}
	present, err := e.waitForEgo()
	if err != nil {
		return nil, err
	}
	if !present {
		e.logger.Warn("ego vehicle did not appear", "ego", e.cfg.EgoID, "ticks", e.cfg.SpawnTicks)
	} else {
		lanes, err := e.translator.laneCount(session)
		if err != nil {
			return nil, fmt.Errorf("reading lane count: %w", err)
		}
		if lanes != e.cfg.Lanes {
			return nil, fmt.Errorf("%w: %d lanes, expected %d", ErrLaneCount, lanes, e.cfg.Lanes)
		}
	}
	if err := e.freeze(); err != nil {
		return nil, err
	}

	obs, err := e.encoder.Encode(session, 0)
	if err != nil {
		return nil, err
	}
	e.phase = Running
	if eCtx != nil {
		eCtx.Report.AddTimeEntry(time.Since(start), "env_reset", "highway.Reset")
	}
	e.logger.Debug("reset", "obs", obs)
	return obs, nil
}

// waitForEgo ticks until the ego vehicle is in the world, at most SpawnTicks times
func (e *Environment) waitForEgo() (bool, error) {
	for i := 0; i < e.cfg.SpawnTicks; i++ {
		if err := e.session.Step(); err != nil {
			return false, fmt.Errorf("spawn tick: %w", err)
		}
		ids, err := e.session.VehicleIDs()
		if err != nil {
			return false, fmt.Errorf("listing vehicles: %w", err)
		}
		if sumo.Contains(ids, e.cfg.EgoID) {
			return true, nil
		}
	}
	return false, nil
}

// freeze disables lane changes of the ego vehicle and applies the freeze policy to the others
func (e *Environment) freeze() error {
	ids, err := e.session.VehicleIDs()
	if err != nil {
		return fmt.Errorf("listing vehicles: %w", err)
	}
	for _, id := range ids {
		if id == e.cfg.EgoID {
			if err := e.session.SetLaneChangeMode(id, 0); sumo.IsFatal(err) {
				return err
			}
			continue
		}
		if e.cfg.Freeze == FreezeAll {
			if err := e.session.SetSpeed(id, 0); sumo.IsFatal(err) {
				return err
			}
		}
		if e.cfg.Freeze == FreezeAll || e.cfg.Freeze == FreezeLaneChanges {
			if err := e.session.SetLaneChangeMode(id, 0); sumo.IsFatal(err) {
				return err
			}
		}
	}
	return nil
}

// Step applies the intent, advances one tick and scores the result
func (e *Environment) Step(action types.Action, sCtx *types.StepContext) (*types.Transition, error) {
	if e.phase != Running {
		return nil, ErrNotRunning
	}
	intent, ok := action.(Intent)
	if !ok {
		return nil, ErrUnknownIntent
	}

	ids, err := e.session.VehicleIDs()
	if err != nil {
		return nil, fmt.Errorf("listing vehicles: %w", err)
	}
	if !sumo.Contains(ids, e.cfg.EgoID) {
		return e.lost(intent, false), nil
	}

	valid, err := e.translator.Apply(e.session, intent)
	if err != nil {
		return nil, fmt.Errorf("applying %s: %w", intent, err)
	}

	tickStart := time.Now()
	if err := e.session.Step(); err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}
	if sCtx != nil {
		sCtx.Report.AddTimeEntry(time.Since(tickStart), "tick_time", "highway.Step")
	}

	obs, err := e.encoder.Encode(e.session, e.step+1)
	if err != nil {
		return nil, err
	}
	if obs.Absent {
		return e.lost(intent, valid), nil
	}

	reward, err := e.reward.Evaluate(e.session, intent, valid, obs)
	if err != nil {
		return nil, fmt.Errorf("reading speed: %w", err)
	}
	e.step += 1
	e.last = reward
	done := e.step >= e.cfg.Horizon
	if done {
		e.phase = Done
	}
	if !valid && sCtx != nil {
		sCtx.Report.AddIntEntry(int(intent), "invalid_intent", "highway.Step")
	}
	e.logger.Debug("step", "step", e.step, "intent", intent, "valid", valid, "obs", obs, "reward", reward)

	return &types.Transition{
		State:  obs,
		Reward: reward.Total(),
		Done:   done,
		Valid:  valid,
	}, nil
}

// lost ends the episode with the entity loss outcome
func (e *Environment) lost(intent Intent, valid bool) *types.Transition {
	obs := Sentinel(e.cfg, e.step)
	reward := e.reward.Terms(intent, valid, obs, SpeedReading{})
	e.phase = Done
	e.last = reward
	e.logger.Debug("ego vehicle lost", "step", e.step, "intent", intent)
	return &types.Transition{
		State:  obs,
		Reward: reward.Total(),
		Done:   true,
		Valid:  valid,
		Lost:   true,
	}
}

// Close the session, never fails
func (e *Environment) Close() error {
	e.closeSession()
	e.phase = Uninitialized
	return nil
}

func (e *Environment) closeSession() {
	if e.session == nil {
		return
	}
	if err := e.session.Close(); err != nil {
		e.logger.Warn("closing simulator session", "err", err)
	}
	e.session = nil
}
