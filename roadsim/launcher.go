package roadsim

import (
	"context"
	"fmt"
	"sync"

	"github.com/zeu5/sumo-lane-rl/sumo"
)

// Launcher starts in-process sessions, every session owns its world
type Launcher struct {
	scenario *Scenario

	lock    *sync.Mutex
	started int
}

var _ sumo.Launcher = &Launcher{}

// NewLauncher with the scenario used when sumo.Scenario has no config path.
// A nil scenario selects DefaultScenario.
func NewLauncher(scenario *Scenario) *Launcher {
	if scenario == nil {
		scenario = DefaultScenario()
	}
	return &Launcher{
		scenario: scenario,
		lock:     new(sync.Mutex),
	}
}

func (l *Launcher) Start(ctx context.Context, scenario sumo.Scenario, opts sumo.Options) (sumo.Session, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s", sumo.ErrConnection, ctx.Err())
	default:
	}
	switch opts.CollisionAction {
	case "", "remove", "warn":
	default:
		return nil, fmt.Errorf("unsupported collision action %q", opts.CollisionAction)
	}

	s := l.scenario
	if scenario.ConfigPath != "" {
		loaded, err := LoadScenario(scenario.ConfigPath)
		if err != nil {
			return nil, err
		}
		s = loaded
	}

	l.lock.Lock()
	l.started += 1
	l.lock.Unlock()
	return newSession(s, opts), nil
}

// Started is the number of sessions started so far
func (l *Launcher) Started() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.started
}
