package experiments

import (
	"bytes"
	"context"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/zeu5/sumo-lane-rl/highway"
	"github.com/zeu5/sumo-lane-rl/policies"
	"github.com/zeu5/sumo-lane-rl/roadsim"
	"github.com/zeu5/sumo-lane-rl/sumo"
	"github.com/zeu5/sumo-lane-rl/types"
)

func testEnv(horizon int) *highway.Environment {
	cfg := highway.DefaultConfig()
	cfg.Horizon = horizon
	return highway.NewEnvironment(roadsim.NewLauncher(nil), sumo.Scenario{}, sumo.Options{}, cfg, nil)
}

func testTrainConfig(dir string) TrainConfig {
	defaults := policies.DefaultQLearningConfig(highway.NumStates, highway.NumIntents)
	return TrainConfig{
		Episodes:   3,
		Horizon:    5,
		SaveFile:   dir,
		Alpha:      defaults.Alpha,
		Gamma:      defaults.Gamma,
		Epsilon:    defaults.Epsilon,
		Decay:      defaults.EpsilonDecay,
		MinEpsilon: defaults.MinEpsilon,
		Seed:       11,
	}
}

func TestTrainPersistsAndResumes(t *testing.T) {
	dir := t.TempDir()
	logger := log.New(&bytes.Buffer{})
	store := policies.NewFileStore(dir, highway.NumStates, highway.NumIntents)

	env := testEnv(5)
	defer env.Close()
	policy, err := Train(context.Background(), testTrainConfig(dir), env, store, logger)
	if err != nil {
		t.Fatalf("train: %s", err)
	}
	if len(policy.History()) != 3 {
		t.Errorf("expected 3 returns, got %d", len(policy.History()))
	}
	for _, f := range []string{"q_table.bin", "rewards_history.bin", "rewards.png", "rewards.html", "epsilons.json"} {
		if _, err := os.Stat(path.Join(dir, f)); err != nil {
			t.Errorf("expected %s: %s", f, err)
		}
	}

	resumed, err := Train(context.Background(), testTrainConfig(dir), env, store, logger)
	if err != nil {
		t.Fatalf("resume: %s", err)
	}
	if len(resumed.History()) != 6 {
		t.Errorf("expected the history to be extended to 6, got %d", len(resumed.History()))
	}
	if resumed.Epsilons()[0] != 0.3 {
		t.Errorf("a resumed run explores with the resume epsilon, got %f", resumed.Epsilons()[0])
	}
}

func TestTrainPersistsWhenCancelled(t *testing.T) {
	dir := t.TempDir()
	store := policies.NewFileStore(dir, highway.NumStates, highway.NumIntents)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env := testEnv(5)
	defer env.Close()
	if _, err := Train(ctx, testTrainConfig(dir), env, store, log.New(&bytes.Buffer{})); err == nil {
		t.Errorf("expected the cancellation to be reported")
	}
	if _, err := store.LoadTable(); err != nil {
		t.Errorf("the table should be persisted on interruption: %s", err)
	}
}

func TestDriveSchedule(t *testing.T) {
	env := testEnv(6)
	defer env.Close()
	out := &bytes.Buffer{}
	trace, err := Drive(context.Background(), env, 6, map[int]types.Action{2: highway.Left}, out)
	if err != nil {
		t.Fatalf("drive: %s", err)
	}
	if trace.Len() != 6 {
		t.Errorf("expected 6 steps, got %d", trace.Len())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected a line per step, got %q", out.String())
	}
	if !strings.Contains(lines[1], "lane=0") || !strings.Contains(lines[2], "left, lane=1") {
		t.Errorf("expected the lane change at step 2, got %q", lines[:3])
	}
	if trace.Count(highway.Left.Hash()) != 1 {
		t.Errorf("expected a single lane change")
	}
}

func TestEvaluateWritesComparison(t *testing.T) {
	dir := t.TempDir()
	table := policies.NewQTable(highway.NumStates, highway.NumIntents)
	config := EvaluateConfig{Runs: 1, Episodes: 2, Horizon: 4, SaveFile: dir, Seed: 5, Baseline: true}
	err := Evaluate(context.Background(), config, table, func() (*highway.Environment, error) {
		return testEnv(4), nil
	}, log.New(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("evaluate: %s", err)
	}
	for _, f := range []string{"comparison_config.json", "0_rewards.png", "0_rewards.html", "episodes/greedy_0.jsonl", "episodes/random_0.jsonl", "0_events.json", "0_greedy_visits.json", "0_random_visits.json"} {
		if _, err := os.Stat(path.Join(dir, "evaluation", f)); err != nil {
			t.Errorf("expected %s: %s", f, err)
		}
	}
}

func TestPrintTable(t *testing.T) {
	table := policies.NewQTable(highway.NumStates, highway.NumIntents)
	table.Set(4, 1, 2.5)
	out := &bytes.Buffer{}
	PrintTable(out, table, false)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != highway.NumStates+2 {
		t.Fatalf("expected a header and %d rows, got %d lines", highway.NumStates, len(lines))
	}
	if !strings.Contains(lines[0], "keep") || !strings.Contains(lines[0], "right") {
		t.Errorf("header should name the intents: %q", lines[0])
	}
	if !strings.Contains(lines[6], "2.500") || !strings.Contains(lines[6], "medium") {
		t.Errorf("unexpected row for state 4: %q", lines[6])
	}
	if strings.Contains(out.String(), "\x1b[") {
		t.Errorf("colors should be disabled")
	}
}

// countingLauncher tracks how many sessions are open at the same time
type countingLauncher struct {
	inner   sumo.Launcher
	open    int
	maxOpen int
	starts  int
}

func (c *countingLauncher) Start(ctx context.Context, scenario sumo.Scenario, opts sumo.Options) (sumo.Session, error) {
	s, err := c.inner.Start(ctx, scenario, opts)
	if err != nil {
		return nil, err
	}
	c.starts += 1
	c.open += 1
	if c.open > c.maxOpen {
		c.maxOpen = c.open
	}
	return &countedSession{Session: s, launcher: c}, nil
}

type countedSession struct {
	sumo.Session
	launcher *countingLauncher
	closed   bool
}

func (s *countedSession) Close() error {
	if !s.closed {
		s.closed = true
		s.launcher.open -= 1
	}
	return s.Session.Close()
}

func TestEvaluateKeepsOneSessionOpen(t *testing.T) {
	launcher := &countingLauncher{inner: roadsim.NewLauncher(nil)}
	cfg := highway.DefaultConfig()
	cfg.Horizon = 3
	config := EvaluateConfig{Runs: 2, Episodes: 2, Horizon: 3, SaveFile: t.TempDir(), Seed: 5, Baseline: true}
	err := Evaluate(context.Background(), config, policies.NewQTable(highway.NumStates, highway.NumIntents), func() (*highway.Environment, error) {
		return highway.NewEnvironment(launcher, sumo.Scenario{}, sumo.Options{}, cfg, nil), nil
	}, log.New(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("evaluate: %s", err)
	}
	if launcher.starts != 8 {
		t.Errorf("expected a session per episode, got %d", launcher.starts)
	}
	if launcher.maxOpen != 1 {
		t.Errorf("expected at most one open session, got %d", launcher.maxOpen)
	}
	if launcher.open != 0 {
		t.Errorf("expected every session to be closed, %d still open", launcher.open)
	}
}
