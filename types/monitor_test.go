package types

import (
	"context"
	"os"
	"path"
	"testing"
)

func traceOf(t *testing.T, limit int, plan ...string) *Trace {
	t.Helper()
	agent := NewAgent(&AgentConfig{Horizon: len(plan), Policy: &fixedPolicy{plan: plan}, Environment: &counterEnv{limit: limit}})
	eCtx := NewEpisodeContext(context.Background(), 0, "test")
	defer eCtx.Cancel()
	agent.RunEpisode(eCtx)
	return eCtx.Trace
}

func upThenStay() *Monitor {
	m := NewMonitor()
	m.Build().
		On(OnAction("up").And(Executed()), "moved").
		On(OnAction("stay"), "rested").
		MarkSuccess()
	return m
}

func TestMonitorSequence(t *testing.T) {
	m := upThenStay()
	step, ok := m.Check(traceOf(t, 10, "stay", "bad", "up", "bad", "stay"))
	if !ok || step != 4 {
		t.Errorf("expected success at step 4, got %d %v", step, ok)
	}
	if _, ok := m.Check(traceOf(t, 10, "stay", "stay", "up")); ok {
		t.Errorf("expected no success without the final stay")
	}
	// checks do not share the monitor position
	if step, ok := m.Check(traceOf(t, 10, "up", "stay")); !ok || step != 1 {
		t.Errorf("expected success at step 1, got %d %v", step, ok)
	}
}

func TestMonitorConditions(t *testing.T) {
	m := NewMonitor()
	m.Build().On(OnAction("up").Or(OnAction("bad")).And(Executed().Not()), "rejected").MarkSuccess()
	step, ok := m.Check(traceOf(t, 10, "up", "stay", "bad"))
	if !ok || step != 2 {
		t.Errorf("expected the rejected step 2, got %d %v", step, ok)
	}

	initial := NewMonitor()
	initial.Build().MarkSuccess()
	if step, ok := initial.Check(NewTrace()); !ok || step != 0 {
		t.Errorf("a successful initial state accepts the empty trace")
	}
	if initial.At("missing") != nil {
		t.Errorf("expected no builder for a missing state")
	}
}

func TestEventAnalyzer(t *testing.T) {
	dir := t.TempDir()
	lost := EventDesc{
		Name: "lost",
		Check: func(tr *Trace) (bool, int) {
			return tr.Lost(), tr.Len() - 1
		},
	}
	a := NewEventAnalyzer(path.Join(dir, "events"), lost, MonitorEvent("up_stay", upThenStay()))
	a.Analyze(0, 0, "exp", traceOf(t, 10, "stay", "stay"))
	a.Analyze(0, 1, "exp", traceOf(t, 2, "up", "up"))
	a.Analyze(0, 2, "exp", traceOf(t, 2, "up", "stay", "up"))
	a.Analyze(0, 3, "exp", traceOf(t, 2, "up", "up"))

	stats := a.DataSet().(map[string]EventStats)
	if s := stats["lost"]; s.FirstEpisode != 1 || s.FirstStep != 1 || s.Episodes != 3 {
		t.Errorf("unexpected lost stats %+v", s)
	}
	if s := stats["up_stay"]; s.FirstEpisode != 2 || s.FirstStep != 1 || s.Episodes != 1 {
		t.Errorf("unexpected up_stay stats %+v", s)
	}
	if _, err := os.Stat(path.Join(dir, "events", "0_exp_lost_1_step1.json")); err != nil {
		t.Errorf("expected the first lost trace to be recorded: %s", err)
	}
	if _, err := os.Stat(path.Join(dir, "events", "0_exp_lost_3_step1.json")); err == nil {
		t.Errorf("only the first occurrence is recorded")
	}

	if err := EventComparator(dir, nil)(0, 4, []string{"exp"}, []DataSet{a.DataSet()}); err != nil {
		t.Fatalf("compare: %s", err)
	}
	if _, err := os.Stat(path.Join(dir, "0_events.json")); err != nil {
		t.Errorf("expected the events file: %s", err)
	}
	a.Reset()
	if len(a.DataSet().(map[string]EventStats)) != 0 {
		t.Errorf("expected reset to clear the stats")
	}
}

func TestVisitAnalyzer(t *testing.T) {
	a := NewVisitAnalyzer()
	a.Analyze(0, 0, "exp", traceOf(t, 10, "up", "stay", "up"))
	a.Analyze(0, 1, "exp", traceOf(t, 10, "up", "bad"))

	graph := a.DataSet().(*VisitGraph)
	visited := graph.Visited()
	if len(visited) != 2 || visited[0] != "a" || visited[1] != "b" {
		t.Errorf("expected the states a and b to be acted upon, got %v", visited)
	}
	visits := graph.GetVisits()
	if visits["a"] != 2 || visits["b"] != 3 || visits["c"] != 0 {
		t.Errorf("unexpected visits %v", visits)
	}
	// a-up->b, b-stay->b, b-up->c, b-bad->b
	if graph.Edges() != 4 {
		t.Errorf("expected 4 edges, got %d", graph.Edges())
	}

	dir := t.TempDir()
	var got Coverage
	err := CoverageComparator(dir, func(_ int, _ string, c Coverage) { got = c })(0, 2, []string{"exp"}, []DataSet{graph})
	if err != nil {
		t.Fatalf("compare: %s", err)
	}
	if got.States != 2 || got.Edges != 4 {
		t.Errorf("unexpected coverage %+v", got)
	}
	if _, err := os.Stat(path.Join(dir, "0_exp_visits.json")); err != nil {
		t.Errorf("expected the visits file: %s", err)
	}
}
