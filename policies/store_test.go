package policies

import (
	"context"
	"os"
	"path"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/zeu5/sumo-lane-rl/types"
)

func learnedPolicy() *QLearning {
	q := NewQLearning(DefaultQLearningConfig(18, 3))
	q.Table().Set(4, 1, 0.75)
	q.Table().Set(17, 2, -12.5)
	trace := types.NewTrace()
	trace.Append(testState(0), testAction(0), &types.Transition{State: testState(1), Reward: 3})
	q.UpdateIteration(0, trace)
	q.UpdateIteration(1, trace)
	return q
}

func checkRestored(t *testing.T, store Store) {
	t.Helper()
	q := learnedPolicy()
	if err := q.Persist(store); err != nil {
		t.Fatalf("persist: %s", err)
	}

	restored := NewQLearning(DefaultQLearningConfig(18, 3))
	found, err := restored.Restore(store)
	if err != nil || !found {
		t.Fatalf("restore: %v %v", found, err)
	}
	if restored.Table().Get(4, 1) != 0.75 || restored.Table().Get(17, 2) != -12.5 {
		t.Errorf("restored table differs")
	}
	if restored.Epsilon() != 0.3 {
		t.Errorf("expected the resume epsilon, got %f", restored.Epsilon())
	}
	history := restored.History()
	if len(history) != 2 || history[0] != 3 || history[1] != 3 {
		t.Errorf("unexpected history %v", history)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := path.Join(t.TempDir(), "run")
	store := NewFileStore(dir, 18, 3)
	checkRestored(t, store)

	if _, err := os.Stat(store.TablePath()); err != nil {
		t.Errorf("expected q_table.bin: %s", err)
	}
	if _, err := os.Stat(store.HistoryPath()); err != nil {
		t.Errorf("expected rewards_history.bin: %s", err)
	}
}

func TestFileStoreEmpty(t *testing.T) {
	store := NewFileStore(t.TempDir(), 18, 3)
	q := NewQLearning(DefaultQLearningConfig(18, 3))
	found, err := q.Restore(store)
	if err != nil || found {
		t.Fatalf("expected nothing to restore, got %v %v", found, err)
	}
	if q.Epsilon() != 1 {
		t.Errorf("a fresh start keeps the initial epsilon")
	}

	// a table persisted before any episode completed has an empty history
	if err := q.Persist(store); err != nil {
		t.Fatalf("persist: %s", err)
	}
	history, err := store.LoadHistory()
	if err != nil || len(history) != 0 {
		t.Errorf("expected an empty history, got %v %v", history, err)
	}
}

func TestFileStoreShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	if err := NewFileStore(dir, 4, 2).SaveTable(NewQTable(4, 2)); err != nil {
		t.Fatalf("save: %s", err)
	}
	if _, err := NewFileStore(dir, 18, 3).LoadTable(); err == nil {
		t.Errorf("expected a shape error")
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	server := miniredis.RunT(t)
	store := NewRedisStore(context.Background(), server.Addr(), "lane", 18, 3)
	defer store.Close()

	if _, err := store.LoadTable(); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	checkRestored(t, store)
	if !server.Exists("lane:q_table") || !server.Exists("lane:rewards_history") {
		t.Errorf("expected both keys under the prefix, got %v", server.Keys())
	}
}
