package policies

import (
	"errors"
	"fmt"
	"os"
	"path"
)

// ErrNotFound is returned when nothing has been persisted yet
var ErrNotFound = errors.New("no persisted q table")

// Store persists the learned table and the per-episode returns
type Store interface {
	LoadTable() (*QTable, error)
	LoadHistory() ([]float64, error)
	SaveTable(*QTable) error
	SaveHistory([]float64) error
}

const (
	tableName   = "q_table"
	historyName = "rewards_history"
)

// FileStore keeps q_table.bin and rewards_history.bin in a directory
type FileStore struct {
	dir     string
	states  int
	actions int
}

var _ Store = &FileStore{}

func NewFileStore(dir string, states, actions int) *FileStore {
	return &FileStore{
		dir:     dir,
		states:  states,
		actions: actions,
	}
}

func (f *FileStore) TablePath() string {
	return path.Join(f.dir, tableName+".bin")
}

func (f *FileStore) HistoryPath() string {
	return path.Join(f.dir, historyName+".bin")
}

func (f *FileStore) LoadTable() (*QTable, error) {
	data, err := os.ReadFile(f.TablePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	q := NewQTable(f.states, f.actions)
	if err := q.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%s: %w", f.TablePath(), err)
	}
	return q, nil
}

// LoadHistory returns an empty history when none was saved
func (f *FileStore) LoadHistory() ([]float64, error) {
	data, err := os.ReadFile(f.HistoryPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []float64{}, nil
		}
		return nil, err
	}
	return decodeHistory(data)
}

func (f *FileStore) SaveTable(q *QTable) error {
	data, err := q.MarshalBinary()
	if err != nil {
		return err
	}
	return f.write(f.TablePath(), data)
}

func (f *FileStore) SaveHistory(history []float64) error {
	data, err := encodeHistory(history)
	if err != nil {
		return err
	}
	return f.write(f.HistoryPath(), data)
}

func (f *FileStore) write(p string, data []byte) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}
