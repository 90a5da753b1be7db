package policies

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// QTable is a dense states x actions table of action values, zero initialized
type QTable struct {
	m *mat.Dense
}

func NewQTable(states, actions int) *QTable {
	return &QTable{
		m: mat.NewDense(states, actions, nil),
	}
}

func (q *QTable) Dims() (int, int) {
	return q.m.Dims()
}

func (q *QTable) Get(state, action int) float64 {
	return q.m.At(state, action)
}

func (q *QTable) Set(state, action int, val float64) {
	q.m.Set(state, action, val)
}

// Row returns a copy of the action values of the state
func (q *QTable) Row(state int) []float64 {
	return mat.Row(nil, state, q.m)
}

// ArgMax is the action with the highest value, ties resolve to the earliest index
func (q *QTable) ArgMax(state int) int {
	_, cols := q.m.Dims()
	best := 0
	for a := 1; a < cols; a++ {
		if q.m.At(state, a) > q.m.At(state, best) {
			best = a
		}
	}
	return best
}

func (q *QTable) Max(state int) float64 {
	return q.m.At(state, q.ArgMax(state))
}

func (q *QTable) MarshalBinary() ([]byte, error) {
	return q.m.MarshalBinary()
}

// UnmarshalBinary replaces the table, the stored shape must match the current one
func (q *QTable) UnmarshalBinary(data []byte) error {
	m := &mat.Dense{}
	if err := m.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("decoding q table: %w", err)
	}
	if q.m != nil {
		r, c := q.m.Dims()
		if sr, sc := m.Dims(); sr != r || sc != c {
			return fmt.Errorf("stored q table is %dx%d, expected %dx%d", sr, sc, r, c)
		}
	}
	q.m = m
	return nil
}

func encodeHistory(history []float64) ([]byte, error) {
	if len(history) == 0 {
		return mat.VecDense{}.MarshalBinary()
	}
	data := make([]float64, len(history))
	copy(data, history)
	return mat.NewVecDense(len(data), data).MarshalBinary()
}

func decodeHistory(data []byte) ([]float64, error) {
	v := &mat.VecDense{}
	if err := v.UnmarshalBinary(data); err != nil {
		if errors.Is(err, mat.ErrZeroLength) {
			return []float64{}, nil
		}
		return nil, fmt.Errorf("decoding reward history: %w", err)
	}
	return mat.Col(nil, 0, v), nil
}
