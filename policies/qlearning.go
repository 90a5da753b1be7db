package policies

import (
	"errors"
	"math"

	"github.com/zeu5/sumo-lane-rl/types"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Indexed states and actions address rows and columns of the table
type Indexed interface {
	Index() int
}

type QLearningConfig struct {
	States  int
	Actions int

	Alpha        float64
	Gamma        float64
	Epsilon      float64
	EpsilonDecay float64
	MinEpsilon   float64
	// ResumeEpsilon replaces Epsilon when a learned table is restored
	ResumeEpsilon float64
	// Temperature > 0 switches exploration to softmax sampling
	Temperature float64
	Seed        uint64
}

func DefaultQLearningConfig(states, actions int) QLearningConfig {
	return QLearningConfig{
		States:        states,
		Actions:       actions,
		Alpha:         0.1,
		Gamma:         0.95,
		Epsilon:       1.0,
		EpsilonDecay:  0.998,
		MinEpsilon:    0.05,
		ResumeEpsilon: 0.3,
	}
}

// QLearning is tabular Q-learning with epsilon greedy (or softmax) exploration
type QLearning struct {
	config   QLearningConfig
	table    *QTable
	epsilon  float64
	history  []float64
	epsilons []float64

	source rand.Source
	rand   *rand.Rand
}

var _ types.Policy = &QLearning{}

func NewQLearning(config QLearningConfig) *QLearning {
	source := rand.NewSource(config.Seed)
	return &QLearning{
		config:   config,
		table:    NewQTable(config.States, config.Actions),
		epsilon:  config.Epsilon,
		history:  make([]float64, 0),
		epsilons: make([]float64, 0),
		source:   source,
		rand:     rand.New(source),
	}
}

func (q *QLearning) Table() *QTable {
	return q.table
}

func (q *QLearning) Epsilon() float64 {
	return q.epsilon
}

// History is the return of every episode learned so far, including restored ones
func (q *QLearning) History() []float64 {
	return q.history
}

// Epsilons is the exploration rate used in every episode of this process
func (q *QLearning) Epsilons() []float64 {
	return q.epsilons
}

func (q *QLearning) Reset() {
	q.table = NewQTable(q.config.States, q.config.Actions)
	q.epsilon = q.config.Epsilon
	q.history = make([]float64, 0)
	q.epsilons = make([]float64, 0)
}

func (q *QLearning) NextAction(step int, state types.State, actions []types.Action) (types.Action, bool) {
	s, ok := state.(Indexed)
	if !ok || len(actions) == 0 {
		return nil, false
	}
	if q.config.Temperature > 0 {
		return q.softmax(s.Index(), actions)
	}
	if q.rand.Float64() < q.epsilon {
		return actions[q.rand.Intn(len(actions))], true
	}
	return greedyAmong(q.table, s.Index(), actions)
}

func (q *QLearning) softmax(state int, actions []types.Action) (types.Action, bool) {
	vals := make([]float64, len(actions))
	maxVal := math.Inf(-1)
	for i, a := range actions {
		ia, ok := a.(Indexed)
		if !ok {
			return nil, false
		}
		vals[i] = q.table.Get(state, ia.Index()) / q.config.Temperature
		if vals[i] > maxVal {
			maxVal = vals[i]
		}
	}
	sum := 0.0
	for i, v := range vals {
		vals[i] = math.Exp(v - maxVal)
		sum += vals[i]
	}
	for i := range vals {
		vals[i] = vals[i] / sum
	}
	i, ok := sampleuv.NewWeighted(vals, q.source).Take()
	if !ok {
		return nil, false
	}
	return actions[i], true
}

// Update applies Q[s,a] = (1-alpha)Q[s,a] + alpha(r + gamma max Q[s']).
// Terminal transitions bootstrap from the next state like any other.
func (q *QLearning) Update(step int, state types.State, action types.Action, tr *types.Transition) {
	s, ok1 := state.(Indexed)
	a, ok2 := action.(Indexed)
	if !ok1 || !ok2 || tr == nil {
		return
	}
	next, ok := tr.State.(Indexed)
	if !ok {
		return
	}
	cur := q.table.Get(s.Index(), a.Index())
	target := tr.Reward + q.config.Gamma*q.table.Max(next.Index())
	q.table.Set(s.Index(), a.Index(), (1-q.config.Alpha)*cur+q.config.Alpha*target)
}

// UpdateIteration records the episode return and decays epsilon
func (q *QLearning) UpdateIteration(episode int, trace *types.Trace) {
	q.history = append(q.history, trace.Return())
	q.epsilons = append(q.epsilons, q.epsilon)
	q.epsilon = math.Max(q.config.MinEpsilon, q.epsilon*q.config.EpsilonDecay)
}

// Restore loads a persisted table and its history. When a table is found
// exploration restarts from ResumeEpsilon.
func (q *QLearning) Restore(store Store) (bool, error) {
	table, err := store.LoadTable()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	history, err := store.LoadHistory()
	if err != nil {
		return false, err
	}
	q.table = table
	q.history = history
	q.epsilon = q.config.ResumeEpsilon
	return true, nil
}

func (q *QLearning) Persist(store Store) error {
	if err := store.SaveTable(q.table); err != nil {
		return err
	}
	return store.SaveHistory(q.history)
}

// Greedy always picks the best known action and never learns
type Greedy struct {
	table *QTable
}

var _ types.Policy = &Greedy{}

func NewGreedy(table *QTable) *Greedy {
	return &Greedy{table: table}
}

func (g *Greedy) Reset() {}

func (g *Greedy) UpdateIteration(_ int, _ *types.Trace) {}

func (g *Greedy) Update(_ int, _ types.State, _ types.Action, _ *types.Transition) {}

func (g *Greedy) NextAction(step int, state types.State, actions []types.Action) (types.Action, bool) {
	s, ok := state.(Indexed)
	if !ok {
		return nil, false
	}
	return greedyAmong(g.table, s.Index(), actions)
}

// greedyAmong picks the available action with the highest value, the earliest one on ties
func greedyAmong(table *QTable, state int, actions []types.Action) (types.Action, bool) {
	var best types.Action
	bestVal := math.Inf(-1)
	for _, a := range actions {
		ia, ok := a.(Indexed)
		if !ok {
			continue
		}
		if v := table.Get(state, ia.Index()); best == nil || v > bestVal {
			best = a
			bestVal = v
		}
	}
	return best, best != nil
}
