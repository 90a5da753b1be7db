package types

import "errors"

type counterState struct {
	pos   int
	limit int
}

func (c counterState) Hash() string {
	return string(rune('a' + c.pos))
}

func (c counterState) Actions() []Action {
	return []Action{stepAction("up"), stepAction("stay"), stepAction("bad")}
}

type stepAction string

func (s stepAction) Hash() string {
	return string(s)
}

var errBroken = errors.New("broken")

// counterEnv moves one position up on "up", rejects "bad" and loses the
// entity on reaching the limit
type counterEnv struct {
	limit     int
	pos       int
	failReset bool
	closed    bool
}

func (c *counterEnv) Reset(_ *EpisodeContext) (State, error) {
	if c.failReset {
		return nil, errBroken
	}
	c.pos = 0
	return counterState{pos: 0, limit: c.limit}, nil
}

func (c *counterEnv) Step(a Action, _ *StepContext) (*Transition, error) {
	tr := &Transition{Valid: true}
	switch a.Hash() {
	case "up":
		c.pos += 1
		tr.Reward = 1
	case "bad":
		tr.Valid = false
		tr.Reward = -5
	}
	if c.pos >= c.limit {
		tr.Done = true
		tr.Lost = true
		tr.Reward = -100
	}
	tr.State = counterState{pos: c.pos, limit: c.limit}
	return tr, nil
}

func (c *counterEnv) Close() error {
	c.closed = true
	return nil
}

// fixedPolicy plays the actions in order and then keeps playing the last one
type fixedPolicy struct {
	plan       []string
	iterations int
	updates    int
}

func (f *fixedPolicy) UpdateIteration(_ int, _ *Trace) {
	f.iterations += 1
}

func (f *fixedPolicy) NextAction(step int, _ State, actions []Action) (Action, bool) {
	if len(f.plan) == 0 {
		return nil, false
	}
	want := f.plan[len(f.plan)-1]
	if step < len(f.plan) {
		want = f.plan[step]
	}
	for _, a := range actions {
		if a.Hash() == want {
			return a, true
		}
	}
	return nil, false
}

func (f *fixedPolicy) Update(_ int, _ State, _ Action, _ *Transition) {
	f.updates += 1
}

func (f *fixedPolicy) Reset() {}
