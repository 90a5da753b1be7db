package types

import (
	"os"
	"path"
	"strconv"

	"github.com/zeu5/sumo-lane-rl/util"
)

// EventDesc names a condition over an episode, Check returns
// whether it occurred and the step it occurred at
type EventDesc struct {
	Name  string
	Check func(*Trace) (bool, int)
}

// MonitorEvent turns a monitor into an event that occurs when the monitor succeeds
func MonitorEvent(name string, m *Monitor) EventDesc {
	return EventDesc{
		Name: name,
		Check: func(t *Trace) (bool, int) {
			step, ok := m.Check(t)
			return ok, step
		},
	}
}

// EventStats of one event over the episodes of an experiment
type EventStats struct {
	FirstEpisode int
	FirstStep    int
	Episodes     int
}

// EventAnalyzer checks all the events on every episode and
// records the traces of the episodes where one occurred under savePath
type EventAnalyzer struct {
	savePath string
	events   []EventDesc
	stats    map[string]*EventStats
}

var _ Analyzer = &EventAnalyzer{}

// NewEventAnalyzer does not record traces when savePath is empty
func NewEventAnalyzer(savePath string, events ...EventDesc) *EventAnalyzer {
	if savePath != "" {
		os.MkdirAll(savePath, 0777)
	}
	return &EventAnalyzer{
		savePath: savePath,
		events:   events,
		stats:    make(map[string]*EventStats),
	}
}

func (e *EventAnalyzer) Analyze(run int, episode int, exp string, trace *Trace) {
	for _, ev := range e.events {
		found, step := ev.Check(trace)
		if !found {
			continue
		}
		s, ok := e.stats[ev.Name]
		if !ok {
			s = &EventStats{FirstEpisode: episode, FirstStep: step}
			e.stats[ev.Name] = s
		}
		s.Episodes += 1
		if e.savePath != "" && !ok {
			p := path.Join(e.savePath, strconv.Itoa(run)+"_"+exp+"_"+ev.Name+"_"+strconv.Itoa(episode)+"_step"+strconv.Itoa(step)+".json")
			recordSteps(p, trace)
		}
	}
}

func (e *EventAnalyzer) DataSet() DataSet {
	out := make(map[string]EventStats, len(e.stats))
	for k, s := range e.stats {
		out[k] = *s
	}
	return out
}

func (e *EventAnalyzer) Reset() {
	e.stats = make(map[string]*EventStats)
}

type recordedStep struct {
	State  string
	Action string
	Next   string
	Reward float64
	Valid  bool
	Lost   bool
}

func recordSteps(p string, t *Trace) error {
	steps := make([]recordedStep, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		s, a, tr, _ := t.Get(i)
		step := recordedStep{State: s.Hash(), Action: a.Hash()}
		if tr != nil {
			if tr.State != nil {
				step.Next = tr.State.Hash()
			}
			step.Reward = tr.Reward
			step.Valid = tr.Valid
			step.Lost = tr.Lost
		}
		steps = append(steps, step)
	}
	return util.SaveJson(p, steps)
}

// EventComparator writes the event statistics of every experiment
// to savePath/<run>_events.json and hands each of them to report
func EventComparator(savePath string, report func(run int, exp, event string, s EventStats)) Comparator {
	return func(run int, _ int, names []string, datasets []DataSet) error {
		data := make(map[string]map[string]EventStats)
		for i, exp := range names {
			stats, ok := datasets[i].(map[string]EventStats)
			if !ok {
				continue
			}
			if report != nil {
				for ev, s := range stats {
					report(run, exp, ev, s)
				}
			}
			data[exp] = stats
		}
		return util.SaveJson(path.Join(savePath, strconv.Itoa(run)+"_events.json"), data)
	}
}
