package types

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type EpisodeContext struct {
	Context context.Context
	Cancel  context.CancelFunc // cancel function to stop the episode

	Episode        int
	ExperimentName string

	Trace  *Trace
	Report *EpisodeReport

	// outcome of the episode
	Err         error
	Timesteps   int
	HorizonEnd  bool // ran until the horizon
	Terminal    bool // environment signalled done before the horizon
	RunDuration time.Duration
}

func NewEpisodeContext(ctx context.Context, episode int, experimentName string) *EpisodeContext {
	eCtx, cancel := context.WithCancel(ctx)
	return &EpisodeContext{
		Context:        eCtx,
		Cancel:         cancel,
		Episode:        episode,
		ExperimentName: experimentName,
		Trace:          NewTrace(),
		Report:         NewEpisodeReport(episode, experimentName),
	}
}

func (e *EpisodeContext) SetError(err error) {
	e.Err = err
}

// StepContext for the given step of the episode
func (e *EpisodeContext) StepContext(step int) *StepContext {
	e.Report.setEpisodeStep(step)
	return &StepContext{
		EpisodeContext: e,
		Step:           step,
	}
}

// StepContext carries the episode information into a single step
type StepContext struct {
	*EpisodeContext
	Step int
}

// EPISODE REPORT

// Report of an episode
type EpisodeReport struct {
	EpisodeNumber  int
	ExperimentName string
	episodeStep    int

	nextIndex int       // next available index for an entry
	startTime time.Time // start time to compute timestamp of an entry

	lock *sync.Mutex

	Timeline   []*EpisodeReportEntry // all the entries ordered by index
	TimeValues map[string][]*EpisodeReportEntry
	IntValues  map[string][]*EpisodeReportEntry
	Logs       map[string]string
}

func NewEpisodeReport(episodeNumber int, experimentName string) *EpisodeReport {
	return &EpisodeReport{
		EpisodeNumber:  episodeNumber,
		ExperimentName: experimentName,
		startTime:      time.Now(),
		lock:           new(sync.Mutex),
		Timeline:       make([]*EpisodeReportEntry, 0),
		TimeValues:     make(map[string][]*EpisodeReportEntry),
		IntValues:      make(map[string][]*EpisodeReportEntry),
		Logs:           make(map[string]string),
	}
}

func (e *EpisodeReport) setEpisodeStep(step int) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.episodeStep = step
}

func (e *EpisodeReport) addEntry(value interface{}, entryType, caller string) *EpisodeReportEntry {
	entry := &EpisodeReportEntry{
		Index:       e.nextIndex,
		Timestamp:   time.Since(e.startTime),
		EpisodeStep: e.episodeStep,
		EntryType:   entryType,
		Caller:      caller,
		Value:       value,
	}
	e.nextIndex += 1
	e.Timeline = append(e.Timeline, entry)
	return entry
}

// add a new entry of type int to the report
func (e *EpisodeReport) AddIntEntry(value int, entryType string, caller string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	entry := e.addEntry(value, entryType, caller)
	e.IntValues[entryType] = append(e.IntValues[entryType], entry)
}

// add a new entry of type time.Duration to the report
func (e *EpisodeReport) AddTimeEntry(value time.Duration, entryType string, caller string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	entry := e.addEntry(value, entryType, caller)
	e.TimeValues[entryType] = append(e.TimeValues[entryType], entry)
}

func (e *EpisodeReport) AddLog(value string, key string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.Logs[key] = value
}

// MeanDuration of the time entries of the given type, zero when there are none
func (e *EpisodeReport) MeanDuration(entryType string) time.Duration {
	e.lock.Lock()
	defer e.lock.Unlock()
	entries := e.TimeValues[entryType]
	if len(entries) == 0 {
		return 0
	}
	var total time.Duration
	for _, en := range entries {
		total += en.Value.(time.Duration)
	}
	return total / time.Duration(len(entries))
}

// return a string representation of the report timeline
func (e *EpisodeReport) StringTimeline() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	b := &strings.Builder{}
	fmt.Fprintf(b, "Length: %d\n", len(e.Timeline))
	for _, entry := range e.Timeline {
		b.WriteString(entry.String())
		b.WriteString("\n")
	}
	return b.String()
}

// return a string representation of the report entries per type
func (e *EpisodeReport) StringPerType() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	b := &strings.Builder{}
	for _, entryType := range sortedKeys(e.TimeValues) {
		entries := e.TimeValues[entryType]
		fmt.Fprintf(b, "%s [%d]:\n", entryType, len(entries))
		for _, entry := range entries {
			b.WriteString(entry.StringLite())
			b.WriteString("\n")
		}
	}
	for _, entryType := range sortedKeys(e.IntValues) {
		entries := e.IntValues[entryType]
		fmt.Fprintf(b, "%s [%d]:\n", entryType, len(entries))
		for _, entry := range entries {
			b.WriteString(entry.StringLite())
			b.WriteString("\n")
		}
	}
	for key, value := range e.Logs {
		fmt.Fprintf(b, "%s :\n%s\n", key, value)
	}
	return b.String()
}

func sortedKeys(m map[string][]*EpisodeReportEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ENTRY

// Entry of the Report
type EpisodeReportEntry struct {
	Index     int           // index of the entry, managed by the report
	Timestamp time.Duration // timestamp of the entry, managed by the report

	EpisodeStep int
	EntryType   string
	Caller      string      // the method adding the entry
	Value       interface{} // int or time.Duration
}

func (en *EpisodeReportEntry) String() string {
	switch v := en.Value.(type) {
	case time.Duration:
		return fmt.Sprintf("[ %6d | %5d | %3d ] %20s : %12s (%20s)", en.Index, en.Timestamp.Milliseconds(), en.EpisodeStep, en.EntryType, v.String(), en.Caller)
	case int:
		return fmt.Sprintf("[ %6d | %5d | %3d ] %20s : %5d (%20s)", en.Index, en.Timestamp.Milliseconds(), en.EpisodeStep, en.EntryType, v, en.Caller)
	default:
		return "wrong entry type"
	}
}

func (en *EpisodeReportEntry) StringLite() string {
	switch v := en.Value.(type) {
	case time.Duration:
		return fmt.Sprintf("[ %5d | %3d ] %12s (%20s)", en.Timestamp.Milliseconds(), en.EpisodeStep, v.String(), en.Caller)
	case int:
		return fmt.Sprintf("[ %5d | %3d ] %5d (%20s)", en.Timestamp.Milliseconds(), en.EpisodeStep, v, en.Caller)
	default:
		return "wrong entry type"
	}
}
