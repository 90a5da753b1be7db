package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/zeu5/sumo-lane-rl/util"
)

// ErrTooManyErrors is returned when an experiment is aborted after consecutive failed episodes
var ErrTooManyErrors = errors.New("too many consecutive episode errors")

type RunConfig struct {
	// execution configuration
	CurrentRun int
	Episodes   int
	Horizon    int
	Analyzers  []Analyzer

	// threshold to abort the experiment
	ConsecutiveErrorsAbort int

	// record a json line per episode under ReportSavePath/episodes
	RecordEpisodes bool
	ReportSavePath string

	// log a summary every LogEvery episodes, 0 disables the summaries
	LogEvery int
	Logger   *log.Logger
	// Progress receives the status line, nil disables it
	Progress *ProgressOutput
}

// EpisodeSummary is the per episode record
type EpisodeSummary struct {
	Episode int     `json:"episode"`
	Return  float64 `json:"return"`
	Steps   int     `json:"steps"`
	Invalid int     `json:"invalid"`
	Lost    bool    `json:"lost"`
	Error   string  `json:"error,omitempty"`
}

// ExperimentResult counts the outcomes of the episodes of a run
type ExperimentResult struct {
	Episodes      int
	WithError     int
	HorizonEnd    int
	Terminal      int
	Lost          int
	TotalTimestep int
}

// Experiment encapsulates the different parameters to configure an agent and analyze the traces
type Experiment struct {
	Name        string
	policy      Policy
	environment Environment
}

// NewExperiment creates a new experiment instance
func NewExperiment(name string, policy Policy, environment Environment) *Experiment {
	return &Experiment{
		Name:        name,
		policy:      policy,
		environment: environment,
	}
}

func (e *Experiment) Policy() Policy {
	return e.policy
}

func (e *Experiment) recordEpisode(rConfig *RunConfig, summary EpisodeSummary) error {
	file := path.Join(rConfig.ReportSavePath, "episodes", e.Name+"_"+strconv.Itoa(rConfig.CurrentRun)+".jsonl")
	bs, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return util.AppendToFile(file, string(bs))
}

// recordFailure saves the report of a failed episode next to the episode records
func (e *Experiment) recordFailure(rConfig *RunConfig, eCtx *EpisodeContext) error {
	file := path.Join(rConfig.ReportSavePath, "episodes", e.Name+"_"+strconv.Itoa(rConfig.CurrentRun)+"_"+strconv.Itoa(eCtx.Episode)+"_error.txt")
	return util.WriteToFile(file, eCtx.Report.StringTimeline(), eCtx.Report.StringPerType())
}

func summarize(eCtx *EpisodeContext) EpisodeSummary {
	s := EpisodeSummary{
		Episode: eCtx.Episode,
		Return:  eCtx.Trace.Return(),
		Steps:   eCtx.Timesteps,
		Invalid: eCtx.Trace.Invalid(),
		Lost:    eCtx.Trace.Lost(),
	}
	if eCtx.Err != nil {
		s.Error = eCtx.Err.Error()
	}
	return s
}

// Run the experiment for the specified number of episodes.
// Episodes run one after the other, cancelling ctx stops the run between steps.
func (e *Experiment) Run(ctx context.Context, rConfig *RunConfig) (*ExperimentResult, error) {
	logger := rConfig.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.With("exp", e.Name)
	abortAfter := rConfig.ConsecutiveErrorsAbort
	if abortAfter <= 0 {
		abortAfter = 10
	}

	if rConfig.RecordEpisodes {
		folder := path.Join(rConfig.ReportSavePath, "episodes")
		if err := os.MkdirAll(folder, os.ModePerm); err != nil {
			return nil, fmt.Errorf("creating episodes folder: %w", err)
		}
	}

	agent := NewAgent(&AgentConfig{
		Horizon:     rConfig.Horizon,
		Policy:      e.policy,
		Environment: e.environment,
	})

	result := &ExperimentResult{}
	consecutiveErrors := 0
	episodePadding := len(strconv.Itoa(rConfig.Episodes))

	for episode := 0; episode < rConfig.Episodes; episode++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		eCtx := NewEpisodeContext(ctx, episode, e.Name)
		agent.RunEpisode(eCtx)
		eCtx.Cancel()

		result.Episodes += 1
		result.TotalTimestep += eCtx.Timesteps
		summary := summarize(eCtx)

		if eCtx.Err != nil {
			if errors.Is(eCtx.Err, context.Canceled) && ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.WithError += 1
			consecutiveErrors += 1
			logger.Error("episode failed", "episode", episode, "err", eCtx.Err)
			eCtx.Report.AddLog(eCtx.Err.Error(), "error")
			logger.Debug("episode report", "episode", episode, "report", eCtx.Report.StringPerType())
			if rConfig.RecordEpisodes {
				if err := e.recordFailure(rConfig, eCtx); err != nil {
					logger.Warn("failed to record episode report", "episode", episode, "err", err)
				}
			}
		} else {
			consecutiveErrors = 0
			if eCtx.HorizonEnd {
				result.HorizonEnd += 1
			} else {
				result.Terminal += 1
			}
			if summary.Lost {
				result.Lost += 1
			}
		}

		// analyze the trace, even if the episode ended with an error
		for _, a := range rConfig.Analyzers {
			a.Analyze(rConfig.CurrentRun, episode, e.Name, eCtx.Trace)
		}

		if rConfig.RecordEpisodes {
			if err := e.recordEpisode(rConfig, summary); err != nil {
				logger.Warn("failed to record episode", "episode", episode, "err", err)
			}
		}

		if rConfig.LogEvery > 0 && (episode+1)%rConfig.LogEvery == 0 && eCtx.Err == nil {
			logger.Info("episode",
				"episode", episode+1,
				"return", fmt.Sprintf("%.2f", summary.Return),
				"steps", summary.Steps,
				"invalid", summary.Invalid,
				"lost", summary.Lost,
				"step_time", eCtx.Report.MeanDuration("step_time"),
			)
		}

		if rConfig.Progress != nil {
			rConfig.Progress.Set(fmt.Sprintf("Exp:%s, Eps:%*d/%d, Err:%*d, Horizon:%*d, Lost:%*d, Return:%8.2f",
				e.Name, episodePadding, result.Episodes, rConfig.Episodes, episodePadding, result.WithError,
				episodePadding, result.HorizonEnd, episodePadding, result.Lost, summary.Return))
		}

		if consecutiveErrors >= abortAfter {
			logger.Error("aborting experiment", "consecutive_errors", consecutiveErrors)
			return result, fmt.Errorf("%w: %d in experiment %s, last: %s", ErrTooManyErrors, consecutiveErrors, e.Name, eCtx.Err)
		}
	}
	return result, nil
}

// Close the environment of the experiment
func (e *Experiment) Close() error {
	return e.environment.Close()
}

// Reset the policy of the experiment between runs
func (e *Experiment) Reset() {
	e.policy.Reset()
}

// Generic Dataset that contains information after processing the traces
type DataSet interface{}

// Analyzer compresses the information in the traces to a DataSet
type Analyzer interface {
	// Run, episode, experiment, trace
	Analyze(int, int, string, *Trace)
	// Resulting dataset
	DataSet() DataSet
	// Reset the analyzer
	Reset()
}

// Comparator differentiates between different datasets with associated names
// run, total episodes, experiment names, datasets
type Comparator func(int, int, []string, []DataSet) error
