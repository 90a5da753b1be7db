package types

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"github.com/charmbracelet/log"
)

// ComparisonConfig contains the configuration for the comparison
type ComparisonConfig struct {
	Runs     int // number of runs
	Episodes int // number of episodes
	Horizon  int // number of steps

	RecordPath string // path to store the results

	// threshold to abort an experiment
	ConsecutiveErrorsAbort int
	RecordEpisodes         bool
	LogEvery               int

	Logger *log.Logger
	// Extra is recorded with the configuration
	Extra map[string]interface{}
}

// Comparison contains the different experiments to compare
// The traces obtained from the experiments are analyzed
// The analyzed datasets are then compared
type Comparison struct {
	Experiments []*Experiment
	analyzers   map[string]Analyzer
	comparators map[string]Comparator
	cConfig     *ComparisonConfig
	logger      *log.Logger
}

// NewComparison creates a comparison instance
func NewComparison(config *ComparisonConfig) *Comparison {
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Comparison{
		Experiments: make([]*Experiment, 0),
		analyzers:   make(map[string]Analyzer),
		comparators: make(map[string]Comparator),
		cConfig:     config,
		logger:      logger,
	}
}

// AddAnalysis adds an analyzer and comparator to the comparison
func (c *Comparison) AddAnalysis(name string, analyzer Analyzer, comparator Comparator) {
	c.analyzers[name] = analyzer
	c.comparators[name] = comparator
}

// Add experiments to compare
func (c *Comparison) AddExperiment(e *Experiment) {
	c.Experiments = append(c.Experiments, e)
}

// record the configuration of the comparison
func (c *Comparison) recordConfig() error {
	cfg := c.cConfig
	if err := os.MkdirAll(cfg.RecordPath, 0777); err != nil {
		return err
	}

	out := make(map[string]interface{})
	out["runs"] = cfg.Runs
	out["episodes"] = cfg.Episodes
	out["horizon"] = cfg.Horizon
	out["record_episodes"] = cfg.RecordEpisodes
	for k, v := range cfg.Extra {
		out[k] = v
	}

	experiments := make([]string, 0)
	for _, e := range c.Experiments {
		experiments = append(experiments, e.Name)
	}
	out["experiments"] = experiments

	analyzers := make([]string, 0)
	for name := range c.analyzers {
		analyzers = append(analyzers, name)
	}
	sort.Strings(analyzers)
	out["analyzers"] = analyzers

	bs, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path.Join(cfg.RecordPath, "comparison_config.json"), bs, 0644)
}

// Run the comparison, every experiment runs in sequence for each run
// and the datasets of the analyzers are handed to the comparators.
// The environment of an experiment is closed as soon as it finishes.
func (c *Comparison) Run(ctx context.Context) error {
	if err := c.recordConfig(); err != nil {
		return fmt.Errorf("recording comparison config: %w", err)
	}

	for run := 0; run < c.cConfig.Runs; run++ {
		c.logger.Info("starting run", "run", run+1)
		datasets := make(map[string][]DataSet)
		for name := range c.analyzers {
			datasets[name] = make([]DataSet, len(c.Experiments))
		}

		names := make([]string, len(c.Experiments))
		for i, e := range c.Experiments {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			_, err := e.Run(ctx, c.prepareRunConfig(run))
			if err != nil {
				c.logger.Error("experiment failed", "exp", e.Name, "err", err)
			}
			// one live simulation at a time, the next experiment starts its own
			if err := e.Close(); err != nil {
				c.logger.Warn("failed to close experiment", "exp", e.Name, "err", err)
			}
			for name, a := range c.analyzers {
				datasets[name][i] = a.DataSet()
				a.Reset()
			}
			names[i] = e.Name
			e.Reset()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		for name, comp := range c.comparators {
			if err := comp(run, c.cConfig.Episodes, names, datasets[name]); err != nil {
				c.logger.Warn("comparator failed", "analysis", name, "err", err)
			}
		}
	}
	return nil
}

// prepare the run configuration for the experiment
func (c *Comparison) prepareRunConfig(run int) *RunConfig {
	rCfg := &RunConfig{
		CurrentRun:             run,
		Episodes:               c.cConfig.Episodes,
		Horizon:                c.cConfig.Horizon,
		Analyzers:              make([]Analyzer, 0),
		ConsecutiveErrorsAbort: c.cConfig.ConsecutiveErrorsAbort,
		RecordEpisodes:         c.cConfig.RecordEpisodes,
		ReportSavePath:         c.cConfig.RecordPath,
		LogEvery:               c.cConfig.LogEvery,
		Logger:                 c.logger,
	}
	for _, a := range c.analyzers {
		rCfg.Analyzers = append(rCfg.Analyzers, a)
	}
	return rCfg
}
