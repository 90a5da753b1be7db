package experiments

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/zeu5/sumo-lane-rl/highway"
	"github.com/zeu5/sumo-lane-rl/policies"
	"github.com/zeu5/sumo-lane-rl/types"
)

type EvaluateConfig struct {
	Runs     int
	Episodes int
	Horizon  int
	SaveFile string
	Seed     uint64
	Baseline bool
}

// Evaluate compares the greedy policy of the learned table with a random baseline.
// Every experiment drives its own environment.
func Evaluate(ctx context.Context, config EvaluateConfig, table *policies.QTable, newEnv func() (*highway.Environment, error), logger *log.Logger) error {
	recordPath := path.Join(config.SaveFile, "evaluation")
	c := types.NewComparison(&types.ComparisonConfig{
		Runs:           config.Runs,
		Episodes:       config.Episodes,
		Horizon:        config.Horizon,
		RecordPath:     recordPath,
		RecordEpisodes: true,
		LogEvery:       10,
		Logger:         logger,
		Extra: map[string]interface{}{
			"seed":     config.Seed,
			"backend":  backend,
			"scenario": scenarioPath,
		},
	})
	c.AddAnalysis("rewards", types.NewRewardAnalyzer(highway.Keep.Hash()), types.RewardComparator(recordPath, 10))
	c.AddAnalysis("coverage", types.NewVisitAnalyzer(), types.CoverageComparator(recordPath, func(run int, name string, cov types.Coverage) {
		logger.Info("coverage", "run", run, "exp", name, "states", cov.States, "of", highway.NumStates, "edges", cov.Edges)
	}))
	c.AddAnalysis("events", types.NewEventAnalyzer(path.Join(recordPath, "events"), highway.Events()...), types.EventComparator(recordPath, func(run int, exp, event string, s types.EventStats) {
		logger.Info("event", "run", run, "exp", exp, "event", event, "first_episode", s.FirstEpisode, "episodes", s.Episodes)
	}))
	c.AddAnalysis("summary", types.NewRewardAnalyzer(highway.Keep.Hash()), types.SummaryComparator(func(run int, name string, s types.Summary) {
		logger.Info("evaluation", "run", run, "exp", name, "returns", s)
	}))

	greedyEnv, err := newEnv()
	if err != nil {
		return err
	}
	c.AddExperiment(types.NewExperiment("greedy", policies.NewGreedy(table), greedyEnv))
	if config.Baseline {
		randomEnv, err := newEnv()
		if err != nil {
			return err
		}
		c.AddExperiment(types.NewExperiment("random", types.NewRandomPolicy(config.Seed), randomEnv))
	}
	defer func() {
		for _, e := range c.Experiments {
			e.Close()
		}
	}()
	return c.Run(ctx)
}

func EvaluateCommand() *cobra.Command {
	config := EvaluateConfig{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the learned table greedily against a random baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			store, closeStore, err := newStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			table, err := store.LoadTable()
			if errors.Is(err, policies.ErrNotFound) {
				return fmt.Errorf("nothing to evaluate, train first: %w", err)
			}
			if err != nil {
				return err
			}

			config.Episodes = episodes
			config.Horizon = horizon
			config.SaveFile = saveFile
			config.Seed = runSeed()
			err = Evaluate(ctx, config, table, func() (*highway.Environment, error) {
				return newEnvironment(logger)
			}, logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&config.Runs, "runs", 1, "Number of evaluation runs")
	cmd.Flags().BoolVar(&config.Baseline, "baseline", true, "Also run the random baseline")
	addStoreFlags(cmd)
	return cmd
}
