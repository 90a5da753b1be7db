package experiments

import (
	"context"
	"errors"
	"os"
	"path"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/zeu5/sumo-lane-rl/highway"
	"github.com/zeu5/sumo-lane-rl/policies"
	"github.com/zeu5/sumo-lane-rl/types"
	"github.com/zeu5/sumo-lane-rl/util"
)

var (
	storeKind   string
	redisAddr   string
	redisPrefix string
)

// newStore selects where the table and the reward history live
func newStore(ctx context.Context) (policies.Store, func(), error) {
	switch storeKind {
	case "file":
		return policies.NewFileStore(saveFile, highway.NumStates, highway.NumIntents), func() {}, nil
	case "redis":
		store := policies.NewRedisStore(ctx, redisAddr, redisPrefix, highway.NumStates, highway.NumIntents)
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, errors.New("unknown store " + storeKind)
	}
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&storeKind, "store", "file", "Where the q table is kept (file, redis)")
	cmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "127.0.0.1:6379", "Address of the redis store")
	cmd.PersistentFlags().StringVar(&redisPrefix, "redis-prefix", "highway", "Key prefix in the redis store")
}

type TrainConfig struct {
	Episodes    int
	Horizon     int
	SaveFile    string
	Alpha       float64
	Gamma       float64
	Epsilon     float64
	Decay       float64
	MinEpsilon  float64
	Temperature float64
	Seed        uint64
	LogEvery    int
	Progress    bool
}

func (c TrainConfig) record(env *highway.Config) error {
	return util.SaveJson(path.Join(c.SaveFile, "train_config.json"), map[string]interface{}{
		"episodes":     c.Episodes,
		"horizon":      c.Horizon,
		"alpha":        c.Alpha,
		"gamma":        c.Gamma,
		"epsilon":      c.Epsilon,
		"decay":        c.Decay,
		"min_epsilon":  c.MinEpsilon,
		"temperature":  c.Temperature,
		"seed":         c.Seed,
		"backend":      backend,
		"scenario":     scenarioPath,
		"store":        storeKind,
		"invalid_rule": env.InvalidRule.String(),
		"freeze":       env.Freeze.String(),
	})
}

// Train runs Q-learning, resuming from the store when a table is found.
// The table and history are persisted even when the run is interrupted.
func Train(ctx context.Context, config TrainConfig, env *highway.Environment, store policies.Store, logger *log.Logger) (*policies.QLearning, error) {
	qConfig := policies.DefaultQLearningConfig(highway.NumStates, highway.NumIntents)
	qConfig.Alpha = config.Alpha
	qConfig.Gamma = config.Gamma
	qConfig.Epsilon = config.Epsilon
	qConfig.EpsilonDecay = config.Decay
	qConfig.MinEpsilon = config.MinEpsilon
	qConfig.Temperature = config.Temperature
	qConfig.Seed = config.Seed
	policy := policies.NewQLearning(qConfig)

	restored, err := policy.Restore(store)
	if err != nil {
		return nil, err
	}
	if restored {
		logger.Info("resuming from the stored q table", "episodes", len(policy.History()), "epsilon", policy.Epsilon())
	} else {
		logger.Info("starting from a new q table")
	}

	var output *types.ProgressOutput
	var printer *types.TerminalPrinter
	if config.Progress {
		output = types.NewProgressOutput()
		printer = types.NewTerminalPrinter(ctx, os.Stdout, output, 200*time.Millisecond)
		printer.Start()
	}

	exp := types.NewExperiment("qlearning", policy, env)
	result, runErr := exp.Run(ctx, &types.RunConfig{
		Episodes:       config.Episodes,
		Horizon:        config.Horizon,
		RecordEpisodes: true,
		ReportSavePath: config.SaveFile,
		LogEvery:       config.LogEvery,
		Logger:         logger,
		Progress:       output,
	})
	if printer != nil {
		printer.Stop()
	}
	if result != nil {
		logger.Info("training finished",
			"episodes", result.Episodes,
			"errors", result.WithError,
			"lost", result.Lost,
			"timesteps", result.TotalTimestep,
			"epsilon", policy.Epsilon(),
		)
	}

	if err := policy.Persist(store); err != nil {
		logger.Error("failed to persist the q table", "err", err)
		if runErr == nil {
			runErr = err
		}
	}
	if err := util.SaveJson(path.Join(config.SaveFile, "epsilons.json"), policy.Epsilons()); err != nil {
		logger.Warn("failed to save epsilons", "err", err)
	}
	if err := plotHistory(config.SaveFile, "Q-learning", policy.History()); err != nil {
		logger.Warn("failed to plot rewards", "err", err)
	}
	return policy, runErr
}

func TrainCommand() *cobra.Command {
	config := TrainConfig{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the lane change agent with tabular Q-learning",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			startProfiling()
			defer stopProfiling()

			env, err := newEnvironment(logger)
			if err != nil {
				return err
			}
			defer env.Close()
			store, closeStore, err := newStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			config.Episodes = episodes
			config.Horizon = horizon
			config.SaveFile = saveFile
			config.Seed = runSeed()
			envCfg, _ := envConfig()
			if err := config.record(envCfg); err != nil {
				return err
			}
			_, err = Train(ctx, config, env, store, logger)
			if errors.Is(err, context.Canceled) {
				logger.Warn("training interrupted")
				return nil
			}
			return err
		},
	}
	defaults := policies.DefaultQLearningConfig(highway.NumStates, highway.NumIntents)
	cmd.Flags().Float64Var(&config.Alpha, "alpha", defaults.Alpha, "Learning rate")
	cmd.Flags().Float64Var(&config.Gamma, "gamma", defaults.Gamma, "Discount factor")
	cmd.Flags().Float64Var(&config.Epsilon, "epsilon", defaults.Epsilon, "Initial exploration rate")
	cmd.Flags().Float64Var(&config.Decay, "decay", defaults.EpsilonDecay, "Exploration decay per episode")
	cmd.Flags().Float64Var(&config.MinEpsilon, "min-epsilon", defaults.MinEpsilon, "Lower bound of the exploration rate")
	cmd.Flags().Float64Var(&config.Temperature, "temperature", 0, "Softmax temperature, 0 uses epsilon greedy exploration")
	cmd.Flags().IntVar(&config.LogEvery, "log-every", 10, "Log a summary every n episodes")
	cmd.Flags().BoolVar(&config.Progress, "progress", true, "Show a live progress line")
	addStoreFlags(cmd)
	return cmd
}
