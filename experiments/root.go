package experiments

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/zeu5/sumo-lane-rl/highway"
	"github.com/zeu5/sumo-lane-rl/roadsim"
	"github.com/zeu5/sumo-lane-rl/simserver"
	"github.com/zeu5/sumo-lane-rl/sumo"
)

var (
	episodes     int
	horizon      int
	saveFile     string
	backend      string
	addr         string
	scenarioPath string
	logLevel     string
	seed         uint64

	invalidRule     string
	freezePolicy    string
	collisionAction string
	gui             bool

	cpuprofile string
	memprofile string
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:          "sumo-lane-rl",
		Short:        "Lane change reinforcement learning over a traffic simulator",
		SilenceUsage: true,
	}
	rootCommand.PersistentFlags().IntVarP(&episodes, "episodes", "e", 500, "Number of episodes to run")
	rootCommand.PersistentFlags().IntVar(&horizon, "horizon", 200, "Horizon of each episode")
	rootCommand.PersistentFlags().StringVarP(&saveFile, "save", "s", "results", "Save the result data in the specified folder")
	rootCommand.PersistentFlags().StringVar(&backend, "backend", "local", "Simulator backend, local or remote")
	rootCommand.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:7070", "Address of the simulator bridge")
	rootCommand.PersistentFlags().StringVar(&scenarioPath, "scenario", "", "Scenario file, the built in two lane road when empty")
	rootCommand.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCommand.PersistentFlags().Uint64Var(&seed, "seed", 0, "Seed of the exploration, 0 picks one from the clock")
	rootCommand.PersistentFlags().StringVar(&invalidRule, "invalid-rule", highway.InvalidShortCircuit.String(), "How the invalid intent penalty combines with the other terms")
	rootCommand.PersistentFlags().StringVar(&freezePolicy, "freeze", highway.FreezeAll.String(), "Freeze policy for the other vehicles (all, lanechanges, none)")
	rootCommand.PersistentFlags().StringVar(&collisionAction, "collision-action", "remove", "Simulator collision action (remove, warn)")
	rootCommand.PersistentFlags().BoolVar(&gui, "gui", false, "Ask the simulator for its graphical interface")
	rootCommand.PersistentFlags().StringVar(&cpuprofile, "cpuprofile", "", "write cpu profile to `file` in the save folder")
	rootCommand.PersistentFlags().StringVar(&memprofile, "memprofile", "", "write memory profile to `file` in the save folder")
	// adding the subcommands here
	rootCommand.AddCommand(TrainCommand())
	rootCommand.AddCommand(EvaluateCommand())
	rootCommand.AddCommand(DriveCommand())
	rootCommand.AddCommand(ServeCommand())
	rootCommand.AddCommand(PlotCommand())
	rootCommand.AddCommand(InspectCommand())
	return rootCommand
}

func newLogger() (*log.Logger, error) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	}), nil
}

// signalContext is cancelled on interrupt so that runs can persist before exiting
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSeed() uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}

func newLauncher() (sumo.Launcher, error) {
	switch backend {
	case "local":
		return roadsim.NewLauncher(nil), nil
	case "remote":
		return simserver.NewRemote(addr), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func simScenario() sumo.Scenario {
	return sumo.Scenario{Name: "obstacles", ConfigPath: scenarioPath}
}

func simOptions() sumo.Options {
	return sumo.Options{GUI: gui, CollisionAction: collisionAction}
}

func envConfig() (*highway.Config, error) {
	cfg := highway.DefaultConfig()
	cfg.Horizon = horizon
	rule, err := highway.ParseInvalidRule(invalidRule)
	if err != nil {
		return nil, err
	}
	cfg.InvalidRule = rule
	freeze, err := highway.ParseFreezePolicy(freezePolicy)
	if err != nil {
		return nil, err
	}
	cfg.Freeze = freeze
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newEnvironment wires the simulator backend selected by the flags
func newEnvironment(logger *log.Logger) (*highway.Environment, error) {
	cfg, err := envConfig()
	if err != nil {
		return nil, err
	}
	launcher, err := newLauncher()
	if err != nil {
		return nil, err
	}
	return highway.NewEnvironment(launcher, simScenario(), simOptions(), cfg, logger.WithPrefix("env")), nil
}
