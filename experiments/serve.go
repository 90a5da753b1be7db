package experiments

import (
	"github.com/spf13/cobra"
	"github.com/zeu5/sumo-lane-rl/roadsim"
	"github.com/zeu5/sumo-lane-rl/simserver"
)

func ServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the built in simulator over http for remote backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			var scenario *roadsim.Scenario
			if scenarioPath != "" {
				scenario, err = roadsim.LoadScenario(scenarioPath)
				if err != nil {
					return err
				}
			}
			server := simserver.NewServer(ctx, addr, roadsim.NewLauncher(scenario), logger.WithPrefix("bridge"))
			server.Start()
			logger.Info("simulator bridge listening", "addr", addr)
			<-ctx.Done()
			logger.Info("simulator bridge shutting down", "sessions", server.Sessions())
			return nil
		},
	}
}
