package experiments

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeu5/sumo-lane-rl/highway"
	"github.com/zeu5/sumo-lane-rl/policies"
	"github.com/zeu5/sumo-lane-rl/types"
)

// Drive runs one scripted episode, the ego keeps its lane except at the
// scheduled steps, and prints the lane and speed after every step
func Drive(ctx context.Context, env types.Environment, steps int, schedule map[int]types.Action, out io.Writer) (*types.Trace, error) {
	agent := types.NewAgent(&types.AgentConfig{
		Horizon:     steps,
		Policy:      policies.NewScripted(highway.Keep, schedule),
		Environment: env,
	})
	eCtx := types.NewEpisodeContext(ctx, 0, "drive")
	defer eCtx.Cancel()
	agent.RunEpisode(eCtx)

	for i := 0; i < eCtx.Trace.Len(); i++ {
		_, action, tr, _ := eCtx.Trace.Get(i)
		obs, ok := tr.State.(highway.Observation)
		if !ok {
			continue
		}
		if obs.Absent {
			fmt.Fprintf(out, "Step %d: %s, ego vehicle lost\n", i, action.Hash())
			continue
		}
		fmt.Fprintf(out, "Step %d: %s, lane=%d, speed=%.2f, reward=%.3f\n", i, action.Hash(), obs.Lane, obs.Speed, tr.Reward)
	}
	return eCtx.Trace, eCtx.Err
}

func DriveCommand() *cobra.Command {
	var left, right []int
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Drive the ego vehicle on a fixed lane change schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			env, err := newEnvironment(logger)
			if err != nil {
				return err
			}
			defer env.Close()

			schedule := make(map[int]types.Action)
			for _, s := range left {
				schedule[s] = highway.Left
			}
			for _, s := range right {
				schedule[s] = highway.Right
			}
			trace, err := Drive(ctx, env, horizon, schedule, os.Stdout)
			if err != nil {
				return err
			}
			logger.Info("drive finished", "steps", trace.Len(), "return", trace.Return(), "lost", trace.Lost())
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&left, "left", []int{50}, "Steps at which the ego moves one lane to the left")
	cmd.Flags().IntSliceVar(&right, "right", []int{100}, "Steps at which the ego moves one lane to the right")
	return cmd
}
