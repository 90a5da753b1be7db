package experiments

import (
	"os"
	"path"

	"github.com/spf13/cobra"
	"github.com/zeu5/sumo-lane-rl/types"
)

// plotHistory writes rewards.png and rewards.html in the folder
func plotHistory(folder, title string, history []float64) error {
	if len(history) == 0 {
		return nil
	}
	names := []string{"return"}
	series := [][]float64{history}
	if err := types.PlotRewards(path.Join(folder, "rewards.png"), title, names, series, 10); err != nil {
		return err
	}
	f, err := os.Create(path.Join(folder, "rewards.html"))
	if err != nil {
		return err
	}
	defer f.Close()
	return types.RenderRewardChart(f, title, names, series)
}

func PlotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Plot the persisted reward history",
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

			history, err := store.LoadHistory()
			if err != nil {
				return err
			}
			if len(history) == 0 {
				logger.Warn("no reward history to plot")
				return nil
			}
			if err := os.MkdirAll(saveFile, os.ModePerm); err != nil {
				return err
			}
			if err := plotHistory(saveFile, "Learning history", history); err != nil {
				return err
			}
			logger.Info("reward history", "summary", types.Summarize(history), "folder", saveFile)
			return nil
		},
	}
	addStoreFlags(cmd)
	return cmd
}
