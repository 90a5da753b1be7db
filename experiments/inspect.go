package experiments

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"
	"github.com/zeu5/sumo-lane-rl/highway"
	"github.com/zeu5/sumo-lane-rl/policies"
)

var bucketNames = []string{"close", "medium", "far"}

// PrintTable writes one row per state, the greedy intent of each row is highlighted
func PrintTable(out io.Writer, table *policies.QTable, colors bool) {
	au := aurora.NewAurora(colors)
	header := fmt.Sprintf("%5s %4s %6s %6s |", "state", "lane", "same", "other")
	for i := 0; i < highway.NumIntents; i++ {
		intent, _ := highway.IntentFromIndex(i)
		header += fmt.Sprintf(" %9s", intent)
	}
	fmt.Fprintln(out, au.Bold(header))
	fmt.Fprintln(out, strings.Repeat("-", len(header)))

	rows, cols := table.Dims()
	for s := 0; s < rows; s++ {
		lane, same, other := highway.DecodeState(s)
		fmt.Fprintf(out, "%5d %4d %6s %6s |", s, lane, bucketNames[same], bucketNames[other])
		best := table.ArgMax(s)
		for a := 0; a < cols; a++ {
			cell := fmt.Sprintf(" %9.3f", table.Get(s, a))
			if a == best {
				fmt.Fprint(out, au.Green(cell))
			} else {
				fmt.Fprint(out, au.Blue(cell))
			}
		}
		fmt.Fprintln(out)
	}
}

func InspectCommand() *cobra.Command {
	var noColor bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the learned q table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			store, closeStore, err := newStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			table, err := store.LoadTable()
			if err != nil {
				return err
			}
			PrintTable(os.Stdout, table, !noColor)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	addStoreFlags(cmd)
	return cmd
}
