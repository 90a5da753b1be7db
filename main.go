package main

import (
	"os"

	"github.com/zeu5/sumo-lane-rl/experiments"
)

// main entry point to all the commands
func main() {
	rootCommand := experiments.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
