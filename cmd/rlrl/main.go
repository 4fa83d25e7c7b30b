// Command rlrl trains continuous-control agents
package main

import (
	"os"

	"github.com/aunum/log"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "rlrl",
		Short: "Train continuous-control reinforcement learning agents",
	}
	root.AddCommand(TrainCommand())

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
