package main

import (
	"os"

	cmd "github.com/Ftotnem/astar-livesearch/qrgen/commands"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	rootCmd.AddCommand(
		cmd.NewGenerateCmd(),
		cmd.NewDecodeCmd(),
		cmd.NewTeamsCmd(),
	)

	// Do not print usage when a command fails
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
