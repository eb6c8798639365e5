package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/galina-antipin/join/cmd/join/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "join",
		Short: "Join API Server",
		Long:  `Join is a contact and task manager backed by a remote JSON document store.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
