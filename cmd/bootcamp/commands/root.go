// Package commands implements the bootcamp CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/antoniostano/bootcamp/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "bootcamp",
	Short:         "Accountancy bootcamp study service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the environment configuration.
func loadConfig() (config.Config, error) {
	return config.Load()
}
