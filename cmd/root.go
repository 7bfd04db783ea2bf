// Package cmd implements the certbench command-line interface: a thin
// Cobra wrapper around the bench/runner, report, and mockinfer packages.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "certbench",
	Short: "Certifiable inference benchmark harness",
}

// Execute runs the root command, exiting with status 1 on any config or
// I/O failure per the CLI's exit-code contract.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(runCmd, compareCmd, goldenCmd)
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}
