package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"

	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "purku",
		Short: "Project Decommissioning Engine",
		Long: `Purku - Project Decommissioning Engine

Purku tears down everything a project left behind across an AWS
organization: distributions, buckets, zones, keys, roles, the lot.
Resources are matched by project name patterns, destroyed in a fixed
dependency order, and every destructive intent is journaled locally
before the call goes out.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Purku {{.Version}} - Project Decommissioning Engine
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "purku.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func setupLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
