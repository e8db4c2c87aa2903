// Package commands implements the continuum CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/avyuktsoni0731/continuum/internal/config"
	"github.com/avyuktsoni0731/continuum/internal/logging"
)

var (
	// Version is set at build time
	Version = "0.2.0"
)

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:   "continuum",
	Short: "Decision and trigger engine for engineering task flow",
	Long: `Continuum watches scheduled work, GitHub PRs, and Jira issues, scores
each task for criticality and automation feasibility, and decides whether
to surface it now, delegate it to a teammate, reschedule it, or automate it.

Configure schedules and team roster in continuum.yaml and run the daemon.`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Config file path (default ~/.config/continuum/continuum.yaml)")
}

// loadConfig loads configuration from the flag path or the default location.
func loadConfig() (*config.Config, error) {
	if configPathFlag != "" {
		return config.LoadFrom(configPathFlag)
	}
	return config.Load()
}

// initLogging initializes the logging subsystem.
func initLogging(cfg *config.Config) error {
	return logging.Init(logging.Config{
		Level:         cfg.Logging.Level,
		Path:          cfg.Logging.Path,
		Format:        cfg.Logging.Format,
		RetentionDays: cfg.Logging.RetentionDays,
	})
}
