// Package cli is the command-line driving adapter.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
	"github.com/custodia-labs/docsync/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
)

// SessionFactory builds a session from resolved settings.
type SessionFactory func(ctx context.Context, settings domain.Settings, metrics driven.MetricsRecorder) (driving.SyncSession, error)

// HealthFactory builds a one-shot health checker and its cleanup.
type HealthFactory func(settings domain.Settings) (driving.HealthChecker, func(), error)

// Dependency hooks. Tests replace these with fakes.
var (
	openConfig = func(path string) (driven.ConfigStore, error) {
		return file.NewConfigStore(path)
	}
	sessionFactory SessionFactory = newSession
	healthFactory  HealthFactory  = newHealthChecker
)

var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "Keep documents in sync with the server in real time",
	Long: `docsync keeps a live, optimistic view of your documents over a
persistent channel, with health monitoring and automatic recovery.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.docsync/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadSettings opens the config file and resolves typed settings.
func loadSettings() (driven.ConfigStore, domain.Settings, error) {
	store, err := openConfig(configPath)
	if err != nil {
		return nil, domain.Settings{}, err
	}
	settings, err := store.Settings()
	if err != nil {
		return store, domain.Settings{}, err
	}
	return store, settings, nil
}
