package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/shortlink/internal/app"
	"github.com/sundayezeilo/shortlink/internal/config"
)

// newRootCmd builds the command tree. Subcommands load configuration lazily
// so argument errors surface without a database.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "linkctl",
		Short:         "Operate the shortlink store",
		Long:          "linkctl applies schema migrations, runs maintenance sweeps and creates or inspects short links.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(),
		newSweepCmd(),
		newCreateCmd(),
		newStatsCmd(),
	)
	return root
}

// loadWorkerConfig reads the offline configuration and a logger that writes
// to stderr, keeping stdout for command output.
func loadWorkerConfig() (*config.Config, *slog.Logger, error) {
	if err := app.LoadEnv(); err != nil {
		return nil, nil, fmt.Errorf("failed to load environment: %w", err)
	}
	cfg, err := config.LoadWorker()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, app.NewLogger(os.Stderr, cfg.App.LogLevel), nil
}

// withCore builds the storage layer, runs fn and releases it.
func withCore(ctx context.Context, fn func(*app.Core) error) error {
	cfg, logger, err := loadWorkerConfig()
	if err != nil {
		return err
	}

	core, err := app.BuildCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := core.Close(); err != nil {
			logger.Warn("failed to close resources", "error", err.Error())
		}
	}()

	return fn(core)
}
