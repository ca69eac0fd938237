// Command tfdcore serves the trip manifest API and runs its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tfdcore/internal/app"
	"tfdcore/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "tfdcore",
		Short:        "TFD trip manifest and appointment synchronization engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to an optional .env file")
	root.AddCommand(serveCmd(opts))
	root.AddCommand(migrateCmd(opts))
	root.AddCommand(backupCmd(opts))
	return root
}

// withApp loads configuration, builds the application and closes it once fn
// returns.
func withApp(ctx context.Context, opts *rootOptions, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg.Env)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	runErr := fn(ctx, a)
	if err := a.Close(context.WithoutCancel(ctx)); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
