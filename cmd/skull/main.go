// Command skull is the entry point for the pump.fun sniper agent. It loads
// configuration, wires dependencies, sets up signal handling, and starts the
// application in the configured mode.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vitorsaz/skull-agent/internal/app"
	"github.com/vitorsaz/skull-agent/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "skull",
		Short:        "pump.fun token sniper agent",
		SilenceUsage: true,
		RunE:         runAgent,
	}

	root.PersistentFlags().String("config", "config.toml", "path to configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the agent in the configured mode",
		RunE:  runAgent,
	})
	root.AddCommand(newKeysCmd())
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres migrations",
		RunE:  runMigrate,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads and validates the file named by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func runAgent(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	redacted := config.RedactedConfig(cfg)
	logger.Info("skull agent starting",
		slog.String("mode", cfg.Mode),
		slog.Bool("sniper_enabled", cfg.Sniper.Enabled),
		slog.String("rpc", redacted.Solana.RPCURL),
		slog.Int("port", cfg.Server.Port),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("skull agent stopped")
			return nil
		}
		logger.Error("application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("skull agent stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Migrate(ctx, cfg); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}
