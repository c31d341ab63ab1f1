package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/toolhost/internal/config"
	"github.com/dohr-michael/toolhost/internal/runtime"
)

// loadConfig reads the configured file, falling back to defaults when it
// does not exist yet.
func loadConfig(cmd *cli.Command) *config.Config {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		slog.Debug("config not found, using defaults", "path", path, "error", err)
		return config.Default()
	}
	return cfg
}

// setupLogging installs the process slog handler. Logs go to stderr so that
// stdout stays clean for command output (and the MCP stdio transport).
func setupLogging(cmd *cli.Command, cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// newRuntime loads config, configures logging and brings up a Runtime.
func newRuntime(ctx context.Context, cmd *cli.Command, opts runtime.Options) (*runtime.Runtime, *config.Config, error) {
	cfg := loadConfig(cmd)
	setupLogging(cmd, cfg)

	rt, err := runtime.New(ctx, cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return rt, cfg, nil
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
