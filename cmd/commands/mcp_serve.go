package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/toolhost/internal/mcp"
	"github.com/dohr-michael/toolhost/internal/runtime"
)

// mcpVersion is reported in the MCP server implementation info.
const mcpVersion = "0.1.0"

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp-serve",
		Usage: "Expose registry tools as an MCP server (stdio)",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "filter",
				UsageText: "Tool id or category to expose (empty = all)",
			},
		},
		Action: runMCPServe,
	}
}

func runMCPServe(ctx context.Context, cmd *cli.Command) error {
	// Logging must stay off stdout: it carries the MCP stdio transport.
	level := slog.LevelWarn
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := loadConfig(cmd)

	rt, err := runtime.New(ctx, cfg, runtime.Options{SkipEventLog: true, SkipModels: true})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	filter := cmd.StringArg("filter")
	slog.Debug("starting MCP server", "filter", filter, "tools", len(rt.Registry.List()))

	server := mcp.NewServer(rt.Registry, rt.Executor, mcpVersion, filter)
	return mcp.Run(ctx, server)
}
