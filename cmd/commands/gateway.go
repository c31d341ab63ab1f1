package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/toolhost/internal/config"
	"github.com/dohr-michael/toolhost/internal/gateway"
	"github.com/dohr-michael/toolhost/internal/heartbeat"
	"github.com/dohr-michael/toolhost/internal/runtime"
)

// NewGatewayCommand returns the gateway subcommand.
func NewGatewayCommand() *cli.Command {
	return &cli.Command{
		Name:  "gateway",
		Usage: "Start the toolhost gateway server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runGateway,
	}
}

func runGateway(ctx context.Context, cmd *cli.Command) error {
	rt, cfg, err := newRuntime(ctx, cmd, runtime.Options{})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	slog.Info("tools loaded", "count", len(rt.Registry.List()))

	server := gateway.NewServer(rt.Bus, rt.Registry, rt.Executor, rt.Agent, cfg.Gateway.Host, cfg.Gateway.Port)

	hb := heartbeat.NewWriter(filepath.Join(config.ToolhostPath(), "heartbeat.json"))
	hb.SetInfo(fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port), len(rt.Registry.List()))
	hb.Start()
	defer hb.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
