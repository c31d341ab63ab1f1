package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/toolhost/internal/runtime"
	"github.com/dohr-michael/toolhost/internal/storage"
)

// NewHistoryCommand returns the history subcommand.
func NewHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show the persisted execution log",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "tool",
				Usage: "Only executions of this tool",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of records",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "since",
				Usage: "Only executions after this duration ago (e.g. 2h, 30m)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print raw records as JSON",
			},
		},
		Action: runHistory,
	}
}

func runHistory(ctx context.Context, cmd *cli.Command) error {
	rt, _, err := newRuntime(ctx, cmd, runtime.Options{SkipEventLog: true, SkipModels: true})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	filter := storage.Filter{
		ToolID: cmd.String("tool"),
		Limit:  cmd.Int("limit"),
	}
	if since := cmd.String("since"); since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
		filter.Since = time.Now().Add(-d)
	}

	records, err := rt.ExecLog().List(ctx, filter)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return printJSON(records)
	}

	for _, rec := range records {
		outcome := "ok"
		if !rec.Success {
			outcome = rec.ErrorCode
			if outcome == "" {
				outcome = "failed"
			}
		}
		fmt.Printf("%s  %-24s %-6s %-18s %s\n",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.ToolID, rec.Caller, outcome, rec.Duration.Truncate(time.Millisecond))
	}

	total, err := rt.ExecLog().Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("showing %d of %d retained executions\n", len(records), total)
	return nil
}
