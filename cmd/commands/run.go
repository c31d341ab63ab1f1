package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/toolhost/internal/invoke"
	"github.com/dohr-michael/toolhost/internal/runtime"
)

// NewRunCommand returns the run subcommand: direct @mcp: invocation.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a single @mcp: invocation",
		ArgsUsage: `"@mcp:<toolId> [key=value ...]"`,
		Description: `Examples:
   toolhost run "@mcp:echo text=hello"
   toolhost run "@mcp:read_file path=main.go limit=40"
   toolhost run "@mcp:list"
   toolhost run "@mcp:search weather"
   toolhost run "@mcp:agent summarize the repo layout"`,
		Action: runInvocation,
	}
}

func runInvocation(ctx context.Context, cmd *cli.Command) error {
	text := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("usage: toolhost run \"@mcp:<toolId> [args]\"")
	}

	inv, err := invoke.Parse(text)
	if err != nil {
		return err
	}

	rt, _, err := newRuntime(ctx, cmd, runtime.Options{SkipEventLog: true})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	conf := startConfirmer(rt.Bus, os.Stdin, os.Stderr)
	defer conf.Stop()

	d := &invoke.Dispatcher{
		Registry: rt.Registry,
		Executor: rt.Executor,
		Agent:    rt.Agent,
		Log:      rt.ExecLog(),
	}

	out, err := d.Dispatch(ctx, inv)
	if err != nil {
		return err
	}
	return printJSON(out)
}
