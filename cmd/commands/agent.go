package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/toolhost/internal/agent"
	"github.com/dohr-michael/toolhost/internal/runtime"
)

// NewAgentCommand returns the agent subcommand.
func NewAgentCommand() *cli.Command {
	return &cli.Command{
		Name:      "agent",
		Usage:     "Run an autonomous task: plan, execute, summarize",
		ArgsUsage: "<task description>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "workspace",
				Aliases: []string{"w"},
				Usage:   "Workspace root for file tools (default: current directory)",
			},
			&cli.StringSliceFlag{
				Name:  "category",
				Usage: "Restrict planning to these tool categories",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Tool ids the planner never sees",
			},
			&cli.BoolFlag{
				Name:  "steps",
				Usage: "Print the executed steps, not just the summary",
			},
		},
		Action: runAgentTask,
	}
}

func runAgentTask(ctx context.Context, cmd *cli.Command) error {
	description := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if description == "" {
		return fmt.Errorf("usage: toolhost agent <task description>")
	}

	rt, _, err := newRuntime(ctx, cmd, runtime.Options{SkipEventLog: true})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	conf := startConfirmer(rt.Bus, os.Stdin, os.Stderr)
	defer conf.Stop()

	workspace := cmd.String("workspace")
	if workspace == "" {
		workspace, _ = os.Getwd()
	}

	result, err := rt.Agent.Run(ctx, agent.Task{
		Description:  description,
		Workspace:    workspace,
		Categories:   cmd.StringSlice("category"),
		ExcludeTools: cmd.StringSlice("exclude"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("steps") {
		return printJSON(result)
	}

	fmt.Println(result.Summary)
	if !result.Success {
		return fmt.Errorf("task did not complete successfully")
	}
	return nil
}
