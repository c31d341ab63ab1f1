package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/toolhost/internal/runtime"
	"github.com/dohr-michael/toolhost/internal/skills"
)

// NewSkillsCommand returns the skills subcommand tree.
func NewSkillsCommand() *cli.Command {
	return &cli.Command{
		Name:  "skills",
		Usage: "Install and run skills",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List installed skills",
				Action: skillsAction(skillsList),
			},
			{
				Name:      "install",
				Usage:     "Install a skill from a local directory",
				ArgsUsage: "<dir>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "activate", Usage: "Activate after installing"},
				},
				Action: skillsAction(skillsInstall),
			},
			{
				Name:      "activate",
				Usage:     "Activate an installed skill",
				ArgsUsage: "<skillId>",
				Action:    skillsAction(skillsActivate),
			},
			{
				Name:      "disable",
				Usage:     "Disable a skill and unregister its tools",
				ArgsUsage: "<skillId>",
				Action:    skillsAction(skillsDisable),
			},
			{
				Name:      "uninstall",
				Usage:     "Remove an installed skill",
				ArgsUsage: "<skillId>",
				Action:    skillsAction(skillsUninstall),
			},
			{
				Name:      "run",
				Usage:     "Run an active skill",
				ArgsUsage: "<skillId>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "params",
						Aliases: []string{"p"},
						Usage:   "Skill parameters as a JSON object",
					},
					&cli.StringFlag{
						Name:    "workspace",
						Aliases: []string{"w"},
						Usage:   "Workspace root exposed to the skill (default: current directory)",
					},
				},
				Action: skillsAction(skillsRun),
			},
		},
	}
}

func skillsAction(fn func(ctx context.Context, cmd *cli.Command, rt *runtime.Runtime) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		rt, _, err := newRuntime(ctx, cmd, runtime.Options{SkipEventLog: true, SkipModels: true})
		if err != nil {
			return err
		}
		defer rt.Close(ctx)
		return fn(ctx, cmd, rt)
	}
}

func skillsList(_ context.Context, _ *cli.Command, rt *runtime.Runtime) error {
	for _, sk := range rt.Skills.List() {
		line := fmt.Sprintf("%-24s %-10s %-8s %s",
			sk.Manifest.ID, sk.Status, sk.Manifest.EffectiveRuntime(), sk.Manifest.Description)
		if sk.StatusError != "" {
			line += " (" + sk.StatusError + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func skillsInstall(_ context.Context, cmd *cli.Command, rt *runtime.Runtime) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("usage: toolhost skills install <dir>")
	}

	sk, err := rt.Skills.Install(dir, skills.InstallLocal)
	if err != nil {
		return err
	}
	fmt.Printf("installed %s %s\n", sk.Manifest.ID, sk.Manifest.Version)

	if cmd.Bool("activate") {
		if err := rt.Skills.Activate(sk.Manifest.ID); err != nil {
			return err
		}
		fmt.Printf("activated %s\n", sk.Manifest.ID)
	}
	return nil
}

func skillsActivate(_ context.Context, cmd *cli.Command, rt *runtime.Runtime) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: toolhost skills activate <skillId>")
	}
	if err := rt.Skills.Activate(id); err != nil {
		return err
	}
	fmt.Printf("activated %s\n", id)
	return nil
}

func skillsDisable(_ context.Context, cmd *cli.Command, rt *runtime.Runtime) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: toolhost skills disable <skillId>")
	}
	if err := rt.Skills.Disable(id); err != nil {
		return err
	}
	fmt.Printf("disabled %s\n", id)
	return nil
}

func skillsUninstall(_ context.Context, cmd *cli.Command, rt *runtime.Runtime) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: toolhost skills uninstall <skillId>")
	}
	if err := rt.Skills.Uninstall(id); err != nil {
		return err
	}
	fmt.Printf("uninstalled %s\n", id)
	return nil
}

func skillsRun(ctx context.Context, cmd *cli.Command, rt *runtime.Runtime) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: toolhost skills run <skillId>")
	}

	// Bridge tool calls run as caller=agent, so confirmations need answering.
	conf := startConfirmer(rt.Bus, os.Stdin, os.Stderr)
	defer conf.Stop()

	params := map[string]any{}
	if raw := cmd.String("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return fmt.Errorf("parse --params: %w", err)
		}
	}

	workspace := cmd.String("workspace")
	if workspace == "" {
		workspace, _ = os.Getwd()
	}

	result, err := rt.Skills.Run(ctx, id, skills.Context{WorkspaceRoot: workspace}, params)
	if err != nil {
		return err
	}
	return printJSON(result)
}
