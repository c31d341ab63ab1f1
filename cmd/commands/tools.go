package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/marcozac/go-jsonc"
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/toolhost/internal/registry"
	"github.com/dohr-michael/toolhost/internal/runtime"
)

// NewToolsCommand returns the tools subcommand tree.
func NewToolsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tools",
		Usage: "Inspect and manage the tool registry",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List registered tools",
				Action: toolsAction(toolsList),
			},
			{
				Name:      "get",
				Usage:     "Show one tool definition",
				ArgsUsage: "<toolId>",
				Action:    toolsAction(toolsGet),
			},
			{
				Name:      "search",
				Usage:     "Search tools by name, description or category",
				ArgsUsage: "<query>",
				Action:    toolsAction(toolsSearch),
			},
			{
				Name:      "register",
				Usage:     "Register a tool from a JSON/JSONC definition file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "overwrite", Usage: "Replace an existing non-builtin tool"},
				},
				Action: toolsAction(toolsRegister),
			},
			{
				Name:      "delete",
				Usage:     "Delete a non-builtin tool",
				ArgsUsage: "<toolId>",
				Action:    toolsAction(toolsDelete),
			},
			{
				Name:      "enable",
				Usage:     "Enable a tool",
				ArgsUsage: "<toolId>",
				Action:    toolsAction(toolsToggle(true)),
			},
			{
				Name:      "disable",
				Usage:     "Disable a tool",
				ArgsUsage: "<toolId>",
				Action:    toolsAction(toolsToggle(false)),
			},
		},
	}
}

// toolsAction brings up a minimal runtime around a registry operation.
func toolsAction(fn func(ctx context.Context, cmd *cli.Command, rt *runtime.Runtime) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		rt, _, err := newRuntime(ctx, cmd, runtime.Options{
			SkipExecLog:  true,
			SkipEventLog: true,
			SkipModels:   true,
		})
		if err != nil {
			return err
		}
		defer rt.Close(ctx)
		return fn(ctx, cmd, rt)
	}
}

func toolsList(_ context.Context, _ *cli.Command, rt *runtime.Runtime) error {
	for _, reg := range rt.Registry.List() {
		state := " "
		if !reg.Enabled {
			state = "off"
		}
		fmt.Printf("%-24s %-12s %-10s %3s  %s\n",
			reg.Tool.ID, reg.Tool.Category, reg.Source, state, reg.Tool.Description)
	}
	return nil
}

func toolsGet(_ context.Context, cmd *cli.Command, rt *runtime.Runtime) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: toolhost tools get <toolId>")
	}
	reg, ok := rt.Registry.Get(id)
	if !ok {
		return fmt.Errorf("tool %q not found", id)
	}
	return printJSON(reg)
}

func toolsSearch(_ context.Context, cmd *cli.Command, rt *runtime.Runtime) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("usage: toolhost tools search <query>")
	}
	for _, reg := range rt.Registry.Search(query) {
		fmt.Printf("%-24s %s\n", reg.Tool.ID, reg.Tool.Description)
	}
	return nil
}

func toolsRegister(_ context.Context, cmd *cli.Command, rt *runtime.Runtime) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: toolhost tools register <file>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read definition: %w", err)
	}

	var def registry.ToolDefinition
	if err := jsonc.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("parse definition: %w", err)
	}

	if err := rt.Registry.Register(def, registry.SourceUser, cmd.Bool("overwrite")); err != nil {
		return err
	}
	fmt.Printf("registered %s\n", def.ID)
	return nil
}

func toolsDelete(_ context.Context, cmd *cli.Command, rt *runtime.Runtime) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: toolhost tools delete <toolId>")
	}
	if err := rt.Registry.Delete(id); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", id)
	return nil
}

func toolsToggle(enabled bool) func(context.Context, *cli.Command, *runtime.Runtime) error {
	return func(_ context.Context, cmd *cli.Command, rt *runtime.Runtime) error {
		id := cmd.Args().First()
		if id == "" {
			return fmt.Errorf("missing tool id argument")
		}
		if err := rt.Registry.Toggle(id, enabled); err != nil {
			return err
		}
		if enabled {
			fmt.Printf("enabled %s\n", id)
		} else {
			fmt.Printf("disabled %s\n", id)
		}
		return nil
	}
}
