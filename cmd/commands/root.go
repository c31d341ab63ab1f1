// Package commands holds the toolhost CLI command tree.
package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/toolhost/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "toolhost",
		Usage: "Tool-execution and autonomous-agent runtime",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewRunCommand(),
			NewToolsCommand(),
			NewAgentCommand(),
			NewSkillsCommand(),
			NewHistoryCommand(),
			NewGatewayCommand(),
			NewWatchCommand(),
			NewStatusCommand(),
			NewMCPServeCommand(),
			NewSecretCommand(),
		},
	}
}
