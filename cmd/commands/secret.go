package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/dohr-michael/toolhost/internal/config"
	"github.com/dohr-michael/toolhost/internal/secrets"
)

// NewSecretCommand returns the secret subcommand tree.
func NewSecretCommand() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "Manage backend secrets in the toolhost .env file",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Set a secret, encrypted when an age key exists",
				ArgsUsage: "<NAME>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "plain",
						Usage: "Store the value unencrypted even when a key exists",
					},
				},
				Action: runSecretSet,
			},
			{
				Name:   "list",
				Usage:  "List stored secret names",
				Action: runSecretList,
			},
			{
				Name:   "init-key",
				Usage:  "Generate the age identity used to encrypt secrets",
				Action: runSecretInitKey,
			},
		},
	}
}

func runSecretSet(_ context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: toolhost secret set <NAME>")
	}

	fmt.Fprintf(os.Stderr, "Value for %s: ", name)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read value: %w", err)
	}
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return fmt.Errorf("empty value")
	}

	if !cmd.Bool("plain") {
		identity, err := secrets.LoadIdentity(secrets.KeyPath())
		if err == nil {
			value, err = secrets.Encrypt(value, identity.Recipient())
			if err != nil {
				return fmt.Errorf("encrypt value: %w", err)
			}
		} else {
			fmt.Fprintln(os.Stderr, "no age key found, storing unencrypted (run: toolhost secret init-key)")
		}
	}

	if err := secrets.SetEntry(config.DotenvPath(), name, value); err != nil {
		return err
	}
	fmt.Printf("set %s\n", name)
	return nil
}

func runSecretList(_ context.Context, _ *cli.Command) error {
	entries, err := secrets.Entries(config.DotenvPath())
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		marker := ""
		if secrets.IsEncrypted(entries[name]) {
			marker = " (encrypted)"
		}
		fmt.Printf("%s%s\n", name, marker)
	}
	return nil
}

func runSecretInitKey(_ context.Context, _ *cli.Command) error {
	path := secrets.KeyPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key already exists at %s", path)
	}
	if err := secrets.GenerateIdentity(path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
