// Package config loads and defaults the toolhost configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/marcozac/go-jsonc"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates,
// unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := expandEnvTemplates(string(data))

	var cfg Config
	if err := jsonc.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a Config with all defaults applied, used when no config
// file exists yet.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Registry.Dir == "" {
		cfg.Registry.Dir = filepath.Join(ToolhostPath(), "tools")
	}
	if cfg.Executor.DefaultTimeout.Duration() == 0 {
		cfg.Executor.DefaultTimeout = Duration(30 * time.Second)
	}
	if cfg.Executor.ConfirmTimeout.Duration() == 0 {
		cfg.Executor.ConfirmTimeout = Duration(60 * time.Second)
	}
	if cfg.Executor.MaxOutputKB <= 0 {
		cfg.Executor.MaxOutputKB = 512
	}
	if cfg.Executor.ScriptInterpreter == "" {
		cfg.Executor.ScriptInterpreter = "node"
	}
	if cfg.History.MaxEntries <= 0 {
		cfg.History.MaxEntries = 200
	}
	if cfg.History.DBPath == "" {
		cfg.History.DBPath = filepath.Join(ToolhostPath(), "history.db")
	}
	if cfg.Skills.Dir == "" {
		cfg.Skills.Dir = filepath.Join(ToolhostPath(), "skills")
	}
	if cfg.Skills.NodeBin == "" {
		cfg.Skills.NodeBin = "node"
	}
	if cfg.Skills.PythonBin == "" {
		cfg.Skills.PythonBin = "python3"
	}
	if cfg.Agent.MaxSteps <= 0 {
		cfg.Agent.MaxSteps = 10
	}
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18430
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
