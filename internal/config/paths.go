package config

import (
	"os"
	"path/filepath"
)

// ToolhostPath returns the root directory for toolhost data.
// It uses $TOOLHOST_PATH if set, otherwise defaults to ~/.toolhost.
func ToolhostPath() string {
	if v := os.Getenv("TOOLHOST_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".toolhost")
	}
	return filepath.Join(home, ".toolhost")
}

// ConfigPath returns the path to the toolhost config file.
func ConfigPath() string {
	return filepath.Join(ToolhostPath(), "config.jsonc")
}

// DotenvPath returns the path to the toolhost .env file.
func DotenvPath() string {
	return filepath.Join(ToolhostPath(), ".env")
}
