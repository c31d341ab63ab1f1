// Package skills loads, runs, and manages installable skill packages.
package skills

import (
	"fmt"
	"regexp"
	"time"

	"github.com/dohr-michael/toolhost/internal/registry"
)

// Runtime selects how a skill's entry point is executed.
type Runtime string

const (
	RuntimeNode    Runtime = "node"
	RuntimePython  Runtime = "python"
	RuntimeShell   Runtime = "shell"
	RuntimeBuiltin Runtime = "builtin"
	RuntimeWasm    Runtime = "wasm"
)

// Permission names a capability a skill may request.
type Permission string

const (
	PermFSRead      Permission = "fs:read"
	PermFSWrite     Permission = "fs:write"
	PermNetwork     Permission = "network"
	PermShell       Permission = "shell"
	PermMCPCall     Permission = "mcp:call"
	PermMCPRegister Permission = "mcp:register"
)

// Status is the lifecycle state of an installed skill.
type Status string

const (
	StatusInstalled Status = "installed"
	StatusActive    Status = "active"
	StatusDisabled  Status = "disabled"
	StatusError     Status = "error"
	StatusUpdating  Status = "updating"
)

// InstallSource identifies where a skill package came from.
type InstallSource string

const (
	InstallLocal InstallSource = "local"
	InstallGit   InstallSource = "git"
	InstallURL   InstallSource = "url"
)

// Manifest is the on-disk contract of a skill package (manifest.json).
type Manifest struct {
	ID            string                    `json:"id"`
	Name          string                    `json:"name"`
	Version       string                    `json:"version"`
	Description   string                    `json:"description"`
	Runtime       Runtime                   `json:"runtime,omitempty"`   // default: node
	Main          string                    `json:"main,omitempty"`      // entry path, relative to the skill dir
	SkillFile     string                    `json:"skillFile,omitempty"` // instructions document (default: SKILL.md)
	MCPTools      []string                  `json:"mcpTools,omitempty"`  // tool ids the skill may call, or "*"
	ProvidedTools []registry.ToolDefinition `json:"providedTools,omitempty"`
	Permissions   []Permission              `json:"permissions,omitempty"`
	Config        map[string]string         `json:"config,omitempty"`
	EntryPoints   map[string]string         `json:"entryPoints,omitempty"` // wasm export overrides
	Dependencies  map[string]string         `json:"dependencies,omitempty"`
}

var skillIDRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Validate checks required fields and the runtime enum.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("skill manifest: id is required")
	}
	if !skillIDRe.MatchString(m.ID) {
		return fmt.Errorf("skill manifest: invalid id %q", m.ID)
	}
	if m.Name == "" {
		return fmt.Errorf("skill %s: name is required", m.ID)
	}
	if m.Version == "" {
		return fmt.Errorf("skill %s: version is required", m.ID)
	}
	if m.Description == "" {
		return fmt.Errorf("skill %s: description is required", m.ID)
	}
	switch m.Runtime {
	case "", RuntimeNode, RuntimePython, RuntimeShell, RuntimeBuiltin, RuntimeWasm:
	default:
		return fmt.Errorf("skill %s: unknown runtime %q", m.ID, m.Runtime)
	}
	if m.Runtime != RuntimeBuiltin && m.Main == "" {
		return fmt.Errorf("skill %s: main is required for runtime %q", m.ID, m.EffectiveRuntime())
	}
	for i := range m.ProvidedTools {
		if m.ProvidedTools[i].ID == "" {
			return fmt.Errorf("skill %s: providedTools[%d] missing id", m.ID, i)
		}
	}
	return nil
}

// EffectiveRuntime returns the runtime with the default applied.
func (m *Manifest) EffectiveRuntime() Runtime {
	if m.Runtime == "" {
		return RuntimeNode
	}
	return m.Runtime
}

// HasPermission reports whether the manifest grants the given permission.
func (m *Manifest) HasPermission(p Permission) bool {
	for _, have := range m.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// MayCall reports whether the mcpTools allow-list covers the tool id.
func (m *Manifest) MayCall(toolID string) bool {
	for _, id := range m.MCPTools {
		if id == "*" || id == toolID {
			return true
		}
	}
	return false
}

// InstalledSkill is a manifest plus its installation state.
type InstalledSkill struct {
	Manifest    Manifest          `json:"manifest"`
	InstallPath string            `json:"installPath"`
	Status      Status            `json:"status"`
	StatusError string            `json:"statusError,omitempty"` // message when Status == error
	Source      InstallSource     `json:"source"`
	InstalledAt time.Time         `json:"installedAt"` // zero for built-in skills
	UserConfig  map[string]string `json:"userConfig,omitempty"`
	Doc         *Doc              `json:"-"`
}

// IsBuiltin reports whether the skill ships with the binary.
// Built-in skills cannot be uninstalled, only disabled.
func (s *InstalledSkill) IsBuiltin() bool {
	return s.InstalledAt.IsZero()
}
