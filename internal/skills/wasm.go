package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	extism "github.com/extism/go-sdk"
)

const defaultWasmExport = "execute"

// WasmRuntime hosts skills compiled to WASM. Plugins are instantiated on
// first use and cached per skill id; capabilities are deny-by-default.
type WasmRuntime struct {
	mu      sync.Mutex
	plugins map[string]*extism.Plugin
}

// NewWasmRuntime creates an empty runtime.
func NewWasmRuntime() *WasmRuntime {
	return &WasmRuntime{plugins: make(map[string]*extism.Plugin)}
}

// Call invokes the skill's export with the params marshalled as JSON and
// parses the output as JSON when possible.
func (r *WasmRuntime) Call(ctx context.Context, skill *InstalledSkill, params map[string]any) (any, error) {
	plugin, err := r.load(ctx, skill)
	if err != nil {
		return nil, err
	}

	export := skill.Manifest.EntryPoints["execute"]
	if export == "" {
		export = defaultWasmExport
	}

	input, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	_, output, err := plugin.Call(export, input)
	if err != nil {
		return nil, fmt.Errorf("skill %s export %q: %w", skill.Manifest.ID, export, err)
	}

	var parsed any
	if json.Unmarshal(output, &parsed) == nil {
		return parsed, nil
	}
	return string(output), nil
}

func (r *WasmRuntime) load(ctx context.Context, skill *InstalledSkill) (*extism.Plugin, error) {
	id := skill.Manifest.ID

	r.mu.Lock()
	defer r.mu.Unlock()
	if plugin, ok := r.plugins[id]; ok {
		return plugin, nil
	}

	manifest := extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmFile{Path: filepath.Join(skill.InstallPath, skill.Manifest.Main)},
		},
		Config: skill.Manifest.Config,
	}
	// Network stays closed unless the manifest asks for it.
	if skill.Manifest.HasPermission(PermNetwork) {
		manifest.AllowedHosts = []string{"*"}
	}
	if skill.Manifest.HasPermission(PermFSRead) || skill.Manifest.HasPermission(PermFSWrite) {
		manifest.AllowedPaths = map[string]string{skill.InstallPath: "/skill"}
	}

	plugin, err := extism.NewPlugin(ctx, manifest, extism.PluginConfig{EnableWasi: true}, nil)
	if err != nil {
		return nil, fmt.Errorf("load wasm skill %s: %w", id, err)
	}

	export := skill.Manifest.EntryPoints["execute"]
	if export == "" {
		export = defaultWasmExport
	}
	if !plugin.FunctionExists(export) {
		plugin.Close(ctx)
		return nil, fmt.Errorf("wasm skill %s missing %q export", id, export)
	}

	r.plugins[id] = plugin
	slog.Info("wasm skill loaded", "skill", id, "wasm", skill.Manifest.Main)
	return plugin, nil
}

// Close releases all loaded plugins.
func (r *WasmRuntime) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, plugin := range r.plugins {
		if err := plugin.Close(ctx); err != nil {
			slog.Warn("close wasm skill", "skill", id, "error", err)
		}
	}
	r.plugins = make(map[string]*extism.Plugin)
}
