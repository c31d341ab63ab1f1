package skills

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dohr-michael/toolhost/internal/events"
	"github.com/dohr-michael/toolhost/internal/executor"
	"github.com/dohr-michael/toolhost/internal/registry"
)

// ToolCaller is the executor surface a skill reaches through its bridge.
type ToolCaller interface {
	Execute(ctx context.Context, req executor.Request) (executor.Result, error)
}

// Bridge mediates a single skill's access to the tool executor and registry.
// Each run gets its own bridge so the mcpCalls audit trail is per-run.
type Bridge struct {
	manifest *Manifest
	caller   ToolCaller
	reg      *registry.Registry

	mu         sync.Mutex
	calls      []MCPCall
	registered []string
}

// NewBridge creates a bridge scoped to the skill's manifest permissions.
func NewBridge(manifest *Manifest, caller ToolCaller, reg *registry.Registry) *Bridge {
	return &Bridge{manifest: manifest, caller: caller, reg: reg}
}

// Call forwards a tool invocation to the executor under the skill's
// permission scope. The skill acts as the agent caller.
func (b *Bridge) Call(ctx context.Context, toolID string, params map[string]any) (any, error) {
	if !b.manifest.HasPermission(PermMCPCall) {
		return nil, registry.NewError(registry.CodePermissionDenied,
			"skill %s lacks the mcp:call permission", b.manifest.ID)
	}
	if !b.manifest.MayCall(toolID) {
		return nil, registry.NewError(registry.CodePermissionDenied,
			"skill %s may not call tool %s", b.manifest.ID, toolID)
	}

	start := time.Now()
	result, err := b.caller.Execute(ctx, executor.Request{
		ToolID:    toolID,
		Caller:    registry.CallerAgent,
		Arguments: params,
		SessionID: events.SessionIDFromContext(ctx),
	})

	b.mu.Lock()
	b.calls = append(b.calls, MCPCall{
		ToolID:   toolID,
		Success:  result.Success,
		Duration: time.Since(start),
		At:       start,
	})
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return result.Output, nil
}

// Calls returns the audit trail of tool invocations made through this bridge.
func (b *Bridge) Calls() []MCPCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]MCPCall, len(b.calls))
	copy(out, b.calls)
	return out
}

// RegisterProvidedTools registers the skill's provided tools into the
// registry, namespaced with the skill id to avoid collisions. Requires the
// mcp:register permission. Partial registration is rolled back on failure.
func (b *Bridge) RegisterProvidedTools() error {
	if len(b.manifest.ProvidedTools) == 0 {
		return nil
	}
	if !b.manifest.HasPermission(PermMCPRegister) {
		return registry.NewError(registry.CodePermissionDenied,
			"skill %s lacks the mcp:register permission", b.manifest.ID)
	}

	var added []string
	for _, def := range b.manifest.ProvidedTools {
		def.ID = b.manifest.ID + "_" + def.ID
		if err := b.reg.Register(def, registry.SourceImport, false); err != nil {
			for _, id := range added {
				if delErr := b.reg.Delete(id); delErr != nil {
					slog.Warn("rollback provided tool", "tool", id, "error", delErr)
				}
			}
			return fmt.Errorf("register provided tool %s: %w", def.ID, err)
		}
		added = append(added, def.ID)
	}

	b.mu.Lock()
	b.registered = append(b.registered, added...)
	b.mu.Unlock()

	slog.Info("provided tools registered", "skill", b.manifest.ID, "count", len(added))
	return nil
}

// UnregisterAllTools removes exactly the tools this bridge registered.
func (b *Bridge) UnregisterAllTools() {
	b.mu.Lock()
	ids := b.registered
	b.registered = nil
	b.mu.Unlock()

	for _, id := range ids {
		if err := b.reg.Delete(id); err != nil {
			slog.Warn("unregister provided tool", "tool", id, "error", err)
		}
	}
}

// RegisteredTools lists the namespaced ids this bridge has registered.
func (b *Bridge) RegisteredTools() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.registered))
	copy(out, b.registered)
	return out
}
