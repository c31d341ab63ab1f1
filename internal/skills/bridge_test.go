package skills

import (
	"context"
	"errors"
	"testing"

	"github.com/dohr-michael/toolhost/internal/events"
	"github.com/dohr-michael/toolhost/internal/executor"
	"github.com/dohr-michael/toolhost/internal/registry"
)

type fakeCaller struct {
	requests []executor.Request
	output   any
	err      error
}

func (f *fakeCaller) Execute(_ context.Context, req executor.Request) (executor.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return executor.Result{Success: false, Error: registry.AsError(f.err)}, f.err
	}
	return executor.Result{Success: true, Output: f.output}, nil
}

func bridgeCode(t *testing.T, err error) registry.ErrorCode {
	t.Helper()
	var coded *registry.Error
	if !errors.As(err, &coded) {
		t.Fatalf("expected coded error, got %v", err)
	}
	return coded.Code
}

func TestBridgeCallRequiresPermission(t *testing.T) {
	m := validManifest()
	m.MCPTools = []string{"*"}
	b := NewBridge(&m, &fakeCaller{}, nil)

	_, err := b.Call(context.Background(), "echo", nil)
	if code := bridgeCode(t, err); code != registry.CodePermissionDenied {
		t.Errorf("code = %s, want PERMISSION_DENIED", code)
	}
}

func TestBridgeCallAllowList(t *testing.T) {
	m := validManifest()
	m.Permissions = []Permission{PermMCPCall}
	m.MCPTools = []string{"toolA"}
	caller := &fakeCaller{output: map[string]any{"ok": true}}
	b := NewBridge(&m, caller, nil)

	if _, err := b.Call(context.Background(), "toolB", nil); err == nil {
		t.Fatal("toolB should be denied")
	} else if code := bridgeCode(t, err); code != registry.CodePermissionDenied {
		t.Errorf("code = %s, want PERMISSION_DENIED", code)
	}
	if len(caller.requests) != 0 {
		t.Fatal("denied call must not reach the executor")
	}

	out, err := b.Call(context.Background(), "toolA", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("toolA call: %v", err)
	}
	if out.(map[string]any)["ok"] != true {
		t.Errorf("output = %v", out)
	}
	if len(caller.requests) != 1 || caller.requests[0].Caller != registry.CallerAgent {
		t.Errorf("expected one agent-caller request, got %+v", caller.requests)
	}
}

func TestBridgeCallCarriesSessionID(t *testing.T) {
	m := validManifest()
	m.Permissions = []Permission{PermMCPCall}
	m.MCPTools = []string{"*"}
	caller := &fakeCaller{}
	b := NewBridge(&m, caller, nil)

	ctx := events.ContextWithSessionID(context.Background(), "sess-42")
	if _, err := b.Call(ctx, "toolA", nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(caller.requests) != 1 || caller.requests[0].SessionID != "sess-42" {
		t.Errorf("requests = %+v", caller.requests)
	}
}

func TestBridgeRecordsCalls(t *testing.T) {
	m := validManifest()
	m.Permissions = []Permission{PermMCPCall}
	m.MCPTools = []string{"*"}
	failing := &fakeCaller{err: registry.NewError(registry.CodeExecutionError, "boom")}
	b := NewBridge(&m, failing, nil)

	b.Call(context.Background(), "toolA", nil)
	calls := b.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].ToolID != "toolA" || calls[0].Success {
		t.Errorf("call record = %+v", calls[0])
	}
}

func providedTool(id string) registry.ToolDefinition {
	return registry.ToolDefinition{
		ID:          id,
		Name:        id,
		Description: "provided by a skill",
		Execution:   registry.Execution{Type: registry.ExecFunction, BuiltinFunction: "echo"},
	}
}

func TestRegisterProvidedTools(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()
	reg := registry.New(bus, nil)

	m := validManifest()
	m.Permissions = []Permission{PermMCPRegister}
	m.ProvidedTools = []registry.ToolDefinition{providedTool("forecast")}
	b := NewBridge(&m, nil, reg)

	if err := b.RegisterProvidedTools(); err != nil {
		t.Fatalf("RegisterProvidedTools: %v", err)
	}
	if _, ok := reg.Get("greeter_forecast"); !ok {
		t.Fatal("namespaced tool not registered")
	}

	b.UnregisterAllTools()
	if _, ok := reg.Get("greeter_forecast"); ok {
		t.Fatal("tool still registered after unregister")
	}
	if len(b.RegisteredTools()) != 0 {
		t.Error("tracked set not cleared")
	}
}

func TestRegisterProvidedToolsNeedsPermission(t *testing.T) {
	reg := registry.New(events.NewBus(16), nil)
	m := validManifest()
	m.ProvidedTools = []registry.ToolDefinition{providedTool("forecast")}
	b := NewBridge(&m, nil, reg)

	err := b.RegisterProvidedTools()
	if err == nil {
		t.Fatal("expected permission error")
	}
	if code := bridgeCode(t, err); code != registry.CodePermissionDenied {
		t.Errorf("code = %s, want PERMISSION_DENIED", code)
	}
}

func TestRegisterProvidedToolsRollsBack(t *testing.T) {
	reg := registry.New(events.NewBus(16), nil)
	m := validManifest()
	m.Permissions = []Permission{PermMCPRegister}
	m.ProvidedTools = []registry.ToolDefinition{
		providedTool("a"),
		{ID: "b", Execution: registry.Execution{Type: registry.ExecFunction}}, // invalid: no name
	}
	b := NewBridge(&m, nil, reg)

	if err := b.RegisterProvidedTools(); err == nil {
		t.Fatal("expected registration failure")
	}
	if _, ok := reg.Get("greeter_a"); ok {
		t.Error("partial registration not rolled back")
	}
}

func TestUnregisterTouchesOnlyOwnTools(t *testing.T) {
	reg := registry.New(events.NewBus(16), nil)
	other := providedTool("standalone")
	if err := reg.Register(other, registry.SourceUser, false); err != nil {
		t.Fatal(err)
	}

	m := validManifest()
	m.Permissions = []Permission{PermMCPRegister}
	m.ProvidedTools = []registry.ToolDefinition{providedTool("mine")}
	b := NewBridge(&m, nil, reg)
	if err := b.RegisterProvidedTools(); err != nil {
		t.Fatal(err)
	}

	b.UnregisterAllTools()
	if _, ok := reg.Get("standalone"); !ok {
		t.Error("unrelated tool was removed")
	}
}
