package runtime

import (
	"context"
	"testing"

	"github.com/dohr-michael/toolhost/internal/config"
	"github.com/dohr-michael/toolhost/internal/executor"
	"github.com/dohr-michael/toolhost/internal/registry"
	"github.com/dohr-michael/toolhost/internal/storage"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	t.Setenv("TOOLHOST_PATH", t.TempDir())

	cfg := config.Default()
	rt, err := New(context.Background(), cfg, Options{SkipEventLog: true, SkipModels: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { rt.Close(context.Background()) })
	return rt
}

func TestNew_WiresBuiltinTools(t *testing.T) {
	rt := newTestRuntime(t)

	if _, ok := rt.Registry.Get("echo"); !ok {
		t.Fatal("builtin echo tool not registered")
	}
	if rt.Agent == nil {
		t.Fatal("agent not constructed")
	}
}

func TestRuntime_ExecuteAndLog(t *testing.T) {
	rt := newTestRuntime(t)

	res, err := rt.Executor.Execute(context.Background(), executor.Request{
		ToolID:    "echo",
		Caller:    registry.CallerUser,
		Arguments: map[string]any{"text": "hello"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("execution failed: %+v", res.Error)
	}

	recs, err := rt.ExecLog().List(context.Background(), storage.Filter{ToolID: "echo"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 logged record, got %d", len(recs))
	}
	if recs[0].ToolID != "echo" || !recs[0].Success {
		t.Fatalf("unexpected record: %+v", recs[0])
	}
}
