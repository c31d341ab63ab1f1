package invoke

import (
	"context"
	"testing"

	"github.com/dohr-michael/toolhost/internal/events"
	"github.com/dohr-michael/toolhost/internal/executor"
	"github.com/dohr-michael/toolhost/internal/registry"
)

type recordingCaller struct {
	last executor.Request
}

func (c *recordingCaller) Execute(_ context.Context, req executor.Request) (executor.Result, error) {
	c.last = req
	return executor.Result{ToolID: req.ToolID, Success: true, Output: "ok"}, nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *recordingCaller) {
	t.Helper()
	bus := events.NewBus(8)
	t.Cleanup(bus.Close)

	reg := registry.New(bus, nil)
	if err := reg.Load(); err != nil {
		t.Fatalf("load registry: %v", err)
	}

	caller := &recordingCaller{}
	return &Dispatcher{Registry: reg, Executor: caller}, caller
}

func TestDispatch_CallRoutesToExecutor(t *testing.T) {
	d, caller := newTestDispatcher(t)

	inv, err := Parse(`@mcp:echo text=hi`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := d.Dispatch(context.Background(), inv)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	res, ok := out.(executor.Result)
	if !ok {
		t.Fatalf("expected executor.Result, got %T", out)
	}
	if !res.Success {
		t.Error("expected success")
	}
	if caller.last.ToolID != "echo" || caller.last.Caller != registry.CallerUser {
		t.Errorf("unexpected request: %+v", caller.last)
	}
	if caller.last.Arguments["text"] != "hi" {
		t.Errorf("arguments not forwarded: %+v", caller.last.Arguments)
	}
}

func TestDispatch_ListAndSearch(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out, err := d.Dispatch(context.Background(), &Invocation{Kind: KindList})
	if err != nil {
		t.Fatalf("Dispatch list: %v", err)
	}
	tools := out.([]ToolSummary)
	if len(tools) == 0 {
		t.Fatal("expected builtin tools in list")
	}
	for i := 1; i < len(tools); i++ {
		if tools[i-1].ID > tools[i].ID {
			t.Fatalf("list not sorted: %s > %s", tools[i-1].ID, tools[i].ID)
		}
	}

	out, err = d.Dispatch(context.Background(), &Invocation{Kind: KindSearch, Query: "echo"})
	if err != nil {
		t.Fatalf("Dispatch search: %v", err)
	}
	found := false
	for _, ts := range out.([]ToolSummary) {
		if ts.ID == "echo" {
			found = true
		}
	}
	if !found {
		t.Error("search did not match the echo builtin")
	}
}

func TestDispatch_Manage(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out, err := d.Dispatch(context.Background(), &Invocation{Kind: KindManage})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	sum := out.(ManageSummary)
	if sum.Total == 0 || sum.Enabled != sum.Total {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if sum.BySource["builtin"] != sum.Total {
		t.Errorf("expected all builtin, got %+v", sum.BySource)
	}
}

func TestDispatch_HistoryWithoutLog(t *testing.T) {
	d, _ := newTestDispatcher(t)

	if _, err := d.Dispatch(context.Background(), &Invocation{Kind: KindHistory}); err == nil {
		t.Error("expected an error without an open execution log")
	}
}
