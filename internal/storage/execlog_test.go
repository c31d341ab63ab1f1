package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/dohr-michael/toolhost/internal/executor"
	"github.com/dohr-michael/toolhost/internal/registry"
)

func openTestLog(t *testing.T, maxRows int) *ExecLog {
	t.Helper()
	log, err := OpenExecLog(filepath.Join(t.TempDir(), "history.db"), maxRows)
	if err != nil {
		t.Fatalf("open exec log: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func execRecord(i int, toolID string, success bool) executor.Record {
	return executor.Record{
		ID:        fmt.Sprintf("req-%d", i),
		ToolID:    toolID,
		Caller:    registry.CallerUser,
		Arguments: map[string]any{"n": float64(i)},
		Success:   success,
		StartedAt: time.Now().Add(time.Duration(i) * time.Second),
		Duration:  25 * time.Millisecond,
	}
}

func TestExecLogAppendAndList(t *testing.T) {
	log := openTestLog(t, 0)

	if err := log.AppendRecord(execRecord(0, "echo", true)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.AppendRecord(execRecord(1, "web_search", false)); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := log.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "req-1" {
		t.Errorf("expected newest first, got %s", records[0].ID)
	}
	if records[0].Arguments["n"] != float64(1) {
		t.Errorf("arguments not round-tripped: %#v", records[0].Arguments)
	}
}

func TestExecLogFilters(t *testing.T) {
	log := openTestLog(t, 0)

	for i := 0; i < 4; i++ {
		tool := "echo"
		if i%2 == 1 {
			tool = "web_search"
		}
		if err := log.AppendRecord(execRecord(i, tool, true)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	byTool, err := log.List(context.Background(), Filter{ToolID: "echo"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byTool) != 2 {
		t.Errorf("expected 2 echo records, got %d", len(byTool))
	}

	limited, err := log.List(context.Background(), Filter{Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit not applied, got %d", len(limited))
	}
}

func TestExecLogEvictsPastCap(t *testing.T) {
	log := openTestLog(t, 3)

	for i := 0; i < 6; i++ {
		if err := log.AppendRecord(execRecord(i, "echo", true)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	n, err := log.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 retained rows, got %d", n)
	}

	records, err := log.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if records[0].ID != "req-5" || records[2].ID != "req-3" {
		t.Errorf("wrong rows retained: %s..%s", records[0].ID, records[2].ID)
	}
}
