package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dohr-michael/toolhost/internal/events"
	"github.com/dohr-michael/toolhost/internal/registry"
)

func workspaceCtx(t *testing.T) (context.Context, string) {
	t.Helper()
	dir := t.TempDir()
	return events.ContextWithWorkspace(context.Background(), dir), dir
}

func TestReadWriteRoundTrip(t *testing.T) {
	ctx, dir := workspaceCtx(t)

	out, err := fnWriteFile(ctx, map[string]any{"path": "notes/todo.txt", "content": "hello"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if out.(map[string]any)["bytes"] != 5 {
		t.Errorf("unexpected write result %#v", out)
	}

	if _, err := os.Stat(filepath.Join(dir, "notes/todo.txt")); err != nil {
		t.Fatalf("file not created: %v", err)
	}

	read, err := fnReadFile(ctx, map[string]any{"path": "notes/todo.txt"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if read.(map[string]any)["content"] != "hello" {
		t.Errorf("unexpected content %#v", read)
	}
}

func TestReadFileOffsetLimit(t *testing.T) {
	ctx, dir := workspaceCtx(t)
	content := "l0\nl1\nl2\nl3\nl4"
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := fnReadFile(ctx, map[string]any{"path": "f.txt", "offset": float64(1), "limit": float64(2)})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := out.(map[string]any)["content"]; got != "l1\nl2" {
		t.Errorf("unexpected slice %q", got)
	}
}

func TestWorkspaceEscapeRejected(t *testing.T) {
	ctx, _ := workspaceCtx(t)

	if _, err := fnReadFile(ctx, map[string]any{"path": "../../etc/passwd"}); err == nil {
		t.Error("path traversal should be rejected")
	}
	if _, err := fnWriteFile(ctx, map[string]any{"path": "/etc/hosts", "content": "x"}); err == nil {
		t.Error("absolute path outside workspace should be rejected")
	}
}

func TestListDir(t *testing.T) {
	ctx, dir := workspaceCtx(t)
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	out, err := fnListDir(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	entries := out.([]map[string]any)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestSearchFiles(t *testing.T) {
	ctx, dir := workspaceCtx(t)
	for _, p := range []string{"a.go", "sub/b.go", "sub/c.txt"} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := fnSearchFiles(ctx, map[string]any{"pattern": "**/*.go"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	matches := out.([]string)
	if len(matches) != 2 {
		t.Errorf("expected 2 matches, got %v", matches)
	}
}

func TestCurrentTimeFormat(t *testing.T) {
	out, err := fnCurrentTime(context.Background(), map[string]any{"format": "2006-01-02"})
	if err != nil {
		t.Fatalf("current_time: %v", err)
	}
	result := out.(map[string]any)
	if len(result["time"].(string)) != 10 {
		t.Errorf("unexpected formatted time %v", result["time"])
	}
	if result["unix"].(int64) <= 0 {
		t.Error("expected positive unix timestamp")
	}
}

func TestUnknownBuiltinFunction(t *testing.T) {
	exec, reg, _ := newTestExecutor(t)

	def := registry.ToolDefinition{
		ID:          "ghost_tool",
		Name:        "Ghost",
		Description: "references a missing function",
		Version:     "1.0.0",
		Execution:   registry.Execution{Type: registry.ExecFunction, BuiltinFunction: "no_such_fn"},
	}
	if err := reg.Register(def, registry.SourceUser, false); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := exec.Execute(context.Background(), Request{ToolID: "ghost_tool"})
	if code := codeOf(t, err); code != registry.CodeExecutionError {
		t.Errorf("expected EXECUTION_ERROR, got %s", code)
	}
}
