package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dohr-michael/toolhost/internal/events"
	"github.com/dohr-michael/toolhost/internal/registry"
)

const maxReadFileBytes = 1 << 20 // 1 MiB

// builtinFunc is one entry in the fixed built-in function table.
type builtinFunc func(ctx context.Context, args map[string]any) (any, error)

// functionBackend dispatches to the in-process built-in functions.
type functionBackend struct {
	funcs map[string]builtinFunc
	web   *webTools
}

func newFunctionBackend() *functionBackend {
	b := &functionBackend{web: &webTools{}}
	b.funcs = map[string]builtinFunc{
		"echo":         fnEcho,
		"current_time": fnCurrentTime,
		"read_file":    fnReadFile,
		"write_file":   fnWriteFile,
		"list_dir":     fnListDir,
		"search_files": fnSearchFiles,
		"web_search":   b.web.search,
		"web_fetch":    b.web.fetch,
	}
	return b
}

func (b *functionBackend) Execute(ctx context.Context, def *registry.ToolDefinition, args map[string]any) (any, error) {
	name := def.Execution.BuiltinFunction
	fn, ok := b.funcs[name]
	if !ok {
		return nil, registry.NewError(registry.CodeExecutionError,
			"tool %q references unknown built-in function %q", def.ID, name)
	}
	return fn(ctx, args)
}

func fnEcho(_ context.Context, args map[string]any) (any, error) {
	text, _ := args["text"].(string)
	return map[string]any{"text": text}, nil
}

func fnCurrentTime(_ context.Context, args map[string]any) (any, error) {
	layout := time.RFC3339
	if f, ok := args["format"].(string); ok && f != "" {
		layout = f
	}
	now := time.Now()
	return map[string]any{
		"time": now.Format(layout),
		"unix": now.Unix(),
	}, nil
}

// workspacePath resolves a path argument against the workspace root from the
// context. Absolute paths escaping the workspace are rejected.
func workspacePath(ctx context.Context, path string) (string, error) {
	root := events.WorkspaceFromContext(ctx)
	if root == "" {
		root, _ = os.Getwd()
	}
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(root, resolved)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes the workspace", path)
	}
	return resolved, nil
}

func fnReadFile(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	resolved, err := workspacePath(ctx, path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	if len(data) > maxReadFileBytes {
		data = data[:maxReadFileBytes]
	}

	content := string(data)
	offset, hasOffset := args["offset"].(float64)
	limit, hasLimit := args["limit"].(float64)
	if hasOffset || hasLimit {
		lines := strings.Split(content, "\n")
		start := int(offset)
		if start < 0 {
			start = 0
		}
		if start > len(lines) {
			start = len(lines)
		}
		end := len(lines)
		if hasLimit && int(limit) > 0 && start+int(limit) < end {
			end = start + int(limit)
		}
		content = strings.Join(lines[start:end], "\n")
	}

	return map[string]any{"path": path, "content": content}, nil
}

func fnWriteFile(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)

	resolved, err := workspacePath(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %q: %w", path, err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %q: %w", path, err)
	}
	return map[string]any{"path": path, "bytes": len(content)}, nil
}

func fnListDir(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}
	resolved, err := workspacePath(ctx, path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", path, err)
	}

	result := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		item := map[string]any{
			"name":  entry.Name(),
			"isDir": entry.IsDir(),
		}
		if info, err := entry.Info(); err == nil && !entry.IsDir() {
			item["size"] = info.Size()
		}
		result = append(result, item)
	}
	return result, nil
}

func fnSearchFiles(ctx context.Context, args map[string]any) (any, error) {
	pattern, _ := args["pattern"].(string)
	root := events.WorkspaceFromContext(ctx)
	if root == "" {
		root, _ = os.Getwd()
	}

	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}
