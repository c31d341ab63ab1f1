package skills

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dohr-michael/toolhost/internal/config"
	"github.com/dohr-michael/toolhost/internal/events"
)

// Context carries the caller's editing context into a skill run.
type Context struct {
	WorkspaceRoot string `json:"workspaceRoot"`
	ActiveFile    string `json:"activeFile,omitempty"`
	SelectedCode  string `json:"selectedCode,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
}

// MCPCall is one Bridge-mediated tool invocation recorded during a run.
type MCPCall struct {
	ToolID   string        `json:"toolId"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// RunResult is the shared outcome shape for every skill runtime.
type RunResult struct {
	SkillID  string        `json:"skillId"`
	Success  bool          `json:"success"`
	Output   any           `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Logs     []string      `json:"logs,omitempty"`
	MCPCalls []MCPCall     `json:"mcpCalls,omitempty"`
	Duration time.Duration `json:"duration"`
}

// BuiltinSkill is an in-process skill implementation. Lowest isolation,
// reserved for trusted first-party packages.
type BuiltinSkill func(ctx context.Context, sc Context, params map[string]any, bridge *Bridge) (any, error)

// Executor runs installed skills. One in-flight run per skill id; a second
// start while one is active is rejected, not queued.
type Executor struct {
	cfg  config.SkillsConfig
	bus  *events.Bus
	wasm *WasmRuntime

	mu       sync.Mutex
	running  map[string]context.CancelFunc
	builtins map[string]BuiltinSkill
}

const maxLogLines = 500

// NewExecutor creates a skill executor.
func NewExecutor(cfg config.SkillsConfig, bus *events.Bus) *Executor {
	return &Executor{
		cfg:      cfg,
		bus:      bus,
		wasm:     NewWasmRuntime(),
		running:  make(map[string]context.CancelFunc),
		builtins: make(map[string]BuiltinSkill),
	}
}

// RegisterBuiltin binds an in-process implementation to a skill id.
func (e *Executor) RegisterBuiltin(id string, fn BuiltinSkill) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.builtins[id] = fn
}

// Run executes the skill and blocks until it finishes or the context is
// cancelled. The bridge scopes the skill's tool access; it may be nil for
// skills without the mcp:call permission.
func (e *Executor) Run(ctx context.Context, skill *InstalledSkill, sc Context, params map[string]any, bridge *Bridge) (*RunResult, error) {
	id := skill.Manifest.ID

	runCtx, cancel, err := e.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer e.release(id, cancel)

	start := time.Now()
	e.bus.Publish(events.NewTypedEventWithSession(events.SourceSkill, events.SkillStartedPayload{
		SkillID: id,
		Runtime: string(skill.Manifest.EffectiveRuntime()),
	}, sc.SessionID))

	result := e.dispatch(runCtx, skill, sc, params, bridge)
	result.SkillID = id
	result.Duration = time.Since(start)
	if bridge != nil {
		result.MCPCalls = bridge.Calls()
	}

	e.bus.Publish(events.NewTypedEventWithSession(events.SourceSkill, events.SkillCompletedPayload{
		SkillID:  id,
		Success:  result.Success,
		Error:    result.Error,
		Duration: result.Duration,
		MCPCalls: len(result.MCPCalls),
	}, sc.SessionID))

	slog.Info("skill run finished",
		"skill", id,
		"success", result.Success,
		"duration", result.Duration,
		"mcp_calls", len(result.MCPCalls))
	return result, nil
}

// Cancel terminates the running process for the given skill id, if any.
func (e *Executor) Cancel(id string) bool {
	e.mu.Lock()
	cancel, ok := e.running[id]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Close cancels in-flight runs and unloads compiled wasm plugins.
func (e *Executor) Close(ctx context.Context) {
	e.mu.Lock()
	for _, cancel := range e.running {
		cancel()
	}
	e.mu.Unlock()
	e.wasm.Close(ctx)
}

// Running lists skill ids with an in-flight run.
func (e *Executor) Running() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.running))
	for id := range e.running {
		ids = append(ids, id)
	}
	return ids
}

func (e *Executor) acquire(ctx context.Context, id string) (context.Context, context.CancelFunc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.running[id]; busy {
		return nil, nil, fmt.Errorf("skill %s is already running", id)
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.running[id] = cancel
	return runCtx, cancel, nil
}

func (e *Executor) release(id string, cancel context.CancelFunc) {
	cancel()
	e.mu.Lock()
	delete(e.running, id)
	e.mu.Unlock()
}

func (e *Executor) dispatch(ctx context.Context, skill *InstalledSkill, sc Context, params map[string]any, bridge *Bridge) *RunResult {
	switch skill.Manifest.EffectiveRuntime() {
	case RuntimeNode:
		return e.runProcess(ctx, skill, sc, params, e.cfg.NodeBin)
	case RuntimePython:
		return e.runProcess(ctx, skill, sc, params, e.cfg.PythonBin)
	case RuntimeShell:
		return e.runProcess(ctx, skill, sc, params, "sh")
	case RuntimeBuiltin:
		return e.runBuiltin(ctx, skill, sc, params, bridge)
	case RuntimeWasm:
		return e.runWasm(ctx, skill, params)
	default:
		return &RunResult{Error: fmt.Sprintf("unknown runtime %q", skill.Manifest.Runtime)}
	}
}

func (e *Executor) runBuiltin(ctx context.Context, skill *InstalledSkill, sc Context, params map[string]any, bridge *Bridge) *RunResult {
	e.mu.Lock()
	fn, ok := e.builtins[skill.Manifest.ID]
	e.mu.Unlock()
	if !ok {
		return &RunResult{Error: fmt.Sprintf("no builtin implementation for skill %s", skill.Manifest.ID)}
	}
	output, err := fn(ctx, sc, params, bridge)
	if err != nil {
		return &RunResult{Error: err.Error()}
	}
	return &RunResult{Success: true, Output: output}
}

func (e *Executor) runWasm(ctx context.Context, skill *InstalledSkill, params map[string]any) *RunResult {
	output, err := e.wasm.Call(ctx, skill, params)
	if err != nil {
		return &RunResult{Error: err.Error()}
	}
	return &RunResult{Success: true, Output: output}
}

// runProcess spawns the skill entry point as a child process. The context is
// serialized into environment variables; stdout/stderr are streamed as skill
// log events; the last JSON-parseable stdout line is the structured result.
func (e *Executor) runProcess(ctx context.Context, skill *InstalledSkill, sc Context, params map[string]any, bin string) *RunResult {
	main := filepath.Join(skill.InstallPath, skill.Manifest.Main)
	if _, err := os.Stat(main); err != nil {
		return &RunResult{Error: fmt.Sprintf("entry point %s: %v", skill.Manifest.Main, err)}
	}

	env, err := skillEnv(skill, sc, params)
	if err != nil {
		return &RunResult{Error: err.Error()}
	}

	var (
		logMu    sync.Mutex
		logs     []string
		lastJSON string
		errTail  []string
	)
	appendLog := func(line string, isErr bool) {
		logMu.Lock()
		if len(logs) < maxLogLines {
			logs = append(logs, line)
		}
		if isErr {
			if len(errTail) >= 10 {
				errTail = errTail[1:]
			}
			errTail = append(errTail, line)
		} else if looksLikeJSON(line) {
			lastJSON = line
		}
		logMu.Unlock()
		e.bus.Publish(events.NewTypedEventWithSession(events.SourceSkill, events.SkillLogPayload{
			SkillID: skill.Manifest.ID,
			Line:    line,
		}, sc.SessionID))
	}

	cmd := exec.CommandContext(ctx, bin, main)
	cmd.Dir = skill.InstallPath
	cmd.Env = env
	cmd.Stdout = &lineWriter{emit: func(line string) { appendLog(line, false) }}
	cmd.Stderr = &lineWriter{emit: func(line string) { appendLog(line, true) }}
	// Unblocks Wait even when an orphaned grandchild keeps the pipes open.
	cmd.WaitDelay = time.Second

	runErr := cmd.Run()
	flushWriters(cmd.Stdout, cmd.Stderr)
	result := &RunResult{Logs: logs}

	if ctx.Err() != nil {
		result.Error = "skill cancelled"
		return result
	}
	if runErr != nil {
		result.Error = fmt.Sprintf("%s exited: %v", bin, runErr)
		if len(errTail) > 0 {
			result.Error += ": " + strings.Join(errTail, "\n")
		}
		return result
	}

	result.Success = true
	if lastJSON != "" {
		var out any
		if err := json.Unmarshal([]byte(lastJSON), &out); err == nil {
			result.Output = out
			return result
		}
	}
	result.Output = strings.Join(logs, "\n")
	return result
}

// lineWriter splits a byte stream into lines and hands each to emit.
type lineWriter struct {
	emit func(string)
	buf  bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// partial line, keep for the next write
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.emit(strings.TrimRight(line, "\r\n"))
	}
}

func (w *lineWriter) flush() {
	if w.buf.Len() > 0 {
		w.emit(strings.TrimRight(w.buf.String(), "\r\n"))
		w.buf.Reset()
	}
}

func flushWriters(writers ...io.Writer) {
	for _, w := range writers {
		if lw, ok := w.(*lineWriter); ok {
			lw.flush()
		}
	}
}

func looksLikeJSON(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// skillEnv builds the child environment: a reduced copy of the host
// environment plus the serialized skill context.
func skillEnv(skill *InstalledSkill, sc Context, params map[string]any) ([]string, error) {
	ctxJSON, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal skill context: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal skill params: %w", err)
	}

	env := make([]string, 0, 16)
	for _, key := range []string{"PATH", "HOME", "TMPDIR", "LANG", "USER"} {
		if v := os.Getenv(key); v != "" {
			env = append(env, key+"="+v)
		}
	}
	env = append(env,
		"SKILL_CONTEXT="+string(ctxJSON),
		"SKILL_PARAMS="+string(paramsJSON),
		"SKILL_ID="+skill.Manifest.ID,
		"WORKSPACE_ROOT="+sc.WorkspaceRoot,
		"ACTIVE_FILE="+sc.ActiveFile,
		"SELECTED_CODE="+sc.SelectedCode,
	)
	// Manifest defaults, overridden by per-install user config.
	cfg := make(map[string]string, len(skill.Manifest.Config)+len(skill.UserConfig))
	for k, v := range skill.Manifest.Config {
		cfg[k] = v
	}
	for k, v := range skill.UserConfig {
		cfg[k] = v
	}
	for k, v := range cfg {
		if validEnvName(k) {
			env = append(env, "SKILL_CONFIG_"+strings.ToUpper(k)+"="+v)
		}
	}
	return env, nil
}

func validEnvName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}
