package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dohr-michael/toolhost/internal/config"
	"github.com/dohr-michael/toolhost/internal/registry"
)

// scriptHarness wraps the tool's code in an isolated subprocess entry point.
// Arguments arrive as JSON on stdin; the outcome is the last JSON line on
// stdout. require, process and module are shadowed inside the user scope so
// the snippet only sees args and plain JavaScript.
const scriptHarness = `"use strict";
const __chunks = [];
process.stdin.on("data", (c) => __chunks.push(c));
process.stdin.on("end", async () => {
  const args = JSON.parse(Buffer.concat(__chunks).toString() || "{}");
  const __run = async (args, require, process, module, globalThis) => {
%s
  };
  let __outcome;
  try {
    const result = await __run(args);
    __outcome = { ok: true, result: result === undefined ? null : result };
  } catch (err) {
    __outcome = { ok: false, error: String((err && err.message) || err) };
  }
  process.stdout.write("\n" + JSON.stringify(__outcome) + "\n");
});
`

type scriptOutcome struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// scriptBackend runs JavaScript snippets in a node subprocess.
type scriptBackend struct {
	interpreter    string
	defaultTimeout time.Duration
	maxOutputKB    int
}

func newScriptBackend(cfg config.ExecutorConfig) *scriptBackend {
	interpreter := cfg.ScriptInterpreter
	if interpreter == "" {
		interpreter = "node"
	}
	timeout := cfg.DefaultTimeout.Duration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxKB := cfg.MaxOutputKB
	if maxKB <= 0 {
		maxKB = 256
	}
	return &scriptBackend{
		interpreter:    interpreter,
		defaultTimeout: timeout,
		maxOutputKB:    maxKB,
	}
}

func (b *scriptBackend) Execute(ctx context.Context, def *registry.ToolDefinition, args map[string]any) (any, error) {
	spec := def.Execution.Script
	if spec == nil {
		return nil, registry.NewError(registry.CodeExecutionError, "tool %q has no script configuration", def.ID)
	}

	scriptFile, err := b.writeScript(spec.Code)
	if err != nil {
		return nil, registry.NewError(registry.CodeExecutionError, "tool %q: prepare script: %v", def.ID, err)
	}
	defer os.Remove(scriptFile)

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, registry.NewError(registry.CodeExecutionError, "tool %q: encode arguments: %v", def.ID, err)
	}

	timeout := b.defaultTimeout
	if spec.TimeoutMS > 0 {
		timeout = time.Duration(spec.TimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.interpreter, scriptFile)
	cmd.Stdin = bytes.NewReader(argsJSON)
	cmd.Env = minimalEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, registry.NewError(registry.CodeExecutionError, "tool %q timed out after %s", def.ID, timeout)
		}
		return nil, registry.NewError(registry.CodeExecutionError,
			"tool %q: script failed: %v: %s", def.ID, err, firstLine(stderr.String()))
	}

	outcome, err := parseScriptOutcome(stdout.String())
	if err != nil {
		return nil, registry.NewError(registry.CodeExecutionError, "tool %q: %v", def.ID, err)
	}
	if !outcome.OK {
		return nil, registry.NewError(registry.CodeExecutionError, "tool %q: %s", def.ID, outcome.Error)
	}

	var result any
	if len(outcome.Result) > 0 {
		if err := json.Unmarshal(outcome.Result, &result); err != nil {
			return nil, registry.NewError(registry.CodeExecutionError, "tool %q: decode result: %v", def.ID, err)
		}
	}
	return result, nil
}

func (b *scriptBackend) writeScript(code string) (string, error) {
	f, err := os.CreateTemp("", "toolhost-script-*.js")
	if err != nil {
		return "", err
	}
	defer f.Close()

	indented := "    " + strings.ReplaceAll(code, "\n", "\n    ")
	if _, err := fmt.Fprintf(f, scriptHarness, indented); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// parseScriptOutcome extracts the last JSON object line written by the
// harness. Earlier lines are user console output and are ignored.
func parseScriptOutcome(stdout string) (*scriptOutcome, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var outcome scriptOutcome
		if err := json.Unmarshal([]byte(line), &outcome); err == nil {
			return &outcome, nil
		}
	}
	return nil, fmt.Errorf("script produced no result")
}

// minimalEnv strips the parent environment down to what node needs to start.
func minimalEnv() []string {
	env := []string{"NODE_ENV=production"}
	for _, key := range []string{"PATH", "HOME", "TMPDIR", "LANG"} {
		if v := os.Getenv(key); v != "" {
			env = append(env, key+"="+v)
		}
	}
	return env
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
