package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dohr-michael/toolhost/internal/config"
	"github.com/dohr-michael/toolhost/internal/events"
)

func newTestSkillExecutor(t *testing.T) (*Executor, *events.Bus) {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(bus.Close)
	cfg := config.SkillsConfig{Dir: t.TempDir(), NodeBin: "node", PythonBin: "python3"}
	return NewExecutor(cfg, bus), bus
}

func shellSkill(t *testing.T, id, script string) *InstalledSkill {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.sh"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return &InstalledSkill{
		Manifest: Manifest{
			ID:          id,
			Name:        id,
			Version:     "1.0.0",
			Description: "test skill",
			Runtime:     RuntimeShell,
			Main:        "main.sh",
		},
		InstallPath: dir,
		Status:      StatusActive,
		InstalledAt: time.Now(),
	}
}

func TestRunShellSkillJSONResult(t *testing.T) {
	exec, _ := newTestSkillExecutor(t)
	skill := shellSkill(t, "jsonout", "echo working on it\necho '{\"answer\": 42}'\n")

	result, err := exec.Run(context.Background(), skill, Context{WorkspaceRoot: t.TempDir()}, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.Error)
	}
	out, ok := result.Output.(map[string]any)
	if !ok {
		t.Fatalf("output = %T %v, want object", result.Output, result.Output)
	}
	if out["answer"] != float64(42) {
		t.Errorf("answer = %v", out["answer"])
	}
	if len(result.Logs) != 2 {
		t.Errorf("logs = %v, want both lines captured", result.Logs)
	}
	if result.Duration <= 0 {
		t.Error("duration not recorded")
	}
}

func TestRunShellSkillPlainOutput(t *testing.T) {
	exec, _ := newTestSkillExecutor(t)
	skill := shellSkill(t, "plain", "echo hello\necho world\n")

	result, err := exec.Run(context.Background(), skill, Context{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.Error)
	}
	if result.Output != "hello\nworld" {
		t.Errorf("output = %q", result.Output)
	}
}

func TestRunShellSkillFailure(t *testing.T) {
	exec, _ := newTestSkillExecutor(t)
	skill := shellSkill(t, "failing", "echo diagnostics >&2\nexit 3\n")

	result, err := exec.Run(context.Background(), skill, Context{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("expected failure for non-zero exit")
	}
	if result.Error == "" {
		t.Error("expected an error message")
	}
}

func TestSkillEnvironment(t *testing.T) {
	exec, _ := newTestSkillExecutor(t)
	skill := shellSkill(t, "envcheck", `printf '{"id":"%s","root":"%s"}\n' "$SKILL_ID" "$WORKSPACE_ROOT"`+"\n")

	ws := t.TempDir()
	result, err := exec.Run(context.Background(), skill, Context{WorkspaceRoot: ws}, map[string]any{"city": "Paris"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.Error)
	}
	out := result.Output.(map[string]any)
	if out["id"] != "envcheck" {
		t.Errorf("SKILL_ID = %v", out["id"])
	}
	if out["root"] != ws {
		t.Errorf("WORKSPACE_ROOT = %v", out["root"])
	}
}

func TestSkillLogEventsStreamed(t *testing.T) {
	exec, bus := newTestSkillExecutor(t)
	ch, unsub := bus.SubscribeChan(16, events.EventSkillLog)
	defer unsub()

	skill := shellSkill(t, "logger", "echo line one\necho line two\n")
	if _, err := exec.Run(context.Background(), skill, Context{}, nil, nil); err != nil {
		t.Fatal(err)
	}

	var lines []string
	timeout := time.After(2 * time.Second)
	for len(lines) < 2 {
		select {
		case ev := <-ch:
			lines = append(lines, ev.Payload["line"].(string))
		case <-timeout:
			t.Fatalf("saw %d log events, want 2", len(lines))
		}
	}
}

func TestSkillSingleFlight(t *testing.T) {
	exec, _ := newTestSkillExecutor(t)
	skill := shellSkill(t, "slow", "sleep 5\n")

	done := make(chan struct{})
	go func() {
		defer close(done)
		exec.Run(context.Background(), skill, Context{}, nil, nil)
	}()

	waitForRunning(t, exec, "slow")
	if _, err := exec.Run(context.Background(), skill, Context{}, nil, nil); err == nil {
		t.Error("second concurrent run should be rejected")
	}

	exec.Cancel("slow")
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("cancelled run did not finish")
	}
}

func TestSkillCancel(t *testing.T) {
	exec, _ := newTestSkillExecutor(t)
	skill := shellSkill(t, "sleeper", "sleep 30\n")

	type outcome struct {
		result *RunResult
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, err := exec.Run(context.Background(), skill, Context{}, nil, nil)
		ch <- outcome{r, err}
	}()

	waitForRunning(t, exec, "sleeper")
	if !exec.Cancel("sleeper") {
		t.Fatal("Cancel found no running skill")
	}

	select {
	case o := <-ch:
		if o.err != nil {
			t.Fatalf("Run: %v", o.err)
		}
		if o.result.Success {
			t.Error("cancelled run should not succeed")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	if exec.Cancel("sleeper") {
		t.Error("Cancel should report false once the run is gone")
	}
}

func TestRunBuiltinSkill(t *testing.T) {
	exec, _ := newTestSkillExecutor(t)
	exec.RegisterBuiltin("adder", func(_ context.Context, _ Context, params map[string]any, _ *Bridge) (any, error) {
		a, _ := params["a"].(float64)
		b, _ := params["b"].(float64)
		return map[string]any{"sum": a + b}, nil
	})

	skill := &InstalledSkill{
		Manifest: Manifest{
			ID: "adder", Name: "Adder", Version: "1.0.0",
			Description: "adds numbers", Runtime: RuntimeBuiltin,
		},
		Status: StatusActive,
	}
	result, err := exec.Run(context.Background(), skill, Context{}, map[string]any{"a": 2.0, "b": 3.0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("run failed: %s", result.Error)
	}
	if result.Output.(map[string]any)["sum"] != 5.0 {
		t.Errorf("sum = %v", result.Output)
	}
}

func TestRunBuiltinSkillMissingImpl(t *testing.T) {
	exec, _ := newTestSkillExecutor(t)
	skill := &InstalledSkill{
		Manifest: Manifest{
			ID: "ghost", Name: "Ghost", Version: "1.0.0",
			Description: "never bound", Runtime: RuntimeBuiltin,
		},
	}
	result, err := exec.Run(context.Background(), skill, Context{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("expected failure for unbound builtin")
	}
}

func waitForRunning(t *testing.T, exec *Executor, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, running := range exec.Running() {
			if running == id {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("skill %s never started", id)
}
