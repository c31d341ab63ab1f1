package executor

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dohr-michael/toolhost/internal/config"
)

func TestParseScriptOutcome(t *testing.T) {
	stdout := "console noise\nmore noise\n{\"ok\":true,\"result\":{\"sum\":3}}\n"
	outcome, err := parseScriptOutcome(stdout)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !outcome.OK {
		t.Error("expected ok outcome")
	}
	if !strings.Contains(string(outcome.Result), "sum") {
		t.Errorf("unexpected result %s", outcome.Result)
	}
}

func TestParseScriptOutcomeError(t *testing.T) {
	outcome, err := parseScriptOutcome(`{"ok":false,"error":"boom"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if outcome.OK || outcome.Error != "boom" {
		t.Errorf("unexpected outcome %+v", outcome)
	}
}

func TestParseScriptOutcomeEmpty(t *testing.T) {
	if _, err := parseScriptOutcome("no json here"); err == nil {
		t.Error("expected error for missing result line")
	}
}

func TestWriteScriptEmbedsCode(t *testing.T) {
	b := newScriptBackend(config.ExecutorConfig{DefaultTimeout: config.Duration(time.Second)})

	path, err := b.writeScript("return args.a + args.b;")
	if err != nil {
		t.Fatalf("write script: %v", err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "return args.a + args.b;") {
		t.Error("user code missing from harness")
	}
	if !strings.Contains(content, "require, process, module") {
		t.Error("harness should shadow node globals in the user scope")
	}
}
