package executor

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/dohr-michael/toolhost/internal/config"
	"github.com/dohr-michael/toolhost/internal/registry"
)

// destructiveRule is a shell pattern that is never allowed to run.
type destructiveRule struct {
	pattern *regexp.Regexp
	reason  string
}

var destructivePatterns []destructiveRule

func init() {
	raw := []struct {
		pattern string
		reason  string
	}{
		{`\brm\s+.*-[a-zA-Z]*[rR]`, "recursive remove"},
		{`\brm\s+.*-[a-zA-Z]*[fF]`, "force remove"},
		{`\bdd\b\s+.*\bof=`, "raw disk write (dd)"},
		{`\bmkfs\b`, "filesystem format"},
		{`\bfdisk\b`, "partition edit"},
		{`:\(\)\s*\{`, "fork bomb"},
		{`>/dev/sd[a-z]`, "raw device write"},
		{`\bchmod\s+.*-[a-zA-Z]*[rR]`, "recursive chmod"},
		{`\bchown\s+.*-[a-zA-Z]*[rR]`, "recursive chown"},
		{`\bsudo\b`, "privilege escalation"},
		{`\bsu\s`, "switch user"},
	}
	destructivePatterns = make([]destructiveRule, len(raw))
	for i, r := range raw {
		destructivePatterns[i] = destructiveRule{
			pattern: regexp.MustCompile(r.pattern),
			reason:  r.reason,
		}
	}
}

// deniedCommands are blocked by name at the shell-word level, which catches
// quoting tricks the regexes miss ("sudo", 'su'do, etc).
var deniedCommands = map[string]string{
	"sudo":     "privilege escalation",
	"su":       "switch user",
	"mkfs":     "filesystem format",
	"fdisk":    "partition edit",
	"shutdown": "system shutdown",
	"reboot":   "system reboot",
	"halt":     "system halt",
	"poweroff": "system poweroff",
}

// CommandOutput is the result shape of the command backend. A non-zero exit
// code is data, not an execution error.
type CommandOutput struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	ExitCode  int    `json:"exitCode"`
	Truncated bool   `json:"truncated,omitempty"`
}

// commandBackend runs shell commands through sh -c after a denylist scan.
type commandBackend struct {
	defaultTimeout time.Duration
	maxOutputKB    int
	extraDenied    []string
	parser         *syntax.Parser
}

func newCommandBackend(cfg config.ExecutorConfig) *commandBackend {
	timeout := cfg.DefaultTimeout.Duration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxKB := cfg.MaxOutputKB
	if maxKB <= 0 {
		maxKB = 256
	}
	return &commandBackend{
		defaultTimeout: timeout,
		maxOutputKB:    maxKB,
		extraDenied:    cfg.DangerousDenied,
		parser:         syntax.NewParser(),
	}
}

func (b *commandBackend) Execute(ctx context.Context, def *registry.ToolDefinition, args map[string]any) (any, error) {
	spec := def.Execution.Command
	if spec == nil {
		return nil, registry.NewError(registry.CodeExecutionError, "tool %q has no command configuration", def.ID)
	}

	command := substituteParams(spec.Command, args)
	if strings.TrimSpace(command) == "" {
		return nil, registry.NewError(registry.CodeInvalidParams, "tool %q resolved to an empty command", def.ID)
	}

	if reason := b.scanDenied(command); reason != "" {
		return nil, registry.NewError(registry.CodePermissionDenied,
			"tool %q: command blocked (%s)", def.ID, reason)
	}

	timeout := b.defaultTimeout
	if spec.TimeoutMS > 0 {
		timeout = time.Duration(spec.TimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if spec.WorkingDir != "" {
		cmd.Dir = substituteParams(spec.WorkingDir, args)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, registry.NewError(registry.CodeExecutionError, "tool %q timed out after %s", def.ID, timeout)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, registry.NewError(registry.CodeExecutionError, "tool %q: exec: %v", def.ID, err)
		}
	}

	out := CommandOutput{ExitCode: exitCode}
	out.Stdout, out.Truncated = b.truncate(stdout.String())
	var trunc bool
	out.Stderr, trunc = b.truncate(stderr.String())
	out.Truncated = out.Truncated || trunc
	return out, nil
}

func (b *commandBackend) truncate(s string) (string, bool) {
	max := b.maxOutputKB * 1024
	if len(s) > max {
		return s[:max], true
	}
	return s, false
}

// scanDenied checks the resolved command against the destructive patterns,
// the configured extra substrings, and the parsed shell words. Returns the
// block reason, or "" when the command is allowed.
func (b *commandBackend) scanDenied(command string) string {
	for i := range destructivePatterns {
		if destructivePatterns[i].pattern.MatchString(command) {
			return destructivePatterns[i].reason
		}
	}
	for _, denied := range b.extraDenied {
		if denied != "" && strings.Contains(command, denied) {
			return "denied by configuration: " + denied
		}
	}
	return b.scanShellWords(command)
}

// scanShellWords parses the command and checks every call's first word
// against the denied-commands set. Unparseable input is blocked.
func (b *commandBackend) scanShellWords(command string) string {
	file, err := b.parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return "unparseable shell command"
	}

	var reason string
	syntax.Walk(file, func(node syntax.Node) bool {
		if reason != "" {
			return false
		}
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		if name := literalWord(call.Args[0]); name != "" {
			if r, denied := deniedCommands[name]; denied {
				reason = r
				return false
			}
		}
		return true
	})
	return reason
}

// literalWord joins the literal and quoted parts of a shell word.
func literalWord(w *syntax.Word) string {
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				if lit, ok := inner.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		}
	}
	return sb.String()
}

// substituteParams expands {{param}} tokens from the validated arguments.
// Unknown tokens resolve to the empty string.
func substituteParams(tmpl string, args map[string]any) string {
	return paramTokenRe.ReplaceAllStringFunc(tmpl, func(token string) string {
		name := paramTokenRe.FindStringSubmatch(token)[1]
		value, ok := args[name]
		if !ok {
			return ""
		}
		return stringifyArg(value)
	})
}
