package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const maxResultChars = 600

// summarize produces the final natural-language answer. A summarization
// failure degrades to a deterministic counting summary instead of failing
// the task.
func (a *Agent) summarize(ctx context.Context, task Task, steps []Step) string {
	if a.completer == nil {
		return fallbackSummary(steps)
	}
	reply, err := a.completer.Complete(ctx, summarizerSystem, buildReport(task, steps))
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			slog.Warn("summarization failed, using fallback", "error", err)
		}
		return fallbackSummary(steps)
	}
	return strings.TrimSpace(reply)
}

func buildReport(task Task, steps []Step) string {
	var b strings.Builder
	b.WriteString("## Task\n")
	b.WriteString(task.Description)
	b.WriteString("\n\n## Execution report\n")
	if len(steps) == 0 {
		b.WriteString("No tools were executed. Answer the task directly.\n")
		return b.String()
	}
	for _, s := range steps {
		fmt.Fprintf(&b, "%d. %s [%s]", s.Step, s.ToolID, s.Status)
		if s.Description != "" {
			fmt.Fprintf(&b, " (%s)", s.Description)
		}
		b.WriteString("\n")
		switch s.Status {
		case StepSuccess:
			fmt.Fprintf(&b, "   result: %s\n", renderResult(s.Result))
		case StepFailed:
			fmt.Fprintf(&b, "   error: %s\n", s.Error)
		}
	}
	return b.String()
}

func renderResult(result any) string {
	var text string
	switch v := result.(type) {
	case nil:
		return "(empty)"
	case string:
		text = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		text = string(data)
	}
	if len(text) > maxResultChars {
		text = text[:maxResultChars] + "…(truncated)"
	}
	return text
}

func fallbackSummary(steps []Step) string {
	executed, succeeded := 0, 0
	for _, s := range steps {
		switch s.Status {
		case StepSuccess:
			executed++
			succeeded++
		case StepFailed:
			executed++
		}
	}
	return fmt.Sprintf("%d tools executed, %d succeeded", executed, succeeded)
}
