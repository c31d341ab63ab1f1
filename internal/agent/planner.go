package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dohr-michael/toolhost/internal/registry"
)

// noToolsSentinel is the planner's literal "nothing to do" reply.
const noToolsSentinel = "NO_TOOLS_NEEDED"

// plannedStep is the wire shape of one step in the model's reply.
type plannedStep struct {
	Step        int            `json:"step"`
	ToolID      string         `json:"toolId"`
	Description string         `json:"description"`
	Params      map[string]any `json:"params"`
}

// plan asks the model for a tool plan. Unknown tool ids are dropped; a parse
// failure or the sentinel yields an empty plan.
func (a *Agent) plan(ctx context.Context, task Task) ([]Step, error) {
	tools := a.availableTools(task)
	if len(tools) == 0 {
		return nil, nil
	}
	if a.completer == nil {
		slog.Warn("no model configured, planning skipped")
		return nil, nil
	}

	prompt := a.buildPlannerPrompt(task, tools)
	reply, err := a.completer.Complete(ctx, plannerSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("planning completion: %w", err)
	}

	parsed := parsePlanReply(reply)
	known := make(map[string]bool, len(tools))
	for _, reg := range tools {
		known[reg.Tool.ID] = true
	}

	var steps []Step
	for _, ps := range parsed {
		if !known[ps.ToolID] {
			slog.Warn("plan references unknown tool, dropping step", "tool", ps.ToolID)
			continue
		}
		if len(steps) >= a.cfg.MaxSteps {
			slog.Warn("plan exceeds max steps, truncating", "max", a.cfg.MaxSteps)
			break
		}
		steps = append(steps, Step{
			Step:        len(steps) + 1,
			ToolID:      ps.ToolID,
			Description: ps.Description,
			Params:      ps.Params,
			Status:      StepPending,
		})
	}
	return steps, nil
}

// availableTools filters the agent-callable tools by the task's category and
// exclusion constraints, on top of the global config constraints.
func (a *Agent) availableTools(task Task) []registry.Registration {
	categories := task.Categories
	if len(categories) == 0 {
		categories = a.cfg.Categories
	}
	excluded := make(map[string]bool)
	for _, id := range a.cfg.ExcludeTools {
		excluded[id] = true
	}
	for _, id := range task.ExcludeTools {
		excluded[id] = true
	}

	var out []registry.Registration
	for _, reg := range a.reg.AgentTools() {
		if excluded[reg.Tool.ID] {
			continue
		}
		if len(categories) > 0 && !containsString(categories, reg.Tool.Category) {
			continue
		}
		out = append(out, reg)
	}
	return out
}

func (a *Agent) buildPlannerPrompt(task Task, tools []registry.Registration) string {
	var b strings.Builder

	b.WriteString("## Task\n")
	b.WriteString(task.Description)
	b.WriteString("\n\n## Context\n")
	if task.Workspace != "" {
		fmt.Fprintf(&b, "Workspace: %s\n", task.Workspace)
	}
	if task.ActiveFile != "" {
		fmt.Fprintf(&b, "Active file: %s\n", task.ActiveFile)
	}
	if task.SelectedCode != "" {
		fmt.Fprintf(&b, "Selected code:\n%s\n", task.SelectedCode)
	}
	if recent := a.recentTools(); len(recent) > 0 {
		fmt.Fprintf(&b, "Recently used tools: %s\n", strings.Join(recent, ", "))
	}

	b.WriteString("\n## Available tools\n")
	for _, reg := range tools {
		tool := reg.Tool
		fmt.Fprintf(&b, "- %s: %s", tool.ID, tool.Description)
		if tool.AIHints.WhenToUse != "" {
			fmt.Fprintf(&b, " (use when: %s)", tool.AIHints.WhenToUse)
		}
		b.WriteString("\n")
		for _, p := range tool.Parameters {
			required := "optional"
			if p.Required {
				required = "required"
			}
			fmt.Fprintf(&b, "    %s (%s, %s): %s\n", p.Name, p.Type, required, p.Description)
		}
	}
	return b.String()
}

// recentTools lists distinct tool ids from the latest history entries, most
// recent first.
func (a *Agent) recentTools() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range a.exec.History().List(10) {
		if seen[rec.ToolID] {
			continue
		}
		seen[rec.ToolID] = true
		out = append(out, rec.ToolID)
		if len(out) == 5 {
			break
		}
	}
	return out
}

// parsePlanReply extracts the step array from the model's reply. Replies
// wrapped in markdown fences are unwrapped; anything unparseable degrades to
// an empty plan.
func parsePlanReply(reply string) []plannedStep {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" || strings.Contains(trimmed, noToolsSentinel) {
		return nil
	}

	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start < 0 || end <= start {
		return nil
	}

	var parsed []plannedStep
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &parsed); err != nil {
		slog.Warn("unparseable plan reply, treating as no tools needed", "error", err)
		return nil
	}
	return parsed
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
