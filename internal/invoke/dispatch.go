package invoke

import (
	"context"
	"fmt"
	"sort"

	"github.com/dohr-michael/toolhost/internal/agent"
	"github.com/dohr-michael/toolhost/internal/executor"
	"github.com/dohr-michael/toolhost/internal/registry"
	"github.com/dohr-michael/toolhost/internal/storage"
)

// ToolCaller is the executor surface the dispatcher needs.
type ToolCaller interface {
	Execute(ctx context.Context, req executor.Request) (executor.Result, error)
}

// AgentRunner runs one autonomous task to completion.
type AgentRunner interface {
	Run(ctx context.Context, task agent.Task) (*agent.TaskResult, error)
}

// Dispatcher routes parsed invocations to the runtime components.
// Log may be nil when no execution log is open.
type Dispatcher struct {
	Registry *registry.Registry
	Executor ToolCaller
	Agent    AgentRunner
	Log      *storage.ExecLog
}

// ToolSummary is one row of a list/search reply.
type ToolSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Enabled     bool   `json:"enabled"`
}

// ManageSummary is the @mcp:manage reply: registry totals by source.
type ManageSummary struct {
	Total    int            `json:"total"`
	Enabled  int            `json:"enabled"`
	BySource map[string]int `json:"bySource"`
}

// Dispatch executes one invocation and returns its reply value:
// executor.Result for calls, []ToolSummary for list/search,
// *agent.TaskResult for agent tasks, ManageSummary for manage and
// []executor.Record for history.
func (d *Dispatcher) Dispatch(ctx context.Context, inv *Invocation) (any, error) {
	switch inv.Kind {
	case KindCall:
		res, err := d.Executor.Execute(ctx, executor.Request{
			ToolID:    inv.ToolID,
			Caller:    registry.CallerUser,
			Arguments: inv.Args,
		})
		if err != nil {
			return nil, err
		}
		return res, nil

	case KindList:
		return summarize(d.Registry.List()), nil

	case KindSearch:
		return summarize(d.Registry.Search(inv.Query)), nil

	case KindAgent:
		if d.Agent == nil {
			return nil, fmt.Errorf("no agent is configured")
		}
		return d.Agent.Run(ctx, agent.Task{Description: inv.Task})

	case KindManage:
		return d.manage(), nil

	case KindHistory:
		if d.Log == nil {
			return nil, fmt.Errorf("no execution log is open")
		}
		return d.Log.List(ctx, storage.Filter{Limit: 20})

	default:
		return nil, fmt.Errorf("unknown invocation kind %q", inv.Kind)
	}
}

func (d *Dispatcher) manage() ManageSummary {
	regs := d.Registry.List()
	out := ManageSummary{Total: len(regs), BySource: map[string]int{}}
	for _, reg := range regs {
		if reg.Enabled {
			out.Enabled++
		}
		out.BySource[string(reg.Source)]++
	}
	return out
}

func summarize(regs []registry.Registration) []ToolSummary {
	out := make([]ToolSummary, 0, len(regs))
	for _, reg := range regs {
		out = append(out, ToolSummary{
			ID:          reg.Tool.ID,
			Name:        reg.Tool.Name,
			Category:    reg.Tool.Category,
			Description: reg.Tool.Description,
			Source:      string(reg.Source),
			Enabled:     reg.Enabled,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
