// Package runtime assembles the toolhost process: event bus, tool registry,
// executor, skill store, model registry and agent, wired against one Config.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/toolhost/internal/agent"
	"github.com/dohr-michael/toolhost/internal/config"
	"github.com/dohr-michael/toolhost/internal/events"
	"github.com/dohr-michael/toolhost/internal/executor"
	"github.com/dohr-michael/toolhost/internal/models"
	"github.com/dohr-michael/toolhost/internal/registry"
	"github.com/dohr-michael/toolhost/internal/secrets"
	"github.com/dohr-michael/toolhost/internal/skills"
	"github.com/dohr-michael/toolhost/internal/storage"
)

// execLogMaxRows bounds the sqlite execution log independently of the
// in-memory ring buffer cap.
const execLogMaxRows = 10000

// Options tweaks what a Runtime brings up. The zero value builds everything.
type Options struct {
	SkipExecLog  bool // no sqlite execution log (in-memory history only)
	SkipEventLog bool // no JSONL event persistence
	SkipModels   bool // no model registry; the agent runs without a planner
}

// Runtime owns every long-lived component of a toolhost process.
type Runtime struct {
	Config    *config.Config
	Bus       *events.Bus
	Registry  *registry.Registry
	Secrets   *secrets.Resolver
	Executor  *executor.Executor
	Skills    *skills.Store
	SkillExec *skills.Executor
	Models    *models.Registry
	Agent     *agent.Agent

	execLog  *storage.ExecLog
	eventLog *storage.EventLogger
}

// New builds and starts a Runtime from cfg. Components are wired in
// dependency order; a failure tears down what was already started.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{Config: cfg}

	rt.Bus = events.NewBus(cfg.Events.BufferSize)

	rt.Registry = registry.New(rt.Bus, registry.NewFileStore(cfg.Registry.Dir))
	if err := rt.Registry.Load(); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("load tool registry: %w", err)
	}

	identity, err := secrets.LoadIdentity(secrets.KeyPath())
	if err != nil {
		slog.Debug("no age identity loaded", "error", err)
	}
	rt.Secrets = secrets.NewResolver(config.DotenvPath(), identity)

	var hist *executor.History
	if !opts.SkipExecLog {
		execLog, err := storage.OpenExecLog(cfg.History.DBPath, execLogMaxRows)
		if err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("open execution log: %w", err)
		}
		rt.execLog = execLog
		hist = executor.NewHistory(cfg.History.MaxEntries, execLog)
	}

	rt.Executor = executor.New(rt.Registry, rt.Bus, cfg.Executor, cfg.History, executor.Options{
		Secrets: rt.Secrets,
		History: hist,
	})

	if !opts.SkipEventLog {
		rt.eventLog = storage.NewEventLogger(filepath.Join(config.ToolhostPath(), "events"), rt.Bus)
	}

	rt.SkillExec = skills.NewExecutor(cfg.Skills, rt.Bus)
	rt.Skills = skills.NewStore(cfg.Skills.Dir, rt.SkillExec, rt.Executor, rt.Registry)
	if err := rt.Skills.Load(); err != nil {
		slog.Warn("skill store load failed", "error", err)
	}

	var completer models.Completer
	if !opts.SkipModels {
		rt.Models = models.NewRegistry(cfg.Models)
		if m, err := rt.agentModel(ctx); err != nil {
			slog.Warn("agent model unavailable, planning disabled", "error", err)
		} else {
			completer = models.NewCompleter(m)
		}
	}

	rt.Agent = agent.New(rt.Registry, rt.Executor, completer, rt.Bus, cfg.Agent)

	return rt, nil
}

// agentModel resolves the chat model the agent plans with: the configured
// agent model when set, the default provider otherwise.
func (rt *Runtime) agentModel(ctx context.Context) (model.ToolCallingChatModel, error) {
	if rt.Config.Agent.Model != "" {
		return rt.Models.Get(ctx, rt.Config.Agent.Model)
	}
	return rt.Models.Default(ctx)
}

// Close shuts down components in reverse construction order. Safe to call
// on a partially constructed Runtime.
func (rt *Runtime) Close(ctx context.Context) {
	if rt.Agent != nil {
		rt.Agent.Cancel()
	}
	if rt.SkillExec != nil {
		rt.SkillExec.Close(ctx)
	}
	if rt.eventLog != nil {
		rt.eventLog.Close()
	}
	if rt.execLog != nil {
		if err := rt.execLog.Close(); err != nil {
			slog.Warn("close execution log", "error", err)
		}
	}
	if rt.Bus != nil {
		rt.Bus.Close()
	}
}

// ExecLog exposes the sqlite execution log, nil when SkipExecLog was set.
func (rt *Runtime) ExecLog() *storage.ExecLog {
	return rt.execLog
}
