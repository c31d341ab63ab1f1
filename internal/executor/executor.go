// Package executor runs registered tools through a checked pipeline:
// lookup, caller authorization, rate limiting, parameter validation,
// confirmation, backend dispatch, and post-processing (stats, history, events).
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dohr-michael/toolhost/internal/config"
	"github.com/dohr-michael/toolhost/internal/events"
	"github.com/dohr-michael/toolhost/internal/registry"
)

// Request is a single tool invocation.
type Request struct {
	ToolID    string          `json:"toolId"`
	Caller    registry.Caller `json:"caller"`
	Arguments map[string]any  `json:"arguments"`
	SessionID string          `json:"sessionId,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// Result is the outcome of a tool invocation. Error is nil on success.
type Result struct {
	ToolID    string          `json:"toolId"`
	RequestID string          `json:"requestId"`
	Success   bool            `json:"success"`
	Output    any             `json:"output,omitempty"`
	Error     *registry.Error `json:"error,omitempty"`
	StartedAt time.Time       `json:"startedAt"`
	Duration  time.Duration   `json:"duration"`
}

// Backend executes one tool definition with validated arguments.
type Backend interface {
	Execute(ctx context.Context, def *registry.ToolDefinition, args map[string]any) (any, error)
}

// Executor dispatches tool calls to the four execution backends.
type Executor struct {
	registry *registry.Registry
	bus      *events.Bus
	cfg      config.ExecutorConfig
	limiter  *rateLimiter
	history  *History
	backends map[registry.ExecutionType]Backend
}

// Options carries the optional collaborators for New.
type Options struct {
	Secrets SecretSource // nil disables ${ENV_VAR} substitution beyond os.Getenv
	History *History     // nil creates an in-memory history with the configured cap
}

// New creates an executor wired to the registry and event bus.
func New(reg *registry.Registry, bus *events.Bus, cfg config.ExecutorConfig, histCfg config.HistoryConfig, opts Options) *Executor {
	hist := opts.History
	if hist == nil {
		hist = NewHistory(histCfg.MaxEntries, nil)
	}

	e := &Executor{
		registry: reg,
		bus:      bus,
		cfg:      cfg,
		limiter:  newRateLimiter(),
		history:  hist,
	}
	e.backends = map[registry.ExecutionType]Backend{
		registry.ExecHTTP:     newHTTPBackend(opts.Secrets, cfg.DefaultTimeout.Duration()),
		registry.ExecCommand:  newCommandBackend(cfg),
		registry.ExecScript:   newScriptBackend(cfg),
		registry.ExecFunction: newFunctionBackend(),
	}
	return e
}

// History exposes the execution history.
func (e *Executor) History() *History {
	return e.history
}

// Execute runs the full pipeline for one request and always returns a Result.
// Pipeline errors are reported in Result.Error with a stable code; the
// returned error mirrors it for callers that prefer error flow.
func (e *Executor) Execute(ctx context.Context, req Request) (Result, error) {
	if req.Caller == "" {
		req.Caller = registry.CallerUser
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	started := time.Now()
	dispatched := false

	run := func() (any, *registry.Error) {
		reg, ok := e.registry.Get(req.ToolID)
		if !ok {
			return nil, registry.NewError(registry.CodeToolNotFound, "tool %q is not registered", req.ToolID)
		}
		if !reg.Enabled {
			return nil, registry.NewError(registry.CodeToolDisabled, "tool %q is disabled", req.ToolID)
		}
		def := reg.Tool

		if !def.Security.AllowsCaller(req.Caller) {
			return nil, registry.NewError(registry.CodeUnauthorized, "caller %q may not execute tool %q", req.Caller, req.ToolID)
		}

		// A rejected call does not consume the quota.
		if limit := def.Security.RateLimit; limit > 0 {
			if !e.limiter.Allow(req.ToolID, limit) {
				return nil, registry.NewError(registry.CodeRateLimited, "tool %q exceeded %d calls per minute", req.ToolID, limit)
			}
		}

		args, verr := ValidateArgs(def.Parameters, req.Arguments)
		if verr != nil {
			return nil, verr
		}

		if def.Security.RequireConfirmation && req.Caller == registry.CallerAgent {
			if cerr := e.confirm(ctx, &def, args, req.SessionID); cerr != nil {
				return nil, cerr
			}
		}

		backend, ok := e.backends[def.Execution.Type]
		if !ok {
			return nil, registry.NewError(registry.CodeExecutionError, "tool %q has unknown execution type %q", req.ToolID, def.Execution.Type)
		}

		dispatched = true
		e.publishToolCall(req, events.ToolCallPayload{
			Status:    events.ToolStatusStarted,
			ToolID:    req.ToolID,
			RequestID: req.RequestID,
			Caller:    string(req.Caller),
			Arguments: args,
		})

		output, err := backend.Execute(ctx, &def, args)
		if err != nil {
			return nil, registry.AsError(err)
		}
		return output, nil
	}

	output, execErr := run()
	duration := time.Since(started)

	result := Result{
		ToolID:    req.ToolID,
		RequestID: req.RequestID,
		Success:   execErr == nil,
		Output:    output,
		Error:     execErr,
		StartedAt: started,
		Duration:  duration,
	}

	e.finish(req, result, dispatched)

	if execErr != nil {
		return result, execErr
	}
	return result, nil
}

// finish updates stats, appends to history and publishes the terminal event.
// Requests rejected before backend dispatch count toward neither.
func (e *Executor) finish(req Request, result Result, dispatched bool) {
	if dispatched {
		e.registry.UpdateStats(req.ToolID, result.Duration, result.Success)
		e.history.Append(newRecord(req, result))
	}

	payload := events.ToolCallPayload{
		Status:    events.ToolStatusCompleted,
		ToolID:    req.ToolID,
		RequestID: req.RequestID,
		Caller:    string(req.Caller),
		Duration:  result.Duration,
	}
	if result.Error != nil {
		payload.Status = events.ToolStatusFailed
		payload.Error = result.Error.Message
		payload.ErrorCode = string(result.Error.Code)
		slog.Warn("tool execution failed",
			"tool", req.ToolID, "caller", req.Caller,
			"code", result.Error.Code, "error", result.Error.Message)
	} else {
		slog.Debug("tool executed", "tool", req.ToolID, "caller", req.Caller, "duration", result.Duration)
	}
	e.publishToolCall(req, payload)
}

func (e *Executor) publishToolCall(req Request, payload events.ToolCallPayload) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.NewTypedEventWithSession(events.SourceExecutor, payload, req.SessionID))
}
