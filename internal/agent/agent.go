// Package agent drives the plan → execute → summarize loop over the tool
// executor.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dohr-michael/toolhost/internal/config"
	"github.com/dohr-michael/toolhost/internal/events"
	"github.com/dohr-michael/toolhost/internal/executor"
	"github.com/dohr-michael/toolhost/internal/models"
	"github.com/dohr-michael/toolhost/internal/registry"
)

// State is the agent's loop state.
type State string

const (
	StateIdle      State = "idle"
	StatePlanning  State = "planning"
	StateExecuting State = "executing"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// StepStatus tracks one plan step through its lifecycle.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Step is one planned tool call.
type Step struct {
	Step        int            `json:"step"`
	ToolID      string         `json:"toolId"`
	Description string         `json:"description,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Status      StepStatus     `json:"status"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Task describes one unit of autonomous work.
type Task struct {
	Description  string   `json:"description"`
	Workspace    string   `json:"workspace,omitempty"`
	ActiveFile   string   `json:"activeFile,omitempty"`
	SelectedCode string   `json:"selectedCode,omitempty"`
	Categories   []string `json:"categories,omitempty"`   // restrict planning to these categories
	ExcludeTools []string `json:"excludeTools,omitempty"` // tool ids the planner never sees
	SessionID    string   `json:"sessionId,omitempty"`
}

// TaskResult is the outcome of a completed (or halted) task.
type TaskResult struct {
	TaskID   string        `json:"taskId"`
	Success  bool          `json:"success"`
	Summary  string        `json:"summary"`
	Steps    []Step        `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// ErrBusy is returned when a task is submitted while another is in flight.
var ErrBusy = fmt.Errorf("agent is busy with another task")

// ToolCaller is the executor surface the agent needs.
type ToolCaller interface {
	Execute(ctx context.Context, req executor.Request) (executor.Result, error)
	History() *executor.History
}

// Agent runs one task at a time. A second concurrent task is refused with
// ErrBusy, never queued.
type Agent struct {
	reg       *registry.Registry
	exec      ToolCaller
	completer models.Completer
	bus       *events.Bus
	cfg       config.AgentConfig

	mu     sync.Mutex
	state  State
	taskID string
	cancel context.CancelFunc
}

// New creates an idle agent.
func New(reg *registry.Registry, exec ToolCaller, completer models.Completer, bus *events.Bus, cfg config.AgentConfig) *Agent {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 10
	}
	return &Agent{
		reg:       reg,
		exec:      exec,
		completer: completer,
		bus:       bus,
		cfg:       cfg,
		state:     StateIdle,
	}
}

// State returns the current loop state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Cancel aborts the in-flight task, if any. The loop stops before the next
// step; the running tool call is interrupted through its context.
func (a *Agent) Cancel() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel == nil {
		return false
	}
	a.cancel()
	return true
}

// Run executes the task to completion and returns its result. The returned
// result is non-nil whenever err is nil, including halted and failed plans.
func (a *Agent) Run(ctx context.Context, task Task) (*TaskResult, error) {
	taskID := uuid.NewString()

	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return nil, ErrBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.state = StatePlanning
	a.taskID = taskID
	a.cancel = cancel
	a.mu.Unlock()

	defer func() {
		cancel()
		a.mu.Lock()
		a.cancel = nil
		a.mu.Unlock()
	}()

	start := time.Now()
	a.setState(StatePlanning, taskID, task.SessionID, "")

	steps, err := a.plan(runCtx, task)
	if err != nil {
		// Planning failures degrade to an empty plan rather than aborting.
		slog.Warn("planning failed, continuing without tools", "task", taskID, "error", err)
		steps = nil
	}

	a.setState(StateExecuting, taskID, task.SessionID, fmt.Sprintf("%d steps planned", len(steps)))
	a.executeSteps(runCtx, taskID, task, steps)

	summary := a.summarize(runCtx, task, steps)

	succeeded := 0
	executed := 0
	for _, s := range steps {
		switch s.Status {
		case StepSuccess:
			succeeded++
			executed++
		case StepFailed:
			executed++
		}
	}
	success := succeeded == executed && runCtx.Err() == nil

	final := StateCompleted
	if !success {
		final = StateFailed
	}
	a.setState(final, taskID, task.SessionID, summary)

	a.mu.Lock()
	a.state = StateIdle
	a.mu.Unlock()

	return &TaskResult{
		TaskID:   taskID,
		Success:  success,
		Summary:  summary,
		Steps:    steps,
		Duration: time.Since(start),
	}, nil
}

// executeSteps runs the plan strictly in order. A critical step's failure
// halts the loop, leaving the remaining steps pending.
func (a *Agent) executeSteps(ctx context.Context, taskID string, task Task, steps []Step) {
	total := len(steps)
	for i := range steps {
		if ctx.Err() != nil {
			return
		}
		step := &steps[i]

		step.Status = StepRunning
		a.publishStep(taskID, task.SessionID, step)

		result, _ := a.exec.Execute(events.ContextWithWorkspace(ctx, task.Workspace), executor.Request{
			ToolID:    step.ToolID,
			Caller:    registry.CallerAgent,
			Arguments: step.Params,
			SessionID: task.SessionID,
		})

		if result.Success {
			step.Status = StepSuccess
			step.Result = result.Output
		} else {
			step.Status = StepFailed
			if result.Error != nil {
				step.Error = result.Error.Message
			}
		}
		a.publishStep(taskID, task.SessionID, step)
		a.publishProgress(taskID, task.SessionID, (i+1)*100/total)

		if step.Status == StepFailed && isCritical(i) {
			slog.Warn("critical step failed, halting plan", "task", taskID, "step", step.Step, "tool", step.ToolID)
			return
		}
	}
}

// isCritical reports whether a failure at the given index halts the plan.
// Only the first step is treated as critical: every later step runs even
// after an earlier non-first failure, so partial plans still produce their
// remaining results.
func isCritical(index int) bool {
	return index == 0
}

func (a *Agent) setState(state State, taskID, sessionID, detail string) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
	a.bus.Publish(events.NewTypedEventWithSession(events.SourceAgent, events.AgentStatusPayload{
		TaskID: taskID,
		Status: string(state),
		Detail: detail,
	}, sessionID))
}

func (a *Agent) publishStep(taskID, sessionID string, step *Step) {
	a.bus.Publish(events.NewTypedEventWithSession(events.SourceAgent, events.AgentStepPayload{
		TaskID:      taskID,
		Step:        step.Step,
		ToolID:      step.ToolID,
		Description: step.Description,
		Status:      string(step.Status),
		Error:       step.Error,
	}, sessionID))
}

func (a *Agent) publishProgress(taskID, sessionID string, percent int) {
	a.bus.Publish(events.NewTypedEventWithSession(events.SourceAgent, events.AgentProgressPayload{
		TaskID:  taskID,
		Percent: percent,
	}, sessionID))
}
