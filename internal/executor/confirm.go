package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dohr-michael/toolhost/internal/events"
	"github.com/dohr-michael/toolhost/internal/registry"
)

const defaultConfirmTimeout = 60 * time.Second

// confirm publishes a prompt request on the bus and blocks until a matching
// response arrives, the timeout expires, or the context is cancelled.
// Only agent-initiated calls reach this gate; the user's own calls are
// implicitly confirmed.
func (e *Executor) confirm(ctx context.Context, def *registry.ToolDefinition, args map[string]any, sessionID string) *registry.Error {
	if e.bus == nil {
		return registry.NewError(registry.CodeUserCancelled,
			"tool %q requires confirmation but no prompt channel is available", def.ID)
	}

	timeout := e.cfg.ConfirmTimeout.Duration()
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}

	token := uuid.New().String()
	ch, unsub := e.bus.SubscribeChan(4, events.EventPromptResponse)
	defer unsub()

	e.bus.Publish(events.NewTypedEventWithSession(events.SourceExecutor, events.PromptRequestPayload{
		Label: fmt.Sprintf("Allow %q to execute? Arguments: %s", def.ID, summarizeArgs(args)),
		Token: token,
	}, sessionID))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		select {
		case event := <-ch:
			payload, ok := events.GetPromptResponsePayload(event)
			if !ok || payload.Token != token {
				continue
			}
			if payload.Cancelled {
				return registry.NewError(registry.CodeUserCancelled, "tool %q execution denied by user", def.ID)
			}
			return nil
		case <-ctx.Done():
			return registry.NewError(registry.CodeUserCancelled, "tool %q confirmation timed out", def.ID)
		}
	}
}

func summarizeArgs(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	s := string(data)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
