package models

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Completer is the minimal surface the agent planner needs from a model:
// one system-prompted completion, no tool calling, no streaming.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ChatCompleter adapts an eino chat model to the Completer interface.
type ChatCompleter struct {
	model model.ToolCallingChatModel
}

// NewCompleter wraps a chat model.
func NewCompleter(m model.ToolCallingChatModel) *ChatCompleter {
	return &ChatCompleter{model: m}
}

// Complete sends a system + user message pair and returns the text content.
func (c *ChatCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(prompt),
	}
	resp, err := c.model.Generate(ctx, messages)
	if err != nil {
		return "", HandleError(err)
	}
	if resp == nil {
		return "", fmt.Errorf("model returned an empty response")
	}
	return resp.Content, nil
}

var _ Completer = (*ChatCompleter)(nil)
