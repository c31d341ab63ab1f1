// Package ws provides a WebSocket client for the toolhost gateway.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/coder/websocket"

	wsprotocol "github.com/dohr-michael/toolhost/internal/gateway/ws"
)

// Client is a WebSocket client for the toolhost gateway.
type Client struct {
	conn   *websocket.Conn
	reqSeq uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to the gateway WebSocket endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		conn:   conn,
		ctx:    clientCtx,
		cancel: cancel,
	}, nil
}

// Execute runs a tool through the gateway and returns the response payload.
// Event frames arriving before the response are passed to onEvent when set,
// discarded otherwise.
func (c *Client) Execute(toolID string, args map[string]any, onEvent func(wsprotocol.Frame)) (json.RawMessage, error) {
	id, err := c.request(wsprotocol.MethodExecute, map[string]any{
		"tool_id":   toolID,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}
	return c.await(id, onEvent)
}

// AgentTask runs an autonomous task through the gateway.
func (c *Client) AgentTask(task string, onEvent func(wsprotocol.Frame)) (json.RawMessage, error) {
	id, err := c.request(wsprotocol.MethodAgentTask, map[string]any{"task": task})
	if err != nil {
		return nil, err
	}
	return c.await(id, onEvent)
}

// RespondToPrompt answers a confirmation prompt by token.
func (c *Client) RespondToPrompt(token string, cancelled bool) error {
	_, err := c.request(wsprotocol.MethodPromptResponse, map[string]any{
		"token":     token,
		"cancelled": cancelled,
	})
	return err
}

// ReadFrame reads the next frame from the connection.
func (c *Client) ReadFrame() (wsprotocol.Frame, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return wsprotocol.Frame{}, err
	}
	return wsprotocol.UnmarshalFrame(data)
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// request sends one request frame and returns its id.
func (c *Client) request(method wsprotocol.Method, params any) (string, error) {
	seq := atomic.AddUint64(&c.reqSeq, 1)
	id := fmt.Sprintf("req-%d", seq)

	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}

	frame := wsprotocol.Frame{
		Type:   wsprotocol.FrameTypeRequest,
		ID:     id,
		Method: string(method),
		Params: raw,
	}

	data, err := wsprotocol.MarshalFrame(frame)
	if err != nil {
		return "", err
	}
	if err := c.conn.Write(c.ctx, websocket.MessageText, data); err != nil {
		return "", err
	}
	return id, nil
}

// await reads frames until the response for id arrives.
func (c *Client) await(id string, onEvent func(wsprotocol.Frame)) (json.RawMessage, error) {
	for {
		frame, err := c.ReadFrame()
		if err != nil {
			return nil, err
		}

		switch frame.Type {
		case wsprotocol.FrameTypeEvent:
			if onEvent != nil {
				onEvent(frame)
			}
		case wsprotocol.FrameTypeResponse:
			if frame.ID != id {
				continue
			}
			if frame.OK != nil && !*frame.OK {
				return frame.Payload, fmt.Errorf("gateway error: %s", frame.Error)
			}
			return frame.Payload, nil
		}
	}
}
