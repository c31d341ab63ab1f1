package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/dohr-michael/toolhost/internal/events"
)

// Handlers are the runtime operations a WS client may request.
type Handlers struct {
	Execute     func(ctx context.Context, toolID string, args map[string]any, sessionID string) (any, error)
	AgentTask   func(ctx context.Context, task, sessionID string) (any, error)
	CancelAgent func() bool
}

// Client represents a connected WebSocket client.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub manages WebSocket clients and bridges them to the event bus.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	bus         *events.Bus
	handlers    Handlers
	unsubscribe func()
}

// NewHub creates a WebSocket hub connected to an event bus.
func NewHub(bus *events.Bus, handlers Handlers) *Hub {
	h := &Hub{
		clients:  make(map[*Client]struct{}),
		bus:      bus,
		handlers: handlers,
	}

	// Bridge every bus event to the connected clients.
	h.unsubscribe = bus.Subscribe(func(e events.Event) {
		frame, err := NewEventFrame(string(e.Type), e.SessionID, e)
		if err != nil {
			slog.Error("marshal event frame", "error", err)
			return
		}
		data, err := MarshalFrame(frame)
		if err != nil {
			slog.Error("marshal frame", "error", err)
			return
		}
		h.broadcast(data)
	})

	return h
}

// Close stops the bus bridge and disconnects all clients.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("ws client connected", "clients", len(h.clients))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		slog.Info("ws client disconnected", "clients", len(h.clients))
	}
}

// ServeWS handles a WebSocket upgrade and manages the client lifecycle.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin for dev
	})
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.register(client)

	ctx := r.Context()
	go client.writePump(ctx)
	client.readPump(ctx)
}

func (c *Client) writePump(ctx context.Context) {
	for data := range c.send {
		if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
			return
		}
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws read closed", "status", websocket.CloseStatus(err))
			} else {
				slog.Debug("ws read error", "error", err)
			}
			return
		}

		frame, err := UnmarshalFrame(data)
		if err != nil {
			slog.Error("ws unmarshal frame", "error", err)
			continue
		}

		if frame.Type == FrameTypeRequest {
			c.handleRequest(ctx, frame)
		} else {
			slog.Debug("ws unknown frame type", "type", frame.Type)
		}
	}
}

// handleRequest processes a request frame (method dispatch).
func (c *Client) handleRequest(ctx context.Context, frame Frame) {
	switch Method(frame.Method) {
	case MethodExecute:
		var params struct {
			ToolID    string         `json:"tool_id"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			c.sendError(ctx, frame.ID, "invalid params")
			return
		}
		output, err := c.hub.handlers.Execute(ctx, params.ToolID, params.Arguments, frame.SessionID)
		if err != nil {
			c.sendError(ctx, frame.ID, err.Error())
			return
		}
		c.sendOK(ctx, frame.ID, output)

	case MethodPromptResponse:
		var params events.PromptResponsePayload
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			c.sendError(ctx, frame.ID, "invalid params")
			return
		}
		// A lost prompt response leaves the executor waiting out its
		// confirmation timeout, so block until the bus takes it.
		if err := c.hub.bus.PublishAsync(ctx, events.NewTypedEvent(events.SourceGateway, params)); err != nil {
			c.sendError(ctx, frame.ID, err.Error())
			return
		}
		c.sendOK(ctx, frame.ID, map[string]string{"status": "sent"})

	case MethodAgentTask:
		var params struct {
			Task string `json:"task"`
		}
		if err := json.Unmarshal(frame.Params, &params); err != nil || params.Task == "" {
			c.sendError(ctx, frame.ID, "invalid params")
			return
		}
		result, err := c.hub.handlers.AgentTask(ctx, params.Task, frame.SessionID)
		if err != nil {
			c.sendError(ctx, frame.ID, err.Error())
			return
		}
		c.sendOK(ctx, frame.ID, result)

	case MethodCancelAgent:
		cancelled := c.hub.handlers.CancelAgent()
		c.sendOK(ctx, frame.ID, map[string]bool{"cancelled": cancelled})

	default:
		c.sendError(ctx, frame.ID, "unknown method: "+frame.Method)
	}
}

func (c *Client) sendOK(ctx context.Context, id string, payload any) {
	frame, err := NewResponseFrame(id, true, payload, "")
	if err != nil {
		slog.Error("ws response frame", "error", err)
		return
	}
	c.write(ctx, frame)
}

func (c *Client) sendError(ctx context.Context, id, msg string) {
	frame, err := NewResponseFrame(id, false, nil, msg)
	if err != nil {
		slog.Error("ws response frame", "error", err)
		return
	}
	c.write(ctx, frame)
}

func (c *Client) write(ctx context.Context, frame Frame) {
	data, err := MarshalFrame(frame)
	if err != nil {
		slog.Error("ws marshal frame", "error", err)
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	}
}
