// Package gateway exposes the runtime over HTTP and WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/toolhost/internal/agent"
	"github.com/dohr-michael/toolhost/internal/events"
	"github.com/dohr-michael/toolhost/internal/executor"
	"github.com/dohr-michael/toolhost/internal/gateway/ws"
	"github.com/dohr-michael/toolhost/internal/registry"
)

// Server is the toolhost gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	reg        *registry.Registry
	exec       *executor.Executor
	agent      *agent.Agent
}

// NewServer creates a gateway server bound to host:port.
func NewServer(bus *events.Bus, reg *registry.Registry, exec *executor.Executor, ag *agent.Agent, host string, port int) *Server {
	s := &Server{
		bus:   bus,
		reg:   reg,
		exec:  exec,
		agent: ag,
	}
	s.hub = ws.NewHub(bus, ws.Handlers{
		Execute:     s.executeTool,
		AgentTask:   s.runAgentTask,
		CancelAgent: ag.Cancel,
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/tools", s.handleTools)
	r.Get("/api/tools/search", s.handleToolSearch)
	r.Post("/api/execute", s.handleExecute)
	r.Get("/api/history", s.handleHistory)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/ws", s.hub.ServeWS)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}
	return s
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("toolhost gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) executeTool(ctx context.Context, toolID string, args map[string]any, sessionID string) (any, error) {
	if sessionID != "" {
		ctx = events.ContextWithSessionID(ctx, sessionID)
	}
	result, err := s.exec.Execute(ctx, executor.Request{
		ToolID:    toolID,
		Caller:    registry.CallerUser,
		Arguments: args,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Server) runAgentTask(ctx context.Context, task, sessionID string) (any, error) {
	if sessionID != "" {
		ctx = events.ContextWithSessionID(ctx, sessionID)
	}
	return s.agent.Run(ctx, agent.Task{Description: task, SessionID: sessionID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.List())
}

func (s *Server) handleToolSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing q parameter", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.reg.Search(query))
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ToolID    string         `json:"toolId"`
		Arguments map[string]any `json:"arguments"`
		SessionID string         `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.ToolID == "" {
		http.Error(w, "toolId is required", http.StatusBadRequest)
		return
	}

	result, _ := s.exec.Execute(r.Context(), executor.Request{
		ToolID:    body.ToolID,
		Caller:    registry.CallerUser,
		Arguments: body.Arguments,
		SessionID: body.SessionID,
	})

	status := http.StatusOK
	if !result.Success {
		status = statusForCode(result.Error)
	}
	writeJSON(w, status, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if toolID := r.URL.Query().Get("tool"); toolID != "" {
		writeJSON(w, http.StatusOK, s.exec.History().ByTool(toolID, limit))
		return
	}
	writeJSON(w, http.StatusOK, s.exec.History().List(limit))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	history := s.bus.History(limit)

	type eventJSON struct {
		ID        string             `json:"id"`
		SessionID string             `json:"session_id,omitempty"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}
	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:        e.ID,
			SessionID: e.SessionID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// statusForCode maps executor error codes to HTTP statuses.
func statusForCode(err *registry.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.Code {
	case registry.CodeToolNotFound:
		return http.StatusNotFound
	case registry.CodeToolDisabled, registry.CodeUnauthorized, registry.CodePermissionDenied:
		return http.StatusForbidden
	case registry.CodeRateLimited:
		return http.StatusTooManyRequests
	case registry.CodeInvalidParams:
		return http.StatusBadRequest
	case registry.CodeUserCancelled:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
