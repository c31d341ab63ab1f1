package executor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dohr-michael/toolhost/internal/registry"
)

// Record is one entry in the execution history.
type Record struct {
	ID        string          `json:"id"`
	ToolID    string          `json:"toolId"`
	Caller    registry.Caller `json:"caller"`
	Arguments map[string]any  `json:"arguments,omitempty"`
	Success   bool            `json:"success"`
	ErrorCode string          `json:"errorCode,omitempty"`
	Error     string          `json:"error,omitempty"`
	StartedAt time.Time       `json:"startedAt"`
	Duration  time.Duration   `json:"duration"`
}

func newRecord(req Request, result Result) Record {
	rec := Record{
		ID:        result.RequestID,
		ToolID:    req.ToolID,
		Caller:    req.Caller,
		Arguments: req.Arguments,
		Success:   result.Success,
		StartedAt: result.StartedAt,
		Duration:  result.Duration,
	}
	if result.Error != nil {
		rec.ErrorCode = string(result.Error.Code)
		rec.Error = result.Error.Message
	}
	return rec
}

// Sink receives every appended record, typically for durable storage.
type Sink interface {
	AppendRecord(rec Record) error
}

// History is a bounded FIFO log of executions. When full, the oldest entry
// is evicted. An optional Sink receives every record for persistence.
type History struct {
	mu         sync.RWMutex
	entries    []Record
	maxEntries int
	sink       Sink
}

// NewHistory creates a history with the given cap. maxEntries <= 0 defaults
// to 200. The sink may be nil.
func NewHistory(maxEntries int, sink Sink) *History {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return &History{
		entries:    make([]Record, 0, maxEntries),
		maxEntries: maxEntries,
		sink:       sink,
	}
}

// Append adds a record, evicting the oldest when the cap is reached.
func (h *History) Append(rec Record) {
	h.mu.Lock()
	if len(h.entries) >= h.maxEntries {
		h.entries = h.entries[1:]
	}
	h.entries = append(h.entries, rec)
	h.mu.Unlock()

	if h.sink != nil {
		if err := h.sink.AppendRecord(rec); err != nil {
			slog.Warn("history sink append", "tool", rec.ToolID, "error", err)
		}
	}
}

// List returns the most recent records, newest first. limit <= 0 returns all.
func (h *History) List(limit int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	result := make([]Record, limit)
	for i := 0; i < limit; i++ {
		result[i] = h.entries[n-1-i]
	}
	return result
}

// ByTool returns the most recent records for one tool, newest first.
func (h *History) ByTool(toolID string, limit int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []Record
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].ToolID != toolID {
			continue
		}
		result = append(result, h.entries[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// Len returns the number of retained records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
