package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// TOOL EVENTS
// =============================================================================

type ToolStatus string

const (
	ToolStatusStarted   ToolStatus = "started"
	ToolStatusCompleted ToolStatus = "completed"
	ToolStatusFailed    ToolStatus = "failed"
)

type ToolCallPayload struct {
	Status    ToolStatus     `json:"status"`
	ToolID    string         `json:"tool_id"`
	RequestID string         `json:"request_id,omitempty"`
	Caller    string         `json:"caller,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
}

func (ToolCallPayload) EventType() EventType { return EventToolCall }

type ToolRegisteredPayload struct {
	ToolID string `json:"tool_id"`
	Source string `json:"source"`
}

func (ToolRegisteredPayload) EventType() EventType { return EventToolRegistered }

type ToolUnregisteredPayload struct {
	ToolID string `json:"tool_id"`
}

func (ToolUnregisteredPayload) EventType() EventType { return EventToolUnregistered }

// =============================================================================
// PROMPT EVENTS
// =============================================================================

type PromptRequestPayload struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

func (PromptRequestPayload) EventType() EventType { return EventPromptRequest }

type PromptResponsePayload struct {
	Token     string `json:"token"`
	Cancelled bool   `json:"cancelled"`
}

func (PromptResponsePayload) EventType() EventType { return EventPromptResponse }

// =============================================================================
// AGENT EVENTS
// =============================================================================

type AgentStatusPayload struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"` // idle|planning|executing|completed|failed
	Detail string `json:"detail,omitempty"`
}

func (AgentStatusPayload) EventType() EventType { return EventAgentStatus }

type AgentStepPayload struct {
	TaskID      string `json:"task_id"`
	Step        int    `json:"step"`
	ToolID      string `json:"tool_id"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"` // pending|running|success|failed|skipped
	Error       string `json:"error,omitempty"`
}

func (AgentStepPayload) EventType() EventType { return EventAgentStep }

type AgentProgressPayload struct {
	TaskID  string `json:"task_id"`
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

func (AgentProgressPayload) EventType() EventType { return EventAgentProgress }

// =============================================================================
// SKILL EVENTS
// =============================================================================

type SkillStartedPayload struct {
	SkillID string `json:"skill_id"`
	Runtime string `json:"runtime"`
}

func (SkillStartedPayload) EventType() EventType { return EventSkillStarted }

type SkillLogPayload struct {
	SkillID string `json:"skill_id"`
	Line    string `json:"line"`
}

func (SkillLogPayload) EventType() EventType { return EventSkillLog }

type SkillCompletedPayload struct {
	SkillID  string        `json:"skill_id"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	MCPCalls int           `json:"mcp_calls"`
}

func (SkillCompletedPayload) EventType() EventType { return EventSkillCompleted }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func NewTypedEventWithSession(source EventSource, payload EventPayload, sessionID string) Event {
	return Event{
		ID:        generateEventID(),
		SessionID: sessionID,
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

func GetToolCallPayload(e Event) (ToolCallPayload, bool) {
	return ExtractPayload[ToolCallPayload](e)
}

func GetPromptRequestPayload(e Event) (PromptRequestPayload, bool) {
	return ExtractPayload[PromptRequestPayload](e)
}

func GetPromptResponsePayload(e Event) (PromptResponsePayload, bool) {
	return ExtractPayload[PromptResponsePayload](e)
}

func GetAgentStatusPayload(e Event) (AgentStatusPayload, bool) {
	return ExtractPayload[AgentStatusPayload](e)
}

func GetAgentStepPayload(e Event) (AgentStepPayload, bool) {
	return ExtractPayload[AgentStepPayload](e)
}

func GetAgentProgressPayload(e Event) (AgentProgressPayload, bool) {
	return ExtractPayload[AgentProgressPayload](e)
}

func GetSkillCompletedPayload(e Event) (SkillCompletedPayload, bool) {
	return ExtractPayload[SkillCompletedPayload](e)
}
