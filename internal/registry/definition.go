// Package registry stores and validates tool definitions.
package registry

import "time"

// Caller is the identity issuing a tool call.
type Caller string

const (
	CallerUser  Caller = "user"
	CallerAgent Caller = "agent"
)

// Source identifies where a registration came from.
type Source string

const (
	SourceBuiltin     Source = "builtin"
	SourceUser        Source = "user"
	SourceMarketplace Source = "marketplace"
	SourceImport      Source = "import"
)

// ExecutionType selects one of the four execution backends.
type ExecutionType string

const (
	ExecHTTP     ExecutionType = "http"
	ExecCommand  ExecutionType = "command"
	ExecScript   ExecutionType = "script"
	ExecFunction ExecutionType = "function"
)

// ToolDefinition describes a registered capability.
type ToolDefinition struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Category    string      `json:"category,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	Returns     Returns     `json:"returns"`
	Execution   Execution   `json:"execution"`
	Security    Security    `json:"security"`
	AIHints     AIHints     `json:"aiHints"`
	Metadata    Metadata    `json:"metadata"`
}

// Parameter declares a single typed tool parameter.
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // string|number|boolean|array|object|file|code
	Description string      `json:"description,omitempty"`
	Required    bool        `json:"required"`
	Validation  *Validation `json:"validation,omitempty"`
}

// Validation constrains a parameter value.
type Validation struct {
	Enum      []string `json:"enum,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
}

// Returns describes the tool's result.
type Returns struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Execution selects and configures the backend.
type Execution struct {
	Type            ExecutionType     `json:"type"`
	HTTP            *HTTPExecution    `json:"http,omitempty"`
	Command         *CommandExecution `json:"command,omitempty"`
	Script          *ScriptExecution  `json:"script,omitempty"`
	BuiltinFunction string            `json:"builtinFunction,omitempty"`
}

// HTTPExecution configures the HTTP backend. URL, query, headers and body may
// contain {{param}} tokens (substituted from arguments) and ${ENV_VAR} tokens
// (substituted from the environment / secrets resolver).
type HTTPExecution struct {
	URL              string            `json:"url"`
	Method           string            `json:"method,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	Query            map[string]string `json:"query,omitempty"`
	Body             string            `json:"body,omitempty"`
	Auth             *HTTPAuth         `json:"auth,omitempty"`
	TimeoutMS        int               `json:"timeoutMs,omitempty"`
	SuccessCondition string            `json:"successCondition,omitempty"` // gjson path expression, e.g. "status==ok"
	ResultPath       string            `json:"resultPath,omitempty"`
	ErrorPath        string            `json:"errorPath,omitempty"`
}

// HTTPAuth applies credentials from a named environment variable.
type HTTPAuth struct {
	Type   string `json:"type"` // bearer|basic|apiKey
	EnvVar string `json:"envVar"`
	Header string `json:"header,omitempty"` // header name for apiKey auth (default: X-Api-Key)
}

// CommandExecution configures the shell-command backend.
type CommandExecution struct {
	Command    string `json:"command"` // may contain {{param}} and ${ENV_VAR} tokens
	WorkingDir string `json:"workingDir,omitempty"`
	TimeoutMS  int    `json:"timeoutMs,omitempty"`
}

// ScriptExecution configures the sandboxed-script backend.
type ScriptExecution struct {
	Code      string `json:"code"`
	TimeoutMS int    `json:"timeoutMs,omitempty"`
}

// Security is the per-tool security policy.
type Security struct {
	AllowedCallers      []Caller `json:"allowedCallers,omitempty"` // empty = all callers
	RateLimit           int      `json:"rateLimit,omitempty"`      // calls per sliding 60s window, 0 = unlimited
	RequireConfirmation bool     `json:"requireConfirmation,omitempty"`
}

// AllowsCaller reports whether the policy permits the given caller.
func (s Security) AllowsCaller(c Caller) bool {
	if len(s.AllowedCallers) == 0 {
		return true
	}
	for _, allowed := range s.AllowedCallers {
		if allowed == c {
			return true
		}
	}
	return false
}

// AIHints guide the planner's tool selection.
type AIHints struct {
	WhenToUse string `json:"whenToUse,omitempty"`
	Priority  int    `json:"priority,omitempty"`
}

// Metadata carries lifecycle and usage statistics.
type Metadata struct {
	Status               string    `json:"status,omitempty"`
	CreatedAt            time.Time `json:"createdAt,omitempty"`
	UpdatedAt            time.Time `json:"updatedAt,omitempty"`
	UsageCount           int64     `json:"usageCount"`
	AverageExecutionTime float64   `json:"averageExecutionTime"` // milliseconds
	SuccessRate          float64   `json:"successRate"`          // 0..1
}

// Registration wraps a ToolDefinition with its provenance and enabled flag.
type Registration struct {
	Tool    ToolDefinition `json:"tool"`
	Source  Source         `json:"source"`
	Enabled bool           `json:"enabled"`
}

// IsBuiltin reports whether the registration is a built-in tool.
func (r *Registration) IsBuiltin() bool {
	return r.Source == SourceBuiltin
}
