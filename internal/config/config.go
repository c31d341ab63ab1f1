package config

import "time"

// Config is the root configuration for toolhost.
type Config struct {
	Registry RegistryConfig `json:"registry"`
	Executor ExecutorConfig `json:"executor"`
	History  HistoryConfig  `json:"history"`
	Models   ModelsConfig   `json:"models"`
	Skills   SkillsConfig   `json:"skills"`
	Agent    AgentConfig    `json:"agent"`
	Gateway  GatewayConfig  `json:"gateway"`
	Events   EventsConfig   `json:"events"`
	Logging  LoggingConfig  `json:"logging"`
}

// RegistryConfig configures the tool registry.
type RegistryConfig struct {
	Dir string `json:"dir"` // persisted user/marketplace registrations (default: $TOOLHOST_PATH/tools)
}

// ExecutorConfig configures the tool executor.
type ExecutorConfig struct {
	DefaultTimeout   Duration `json:"default_timeout"`   // per-call timeout when the tool doesn't set one
	ConfirmTimeout   Duration `json:"confirm_timeout"`   // how long a confirmation prompt waits
	MaxOutputKB      int      `json:"max_output_kb"`     // command/script output cap
	DangerousDenied  []string `json:"dangerous_denied"`  // extra denylist substrings for the command backend
	ScriptInterpreter string  `json:"script_interpreter"` // node binary for the script backend (default: "node")
}

// HistoryConfig configures the execution history.
type HistoryConfig struct {
	MaxEntries int    `json:"max_entries"` // ring buffer cap (default: 200)
	DBPath     string `json:"db_path"`     // sqlite log path (default: $TOOLHOST_PATH/history.db)
}

// SkillsConfig configures the skill runtime.
type SkillsConfig struct {
	Dir     string   `json:"dir"`     // installed skill storage (default: $TOOLHOST_PATH/skills)
	Enabled []string `json:"enabled"` // enabled skill ids (empty = all installed)
	NodeBin   string `json:"node_bin"`   // node executable (default: "node")
	PythonBin string `json:"python_bin"` // python executable (default: "python3")
}

// AgentConfig configures the autonomous agent loop.
type AgentConfig struct {
	Model        string   `json:"model"`          // model provider name for planning/summarizing
	MaxSteps     int      `json:"max_steps"`      // plan length cap (default: 10)
	Categories   []string `json:"categories"`     // restrict planning to these tool categories
	ExcludeTools []string `json:"exclude_tools"`  // tool ids the planner never sees
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string         `json:"driver"` // "anthropic", "openai", "ollama"
	Model     string         `json:"model"`
	BaseURL   string         `json:"base_url,omitempty"`
	Auth      AuthConfig     `json:"auth"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // Direct API key or ${ENV_VAR} reference
	Token  string `json:"token,omitempty"`   // OAuth/Bearer token
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level string `json:"level"` // "debug", "info", "warn", "error"
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
