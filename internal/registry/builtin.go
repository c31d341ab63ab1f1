package registry

import "time"

// builtinCreatedAt is the fixed creation timestamp for built-in tools.
var builtinCreatedAt = time.Unix(0, 0)

// BuiltinDefinitions returns the static set of built-in tool definitions.
// They are recomputed at every registry load and are never persisted.
func BuiltinDefinitions() []ToolDefinition {
	defs := []ToolDefinition{
		{
			ID:          "echo",
			Name:        "Echo",
			Description: "Return the given text unchanged. Useful for smoke tests and agent plumbing checks.",
			Version:     "1.0.0",
			Category:    "utility",
			Parameters: []Parameter{
				{Name: "text", Type: "string", Description: "Text to echo back", Required: true},
			},
			Returns:   Returns{Type: "object", Description: "{text}"},
			Execution: Execution{Type: ExecFunction, BuiltinFunction: "echo"},
			AIHints:   AIHints{WhenToUse: "Only for connectivity checks", Priority: 1},
		},
		{
			ID:          "current_time",
			Name:        "Current Time",
			Description: "Return the current time, optionally formatted with a Go layout string.",
			Version:     "1.0.0",
			Category:    "utility",
			Parameters: []Parameter{
				{Name: "format", Type: "string", Description: "Go time layout (default RFC3339)", Required: false},
			},
			Returns:   Returns{Type: "object", Description: "{time, unix}"},
			Execution: Execution{Type: ExecFunction, BuiltinFunction: "current_time"},
			AIHints:   AIHints{WhenToUse: "When the task needs the current date or time", Priority: 3},
		},
		{
			ID:          "read_file",
			Name:        "Read File",
			Description: "Read a text file from the workspace. Supports line offset and limit.",
			Version:     "1.0.0",
			Category:    "filesystem",
			Parameters: []Parameter{
				{Name: "path", Type: "file", Description: "File path, relative to the workspace root", Required: true},
				{Name: "offset", Type: "number", Description: "First line to read (0-based)", Required: false},
				{Name: "limit", Type: "number", Description: "Maximum number of lines", Required: false},
			},
			Returns:   Returns{Type: "object", Description: "{path, content}"},
			Execution: Execution{Type: ExecFunction, BuiltinFunction: "read_file"},
			AIHints:   AIHints{WhenToUse: "To inspect file contents before acting on them", Priority: 8},
		},
		{
			ID:          "write_file",
			Name:        "Write File",
			Description: "Create or overwrite a text file in the workspace.",
			Version:     "1.0.0",
			Category:    "filesystem",
			Parameters: []Parameter{
				{Name: "path", Type: "file", Description: "File path, relative to the workspace root", Required: true},
				{Name: "content", Type: "string", Description: "Full file content", Required: true},
			},
			Returns:   Returns{Type: "object", Description: "{path, bytes}"},
			Execution: Execution{Type: ExecFunction, BuiltinFunction: "write_file"},
			Security:  Security{RequireConfirmation: true},
			AIHints:   AIHints{WhenToUse: "To create or replace a file", Priority: 7},
		},
		{
			ID:          "list_dir",
			Name:        "List Directory",
			Description: "List the entries of a workspace directory.",
			Version:     "1.0.0",
			Category:    "filesystem",
			Parameters: []Parameter{
				{Name: "path", Type: "string", Description: "Directory path (default: workspace root)", Required: false},
			},
			Returns:   Returns{Type: "array", Description: "entries"},
			Execution: Execution{Type: ExecFunction, BuiltinFunction: "list_dir"},
			AIHints:   AIHints{WhenToUse: "To discover files before reading them", Priority: 6},
		},
		{
			ID:          "search_files",
			Name:        "Search Files",
			Description: "Find workspace files matching a glob pattern. Supports ** for recursive matching.",
			Version:     "1.0.0",
			Category:    "filesystem",
			Parameters: []Parameter{
				{Name: "pattern", Type: "string", Description: "Glob pattern, e.g. **/*.go", Required: true},
			},
			Returns:   Returns{Type: "array", Description: "matching paths"},
			Execution: Execution{Type: ExecFunction, BuiltinFunction: "search_files"},
			AIHints:   AIHints{WhenToUse: "To locate files by name or extension", Priority: 6},
		},
		{
			ID:          "web_search",
			Name:        "Web Search",
			Description: "Search the web for current information. Returns titles, URLs, and snippets.",
			Version:     "1.0.0",
			Category:    "web",
			Parameters: []Parameter{
				{Name: "query", Type: "string", Description: "The search query", Required: true},
			},
			Returns:   Returns{Type: "array", Description: "search results"},
			Execution: Execution{Type: ExecFunction, BuiltinFunction: "web_search"},
			Security:  Security{RateLimit: 10},
			AIHints:   AIHints{WhenToUse: "When the task needs information not available locally", Priority: 5},
		},
		{
			ID:          "web_fetch",
			Name:        "Web Fetch",
			Description: "Fetch a URL and return its text content. HTTP URLs are upgraded to HTTPS.",
			Version:     "1.0.0",
			Category:    "web",
			Parameters: []Parameter{
				{Name: "url", Type: "string", Description: "The URL to fetch", Required: true,
					Validation: &Validation{Pattern: `^https?://`}},
			},
			Returns:   Returns{Type: "object", Description: "{url, status, content}"},
			Execution: Execution{Type: ExecFunction, BuiltinFunction: "web_fetch"},
			Security:  Security{RateLimit: 20},
			AIHints:   AIHints{WhenToUse: "To read the content of a specific page", Priority: 5},
		},
		{
			ID:          "run_command",
			Name:        "Run Command",
			Description: "Execute a shell command. Returns stdout, stderr, and exit code.",
			Version:     "1.0.0",
			Category:    "system",
			Parameters: []Parameter{
				{Name: "command", Type: "string", Description: "The shell command to execute", Required: true},
				{Name: "working_dir", Type: "string", Description: "Working directory", Required: false},
			},
			Returns: Returns{Type: "object", Description: "{stdout, stderr, exitCode}"},
			Execution: Execution{Type: ExecCommand, Command: &CommandExecution{
				Command:    "{{command}}",
				WorkingDir: "{{working_dir}}",
			}},
			Security: Security{RequireConfirmation: true, RateLimit: 30},
			AIHints:  AIHints{WhenToUse: "When no dedicated tool covers the task", Priority: 4},
		},
	}

	for i := range defs {
		defs[i].Metadata.Status = "active"
		defs[i].Metadata.CreatedAt = builtinCreatedAt
		defs[i].Metadata.UpdatedAt = builtinCreatedAt
		defs[i].Metadata.SuccessRate = 1.0
	}
	return defs
}
