// Package invoke parses the @mcp: tool invocation syntax.
package invoke

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the invocation forms.
type Kind string

const (
	KindCall    Kind = "call"    // @mcp:<toolId> [args]
	KindList    Kind = "list"    // @mcp:list
	KindSearch  Kind = "search"  // @mcp:search <query>
	KindAgent   Kind = "agent"   // @mcp:agent <task text>
	KindManage  Kind = "manage"  // @mcp:manage
	KindHistory Kind = "history" // @mcp:history
)

// Invocation is one parsed @mcp: expression.
type Invocation struct {
	Kind   Kind
	ToolID string         // for KindCall
	Query  string         // for KindSearch
	Task   string         // for KindAgent
	Args   map[string]any // for KindCall
}

const prefix = "@mcp:"

// IsInvocation reports whether the input looks like an @mcp: expression.
func IsInvocation(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), prefix)
}

// Parse parses an @mcp: expression. The remainder after the tool id is
// either a JSON object, key=value pairs, or bare positional tokens.
func Parse(input string) (*Invocation, error) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, prefix) {
		return nil, fmt.Errorf("not an %stool invocation", prefix)
	}

	rest := trimmed[len(prefix):]
	head, tail := splitHead(rest)
	if head == "" {
		return nil, fmt.Errorf("missing tool id after %s", prefix)
	}

	switch head {
	case "list":
		return &Invocation{Kind: KindList}, nil
	case "manage":
		return &Invocation{Kind: KindManage}, nil
	case "history":
		return &Invocation{Kind: KindHistory}, nil
	case "search":
		if tail == "" {
			return nil, fmt.Errorf("@mcp:search needs a query")
		}
		return &Invocation{Kind: KindSearch, Query: tail}, nil
	case "agent":
		if tail == "" {
			return nil, fmt.Errorf("@mcp:agent needs a task description")
		}
		return &Invocation{Kind: KindAgent, Task: tail}, nil
	}

	args, err := parseArgs(tail)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", head, err)
	}
	return &Invocation{Kind: KindCall, ToolID: head, Args: args}, nil
}

func splitHead(s string) (head, tail string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

// parseArgs parses the remainder of a call invocation. A leading "{" means a
// single JSON object; otherwise tokens are key=value pairs with auto-typed
// values. A single bare token becomes _default; multiple become _args.
func parseArgs(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "{") {
		var args map[string]any
		if err := json.Unmarshal([]byte(s), &args); err != nil {
			return nil, fmt.Errorf("invalid JSON arguments: %w", err)
		}
		return args, nil
	}

	tokens, err := tokenize(s)
	if err != nil {
		return nil, err
	}

	args := make(map[string]any)
	var bare []string
	for _, tok := range tokens {
		key, value, ok := splitPair(tok)
		if !ok {
			bare = append(bare, tok)
			continue
		}
		args[key] = autoType(value)
	}

	switch len(bare) {
	case 0:
	case 1:
		args["_default"] = autoType(bare[0])
	default:
		typed := make([]any, len(bare))
		for i, tok := range bare {
			typed[i] = autoType(tok)
		}
		args["_args"] = typed
	}
	return args, nil
}

// tokenize splits on whitespace, honoring double and single quotes. Quotes
// may appear mid-token (key="two words").
func tokenize(s string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	var quote rune
	inToken := false

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote")
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}

func splitPair(tok string) (key, value string, ok bool) {
	i := strings.Index(tok, "=")
	if i <= 0 {
		return "", "", false
	}
	return tok[:i], tok[i+1:], true
}

// autoType converts a textual value into bool, int, float, JSON array/object,
// or string, in that order of preference.
func autoType(value string) any {
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if strings.HasPrefix(value, "{") || strings.HasPrefix(value, "[") {
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			return parsed
		}
	}
	return value
}
