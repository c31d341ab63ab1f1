package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/toolhost/internal/executor"
	"github.com/dohr-michael/toolhost/internal/registry"
)

// ToolCaller is the executor surface the MCP server forwards calls to.
type ToolCaller interface {
	Execute(ctx context.Context, req executor.Request) (executor.Result, error)
}

// NewServer creates an MCP server exposing all enabled registry tools. If
// filter is non-empty, only tools whose id or category matches are exposed.
// Callers over MCP are treated as the agent caller for authorization.
func NewServer(reg *registry.Registry, exec ToolCaller, version, filter string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "toolhost",
		Version: version,
	}, nil)

	for _, registration := range reg.List() {
		if !registration.Enabled {
			continue
		}
		if filter != "" && !matchesFilter(&registration.Tool, filter) {
			continue
		}

		toolID := registration.Tool.ID
		server.AddTool(definitionToMCPTool(&registration.Tool), func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			var args map[string]any
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return errorResult("invalid arguments: " + err.Error()), nil
				}
			}

			result, err := exec.Execute(ctx, executor.Request{
				ToolID:    toolID,
				Caller:    registry.CallerAgent,
				Arguments: args,
			})
			if err != nil {
				slog.Debug("mcp tool error", "tool", toolID, "error", err)
				return errorResult(err.Error()), nil
			}
			return textResult(result.Output), nil
		})

		slog.Debug("mcp tool registered", "tool", toolID)
	}

	return server
}

// Run serves the given server over stdio until the context ends.
func Run(ctx context.Context, server *mcpsdk.Server) error {
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func matchesFilter(def *registry.ToolDefinition, filter string) bool {
	return strings.EqualFold(def.ID, filter) || strings.EqualFold(def.Category, filter)
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
	}
}

func textResult(output any) *mcpsdk.CallToolResult {
	var text string
	switch v := output.(type) {
	case nil:
		text = ""
	case string:
		text = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			text = "unencodable result"
		} else {
			text = string(data)
		}
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}
