// Package mcp exposes enabled registry tools over the Model Context Protocol.
package mcp

import (
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/toolhost/internal/registry"
)

// definitionToMCPTool converts a ToolDefinition to an mcp.Tool with JSON Schema.
func definitionToMCPTool(def *registry.ToolDefinition) *mcpsdk.Tool {
	props := make(map[string]any, len(def.Parameters))
	var required []string

	for _, p := range def.Parameters {
		prop := map[string]any{
			"type":        schemaType(p.Type),
			"description": p.Description,
		}
		if p.Validation != nil && len(p.Validation.Enum) > 0 {
			prop["enum"] = p.Validation.Enum
		}
		props[p.Name] = prop

		if p.Required {
			required = append(required, p.Name)
		}
	}

	// Sort required for deterministic output
	sort.Strings(required)

	inputSchema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		inputSchema["required"] = required
	}

	return &mcpsdk.Tool{
		Name:        def.ID,
		Description: def.Description,
		InputSchema: inputSchema,
	}
}

// schemaType maps tool parameter types to JSON Schema types. The file and
// code parameter types are strings on the wire.
func schemaType(t string) string {
	switch t {
	case "file", "code":
		return "string"
	default:
		return t
	}
}
