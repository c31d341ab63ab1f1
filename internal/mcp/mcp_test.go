package mcp

import (
	"encoding/json"
	"testing"

	"github.com/dohr-michael/toolhost/internal/registry"
)

func TestDefinitionToMCPTool(t *testing.T) {
	def := &registry.ToolDefinition{
		ID:          "test_tool",
		Name:        "Test Tool",
		Description: "A test tool",
		Parameters: []registry.Parameter{
			{Name: "name", Type: "string", Description: "The name", Required: true},
			{Name: "count", Type: "number", Description: "A count"},
			{Name: "mode", Type: "string", Description: "The mode", Required: true,
				Validation: &registry.Validation{Enum: []string{"fast", "slow"}}},
			{Name: "path", Type: "file", Description: "Input file"},
		},
	}

	mcpTool := definitionToMCPTool(def)

	if mcpTool.Name != "test_tool" {
		t.Errorf("Name = %q, want test_tool", mcpTool.Name)
	}
	if mcpTool.Description != "A test tool" {
		t.Errorf("Description = %q", mcpTool.Description)
	}

	schemaBytes, err := json.Marshal(mcpTool.InputSchema)
	if err != nil {
		t.Fatalf("marshal InputSchema: %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		t.Fatalf("unmarshal InputSchema: %v", err)
	}

	if schema["type"] != "object" {
		t.Errorf("schema type = %v, want object", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("schema properties not a map")
	}
	if len(props) != 4 {
		t.Errorf("schema properties len = %d, want 4", len(props))
	}
	path, _ := props["path"].(map[string]any)
	if path["type"] != "string" {
		t.Errorf("file parameter schema type = %v, want string", path["type"])
	}
	mode, _ := props["mode"].(map[string]any)
	if enum, _ := mode["enum"].([]any); len(enum) != 2 {
		t.Errorf("mode enum = %v", mode["enum"])
	}

	req, ok := schema["required"].([]any)
	if !ok {
		t.Fatal("schema required not an array")
	}
	// Sorted: mode, name
	if len(req) != 2 || req[0] != "mode" || req[1] != "name" {
		t.Errorf("schema required = %v, want [mode name]", req)
	}
}

func TestDefinitionWithoutRequiredParams(t *testing.T) {
	def := &registry.ToolDefinition{
		ID:          "no_params",
		Description: "No required params",
		Parameters:  []registry.Parameter{{Name: "opt", Type: "string"}},
	}
	mcpTool := definitionToMCPTool(def)

	schemaBytes, _ := json.Marshal(mcpTool.InputSchema)
	var schema map[string]any
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		t.Fatal(err)
	}
	if _, present := schema["required"]; present {
		t.Error("required should be omitted when empty")
	}
}

func TestMatchesFilter(t *testing.T) {
	def := &registry.ToolDefinition{ID: "read_file", Category: "files"}
	if !matchesFilter(def, "read_file") {
		t.Error("id match failed")
	}
	if !matchesFilter(def, "files") {
		t.Error("category match failed")
	}
	if matchesFilter(def, "web") {
		t.Error("unrelated filter matched")
	}
}
