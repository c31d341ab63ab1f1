package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifestJSONC(t *testing.T) {
	dir := t.TempDir()
	manifest := `{
	// comment lines are allowed
	"id": "weather",
	"name": "Weather",
	"version": "2.1.0",
	"description": "Fetches forecasts",
	"runtime": "python",
	"main": "main.py",
	"mcpTools": ["http_get"],
	"permissions": ["network", "mcp:call"],
}`
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.ID != "weather" || m.Runtime != RuntimePython {
		t.Errorf("unexpected manifest: %+v", m)
	}
	if !m.HasPermission(PermNetwork) {
		t.Error("network permission lost in parsing")
	}
}

func TestLoadManifestMissing(t *testing.T) {
	if _, err := LoadManifest(t.TempDir()); err == nil {
		t.Fatal("expected error for missing manifest.json")
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{"id":"x"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(dir); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestParseDocSections(t *testing.T) {
	doc, err := parseDoc(`---
author: someone
tags: [weather, demo]
---
This skill fetches weather forecasts.

# Usage

Run with a city parameter.

## Examples

weather city=Paris

# AI-Prompt

Use this when the user asks about weather.

# Configuration

Set WEATHER_API_KEY.
`)
	if err != nil {
		t.Fatalf("parseDoc: %v", err)
	}
	if doc.FrontMatter["author"] != "someone" {
		t.Errorf("front matter author = %v", doc.FrontMatter["author"])
	}
	if doc.Description != "This skill fetches weather forecasts." {
		t.Errorf("description = %q", doc.Description)
	}
	if doc.Usage != "Run with a city parameter." {
		t.Errorf("usage = %q", doc.Usage)
	}
	if doc.Examples != "weather city=Paris" {
		t.Errorf("examples = %q", doc.Examples)
	}
	if doc.AIPrompt == "" || doc.Configuration == "" {
		t.Errorf("missing sections: %+v", doc)
	}
}

func TestParseDocNoFrontMatter(t *testing.T) {
	doc, err := parseDoc("Just a description.\n")
	if err != nil {
		t.Fatal(err)
	}
	if doc.FrontMatter != nil {
		t.Error("expected no front matter")
	}
	if doc.Description != "Just a description." {
		t.Errorf("description = %q", doc.Description)
	}
}

func TestLoadDocOptional(t *testing.T) {
	m := validManifest()
	doc, err := LoadDoc(t.TempDir(), &m)
	if err != nil {
		t.Fatalf("missing SKILL.md should not error: %v", err)
	}
	if doc != nil {
		t.Error("expected nil doc for missing file")
	}
}

func TestLoadDocCustomFile(t *testing.T) {
	dir := t.TempDir()
	m := validManifest()
	m.SkillFile = "README.md"
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("Custom doc.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := LoadDoc(dir, &m)
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil || doc.Description != "Custom doc." {
		t.Errorf("doc = %+v", doc)
	}
}
