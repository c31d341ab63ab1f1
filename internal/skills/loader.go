package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcozac/go-jsonc"
	"gopkg.in/yaml.v3"
)

// Doc is the structured form of a skill's instructions document (SKILL.md).
// It is advisory context for the calling model, never executed.
type Doc struct {
	FrontMatter   map[string]any `json:"frontMatter,omitempty"`
	Description   string         `json:"description,omitempty"`
	Usage         string         `json:"usage,omitempty"`
	Examples      string         `json:"examples,omitempty"`
	AIPrompt      string         `json:"aiPrompt,omitempty"`
	Configuration string         `json:"configuration,omitempty"`
}

// LoadManifest reads and validates a skill's manifest.json (JSONC allowed).
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "manifest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := jsonc.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadDoc parses the skill's instructions document. A missing file is not an
// error; the document is optional.
func LoadDoc(dir string, m *Manifest) (*Doc, error) {
	name := m.SkillFile
	if name == "" {
		name = "SKILL.md"
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return parseDoc(string(data))
}

// parseDoc splits a markdown document into known sections by top-level
// headings, after stripping an optional YAML front matter block.
func parseDoc(text string) (*Doc, error) {
	doc := &Doc{}

	body, fm, err := splitFrontMatter(text)
	if err != nil {
		return nil, err
	}
	doc.FrontMatter = fm

	section := "description"
	var buf strings.Builder
	flush := func() {
		content := strings.TrimSpace(buf.String())
		buf.Reset()
		if content == "" {
			return
		}
		switch section {
		case "description":
			doc.Description = content
		case "usage":
			doc.Usage = content
		case "examples", "example":
			doc.Examples = content
		case "ai-prompt", "ai prompt", "prompt":
			doc.AIPrompt = content
		case "configuration", "config":
			doc.Configuration = content
		}
	}

	for _, line := range strings.Split(body, "\n") {
		if heading, ok := headingTitle(line); ok {
			flush()
			section = strings.ToLower(heading)
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush()

	return doc, nil
}

func headingTitle(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	title := strings.TrimLeft(trimmed, "#")
	// "#foo" is a tag, not a heading
	if !strings.HasPrefix(title, " ") {
		return "", false
	}
	return strings.TrimSpace(title), true
}

func splitFrontMatter(text string) (body string, fm map[string]any, err error) {
	if !strings.HasPrefix(text, "---\n") && !strings.HasPrefix(text, "---\r\n") {
		return text, nil, nil
	}
	rest := text[strings.Index(text, "\n")+1:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return text, nil, nil
	}
	block := rest[:end]
	after := rest[end+len("\n---"):]
	if idx := strings.Index(after, "\n"); idx >= 0 {
		after = after[idx+1:]
	} else {
		after = ""
	}
	fm = map[string]any{}
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return "", nil, fmt.Errorf("parse front matter: %w", err)
	}
	return after, fm, nil
}
