package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	duckduckgo "github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino/components/tool"
)

const (
	webFetchTimeout = 30 * time.Second
	webFetchMaxKB   = 512
	webUserAgent    = "toolhost/1.0 (web_fetch)"
)

// webTools backs the web_search and web_fetch built-ins. The DuckDuckGo
// search tool is initialized lazily on first use.
type webTools struct {
	once       sync.Once
	searchTool tool.InvokableTool
	initErr    error
	client     *http.Client
}

func (w *webTools) search(ctx context.Context, args map[string]any) (any, error) {
	w.once.Do(func() {
		w.searchTool, w.initErr = duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
			ToolName:   "web_search",
			ToolDesc:   "Search the web for current information",
			MaxResults: 10,
			Timeout:    15 * time.Second,
		})
	})
	if w.initErr != nil {
		return nil, fmt.Errorf("init web search: %w", w.initErr)
	}

	query, _ := args["query"].(string)
	input, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	raw, err := w.searchTool.InvokableRun(ctx, string(input))
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	var parsed any
	if json.Unmarshal([]byte(raw), &parsed) == nil {
		return parsed, nil
	}
	return raw, nil
}

func (w *webTools) fetch(ctx context.Context, args map[string]any) (any, error) {
	rawURL, _ := args["url"].(string)

	// Upgrade http to https
	if strings.HasPrefix(rawURL, "http://") {
		rawURL = "https://" + strings.TrimPrefix(rawURL, "http://")
	}

	if w.client == nil {
		w.client = &http.Client{Timeout: webFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("web fetch: create request: %w", err)
	}
	req.Header.Set("User-Agent", webUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,*/*")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web fetch: %w", err)
	}
	defer resp.Body.Close()

	maxBytes := int64(webFetchMaxKB) * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("web fetch: read body: %w", err)
	}

	content := extractText(string(body))
	if len(content) > int(maxBytes) {
		content = content[:maxBytes]
	}

	return map[string]any{
		"url":     rawURL,
		"status":  resp.StatusCode,
		"content": content,
	}, nil
}

// extractText strips HTML tags and returns plain text. Script and style
// bodies are skipped entirely; block-level tags become newlines.
func extractText(html string) string {
	var sb strings.Builder
	sb.Grow(len(html) / 2)

	inTag := false
	inScript := false
	inStyle := false
	lastSpace := true

	lower := strings.ToLower(html)

	for i := 0; i < len(html); {
		r, size := utf8.DecodeRuneInString(html[i:])

		if inScript {
			if i+9 <= len(lower) && lower[i:i+9] == "</script>" {
				inScript = false
				i += 9
				continue
			}
			i += size
			continue
		}
		if inStyle {
			if i+8 <= len(lower) && lower[i:i+8] == "</style>" {
				inStyle = false
				i += 8
				continue
			}
			i += size
			continue
		}

		if r == '<' {
			rest := lower[i:]
			if strings.HasPrefix(rest, "<script") {
				inScript = true
			} else if strings.HasPrefix(rest, "<style") {
				inStyle = true
			}
			inTag = true

			if isBlockTag(rest) && !lastSpace {
				sb.WriteByte('\n')
				lastSpace = true
			}

			i += size
			continue
		}

		if r == '>' {
			inTag = false
			i += size
			continue
		}

		if inTag {
			i += size
			continue
		}

		if r == '&' {
			end := strings.IndexByte(html[i:], ';')
			if end > 0 && end < 10 {
				if decoded, ok := decodeEntity(html[i : i+end+1]); ok {
					if decoded != "" {
						sb.WriteString(decoded)
						lastSpace = decoded == " "
					}
					i += end + 1
					continue
				}
			}
		}

		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				sb.WriteByte(' ')
				lastSpace = true
			}
			i += size
			continue
		}

		sb.WriteRune(r)
		lastSpace = false
		i += size
	}

	return strings.TrimSpace(sb.String())
}

var blockTags = []string{"p", "div", "br", "br/", "h1", "h2", "h3", "h4", "li", "tr", "td", "ul", "ol", "table", "section", "article"}

// isBlockTag reports whether rest starts with an opening or closing
// block-level tag.
func isBlockTag(rest string) bool {
	if len(rest) < 2 {
		return false
	}
	tag := rest[1:]
	tag = strings.TrimPrefix(tag, "/")
	for _, bt := range blockTags {
		if strings.HasPrefix(tag, bt+">") || strings.HasPrefix(tag, bt+" ") {
			return true
		}
	}
	return false
}

func decodeEntity(entity string) (string, bool) {
	switch entity {
	case "&nbsp;", "&#160;":
		return " ", true
	case "&amp;":
		return "&", true
	case "&lt;":
		return "<", true
	case "&gt;":
		return ">", true
	case "&quot;", "&#34;":
		return `"`, true
	case "&#39;", "&apos;":
		return "'", true
	}
	return "", false
}
