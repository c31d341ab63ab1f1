package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dohr-michael/toolhost/internal/registry"
)

// SecretSource resolves named secrets for ${ENV_VAR} substitution and auth.
type SecretSource interface {
	Get(name string) (string, error)
}

const maxHTTPBody = 4 << 20 // 4 MiB response cap

var (
	paramTokenRe = regexp.MustCompile(`\{\{(\w+)\}\}`)
	envTokenRe   = regexp.MustCompile(`\$\{(\w+)\}`)
)

// httpBackend executes tools against remote HTTP APIs. URL, query, headers
// and body templates carry {{param}} and ${ENV_VAR} tokens.
type httpBackend struct {
	client         *http.Client
	secrets        SecretSource
	defaultTimeout time.Duration
}

func newHTTPBackend(secrets SecretSource, defaultTimeout time.Duration) *httpBackend {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &httpBackend{
		client:         &http.Client{},
		secrets:        secrets,
		defaultTimeout: defaultTimeout,
	}
}

func (b *httpBackend) Execute(ctx context.Context, def *registry.ToolDefinition, args map[string]any) (any, error) {
	spec := def.Execution.HTTP
	if spec == nil {
		return nil, registry.NewError(registry.CodeExecutionError, "tool %q has no http configuration", def.ID)
	}

	rawURL, err := b.substitute(spec.URL, args, true)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(spec.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if spec.Body != "" {
		rendered, err := b.substitute(spec.Body, args, false)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(rendered)
	}

	timeout := b.defaultTimeout
	if spec.TimeoutMS > 0 {
		timeout = time.Duration(spec.TimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, registry.NewError(registry.CodeExecutionError, "tool %q: build request: %v", def.ID, err)
	}

	if len(spec.Query) > 0 {
		q := req.URL.Query()
		for key, tmpl := range spec.Query {
			v, err := b.substitute(tmpl, args, true)
			if err != nil {
				return nil, err
			}
			q.Set(key, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	for key, tmpl := range spec.Headers {
		v, err := b.substitute(tmpl, args, false)
		if err != nil {
			return nil, err
		}
		req.Header.Set(key, v)
	}
	if spec.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if spec.Auth != nil {
		if err := b.applyAuth(req, spec.Auth, def.ID); err != nil {
			return nil, err
		}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, registry.NewError(registry.CodeExecutionError, "tool %q timed out after %s", def.ID, timeout)
		}
		return nil, registry.NewError(registry.CodeExecutionError, "tool %q: %v", def.ID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBody))
	if err != nil {
		return nil, registry.NewError(registry.CodeExecutionError, "tool %q: read response: %v", def.ID, err)
	}

	return postProcess(def.ID, spec, resp.StatusCode, data)
}

// postProcess applies status check, successCondition, errorPath and
// resultPath to the raw response body.
func postProcess(toolID string, spec *registry.HTTPExecution, status int, data []byte) (any, error) {
	bodyStr := string(data)

	if status < 200 || status >= 300 {
		msg := extractErrorMessage(spec, bodyStr)
		return nil, registry.NewError(registry.CodeExecutionError,
			"tool %q: http status %d: %s", toolID, status, msg)
	}

	if spec.SuccessCondition != "" {
		if !evalCondition(spec.SuccessCondition, bodyStr) {
			msg := extractErrorMessage(spec, bodyStr)
			return nil, registry.NewError(registry.CodeExecutionError,
				"tool %q: success condition %q not met: %s", toolID, spec.SuccessCondition, msg)
		}
	}

	payload := bodyStr
	if spec.ResultPath != "" {
		if r := gjson.Get(bodyStr, spec.ResultPath); r.Exists() {
			payload = r.Raw
		}
	}

	var parsed any
	if json.Unmarshal([]byte(payload), &parsed) == nil {
		return parsed, nil
	}
	return payload, nil
}

// evalCondition evaluates "path==value" or a bare gjson path (truthy check).
func evalCondition(cond, body string) bool {
	if path, want, ok := strings.Cut(cond, "=="); ok {
		r := gjson.Get(body, strings.TrimSpace(path))
		return r.Exists() && r.String() == strings.TrimSpace(want)
	}
	r := gjson.Get(body, strings.TrimSpace(cond))
	return r.Exists() && r.Bool()
}

func extractErrorMessage(spec *registry.HTTPExecution, body string) string {
	if spec.ErrorPath != "" {
		if r := gjson.Get(body, spec.ErrorPath); r.Exists() {
			return r.String()
		}
	}
	if len(body) > 300 {
		return body[:300] + "..."
	}
	return body
}

// substitute expands {{param}} tokens from args and ${ENV_VAR} tokens from
// the secret source. urlEncode escapes parameter values for URL contexts.
func (b *httpBackend) substitute(tmpl string, args map[string]any, urlEncode bool) (string, error) {
	var substErr error

	out := paramTokenRe.ReplaceAllStringFunc(tmpl, func(token string) string {
		name := paramTokenRe.FindStringSubmatch(token)[1]
		value, ok := args[name]
		if !ok {
			return ""
		}
		s := stringifyArg(value)
		if urlEncode {
			s = url.QueryEscape(s)
		}
		return s
	})

	out = envTokenRe.ReplaceAllStringFunc(out, func(token string) string {
		name := envTokenRe.FindStringSubmatch(token)[1]
		v, err := b.lookupSecret(name)
		if err != nil {
			substErr = registry.NewError(registry.CodeExecutionError, "resolve ${%s}: %v", name, err)
			return ""
		}
		return v
	})

	return out, substErr
}

func (b *httpBackend) lookupSecret(name string) (string, error) {
	if b.secrets != nil {
		return b.secrets.Get(name)
	}
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("environment variable %q is not set", name)
}

func stringifyArg(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// Render integral numbers without the trailing .0
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// applyAuth resolves the credential from the secret source and sets the
// matching header.
func (b *httpBackend) applyAuth(req *http.Request, auth *registry.HTTPAuth, toolID string) error {
	cred, err := b.lookupSecret(auth.EnvVar)
	if err != nil {
		return registry.NewError(registry.CodeExecutionError, "tool %q: auth credential: %v", toolID, err)
	}

	switch auth.Type {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+cred)
	case "basic":
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(cred)))
	case "apiKey":
		header := auth.Header
		if header == "" {
			header = "X-Api-Key"
		}
		req.Header.Set(header, cred)
	default:
		return registry.NewError(registry.CodeExecutionError, "tool %q: unknown auth type %q", toolID, auth.Type)
	}
	return nil
}
