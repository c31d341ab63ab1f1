package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dohr-michael/toolhost/internal/registry"
)

type mapSecrets map[string]string

func (m mapSecrets) Get(name string) (string, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return "", &registry.Error{Code: registry.CodeExecutionError, Message: "secret " + name + " not set"}
}

func httpDef(spec registry.HTTPExecution) *registry.ToolDefinition {
	return &registry.ToolDefinition{
		ID:        "http_test",
		Execution: registry.Execution{Type: registry.ExecHTTP, HTTP: &spec},
	}
}

func TestHTTPBackendSubstitutionAndAuth(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("q")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "data": map[string]any{"value": 42}})
	}))
	defer server.Close()

	b := newHTTPBackend(mapSecrets{"API_TOKEN": "tok123"}, 5*time.Second)

	out, err := b.Execute(context.Background(), httpDef(registry.HTTPExecution{
		URL:        server.URL + "/items/{{id}}",
		Query:      map[string]string{"q": "{{query}}"},
		Auth:       &registry.HTTPAuth{Type: "bearer", EnvVar: "API_TOKEN"},
		ResultPath: "data",
	}), map[string]any{"id": "abc", "query": "hello world"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if gotPath != "/items/abc" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotQuery != "hello world" {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}

	result, ok := out.(map[string]any)
	if !ok || result["value"] != float64(42) {
		t.Errorf("resultPath extraction failed: %#v", out)
	}
}

func TestHTTPBackendApiKeyHeader(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	b := newHTTPBackend(mapSecrets{"KEY": "k1"}, 5*time.Second)
	_, err := b.Execute(context.Background(), httpDef(registry.HTTPExecution{
		URL:  server.URL,
		Auth: &registry.HTTPAuth{Type: "apiKey", EnvVar: "KEY"},
	}), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotKey != "k1" {
		t.Errorf("unexpected api key header %q", gotKey)
	}
}

func TestHTTPBackendEnvTokenInHeader(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Custom")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	b := newHTTPBackend(mapSecrets{"CUSTOM": "secret-val"}, 5*time.Second)
	_, err := b.Execute(context.Background(), httpDef(registry.HTTPExecution{
		URL:     server.URL,
		Headers: map[string]string{"X-Custom": "${CUSTOM}"},
	}), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotHeader != "secret-val" {
		t.Errorf("unexpected header %q", gotHeader)
	}
}

func TestHTTPBackendStatusFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer server.Close()

	b := newHTTPBackend(nil, 5*time.Second)
	_, err := b.Execute(context.Background(), httpDef(registry.HTTPExecution{
		URL:       server.URL,
		ErrorPath: "error.message",
	}), nil)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	coded := registry.AsError(err)
	if coded.Code != registry.CodeExecutionError {
		t.Errorf("expected EXECUTION_ERROR, got %s", coded.Code)
	}
	if want := "boom"; !strings.Contains(coded.Message, want) {
		t.Errorf("expected errorPath message %q in %q", want, coded.Message)
	}
}

func TestHTTPBackendSuccessCondition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"rate limited upstream"}`))
	}))
	defer server.Close()

	b := newHTTPBackend(nil, 5*time.Second)
	_, err := b.Execute(context.Background(), httpDef(registry.HTTPExecution{
		URL:              server.URL,
		SuccessCondition: "status==ok",
		ErrorPath:        "message",
	}), nil)
	if err == nil {
		t.Fatal("expected success condition failure")
	}
	if !strings.Contains(err.Error(), "rate limited upstream") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHTTPBackendPostBody(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	b := newHTTPBackend(nil, 5*time.Second)
	_, err := b.Execute(context.Background(), httpDef(registry.HTTPExecution{
		URL:    server.URL,
		Method: "POST",
		Body:   `{"name":"{{name}}","count":{{count}}}`,
	}), map[string]any{"name": "widget", "count": float64(3)})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotBody["name"] != "widget" || gotBody["count"] != float64(3) {
		t.Errorf("unexpected body %#v", gotBody)
	}
}

func TestHTTPBackendTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	b := newHTTPBackend(nil, 5*time.Second)
	_, err := b.Execute(context.Background(), httpDef(registry.HTTPExecution{
		URL:       server.URL,
		TimeoutMS: 50,
	}), nil)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("unexpected error: %v", err)
	}
}
