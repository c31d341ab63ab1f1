package events

import "context"

type sessionIDKey struct{}
type workspaceKey struct{}

// ContextWithSessionID returns a new context carrying the session ID.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext extracts the session ID from the context, or "" if absent.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// ContextWithWorkspace returns a new context carrying the workspace root dir.
func ContextWithWorkspace(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, workspaceKey{}, dir)
}

// WorkspaceFromContext extracts the workspace root from the context, or "" if absent.
func WorkspaceFromContext(ctx context.Context) string {
	if dir, ok := ctx.Value(workspaceKey{}).(string); ok {
		return dir
	}
	return ""
}
