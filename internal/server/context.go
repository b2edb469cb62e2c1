package server

import (
	"context"

	"github.com/debemdeboas/quill/internal/workspace"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const ContextKeyWorkspace ContextKey = "workspace"

func ContextWithWorkspace(ctx context.Context, w *workspace.Workspace) context.Context {
	return context.WithValue(ctx, ContextKeyWorkspace, w)
}

func WorkspaceFromContext(ctx context.Context) (*workspace.Workspace, bool) {
	w, ok := ctx.Value(ContextKeyWorkspace).(*workspace.Workspace)
	return w, ok
}
