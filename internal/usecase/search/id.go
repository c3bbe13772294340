package search

import (
	"context"

	"github.com/google/uuid"
)

type searchIDKey struct{}

// ContextWithID attaches a search id to ctx so callers can echo it back.
func ContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, searchIDKey{}, id)
}

// IDFromContext returns the search id carried by ctx, or a fresh UUID.
func IDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(searchIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
