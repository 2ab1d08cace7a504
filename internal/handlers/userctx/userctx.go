package userctx

import (
	"context"

	"github.com/nkiryanov/sessionkeeper/internal/models"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Create a new context with the introspected principal
func New(ctx context.Context, res models.IntrospectResult) context.Context {
	return context.WithValue(ctx, principalKey, res)
}

// Extract the introspected principal from the context
func FromContext(ctx context.Context) (models.IntrospectResult, bool) {
	res, ok := ctx.Value(principalKey).(models.IntrospectResult)
	return res, ok
}
