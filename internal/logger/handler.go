package logger

import (
	"context"
	"log/slog"

	"tessera/backend/internal/middleware"
)

// ContextHandler decorates an slog.Handler so every record emitted with a
// request or task context carries its correlation id. Records logged
// outside a tagged context pass through untouched.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := middleware.CorrelationIDFromContext(ctx); ok {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}
