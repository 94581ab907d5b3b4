package logger

import (
	"context"
	"log/slog"
)

type ContextKey string

const (
	// Business context keys propagated through a pipeline run.
	RequestIDKey ContextKey = "insight.request.id"
	LocationKey  ContextKey = "insight.location"
	StageKey     ContextKey = "insight.stage"
)

// WithRequestID adds the pipeline run ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLocation adds the requested location name to the context.
func WithLocation(ctx context.Context, location string) context.Context {
	return context.WithValue(ctx, LocationKey, location)
}

// WithStage adds the current pipeline stage to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

// PipelineContextHandler lifts pipeline context values into every record
// logged with the *Context slog functions, so stage code never repeats
// run ID or location attrs.
type PipelineContextHandler struct {
	inner slog.Handler
}

// NewPipelineContextHandler wraps inner with pipeline context enrichment.
func NewPipelineContextHandler(inner slog.Handler) *PipelineContextHandler {
	return &PipelineContextHandler{inner: inner}
}

func (h *PipelineContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *PipelineContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		r.AddAttrs(slog.String("run_id", requestID))
	}
	if location, ok := ctx.Value(LocationKey).(string); ok {
		r.AddAttrs(slog.String("location", location))
	}
	if stage, ok := ctx.Value(StageKey).(string); ok {
		r.AddAttrs(slog.String("stage", stage))
	}
	return h.inner.Handle(ctx, r)
}

func (h *PipelineContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PipelineContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *PipelineContextHandler) WithGroup(name string) slog.Handler {
	return &PipelineContextHandler{inner: h.inner.WithGroup(name)}
}
