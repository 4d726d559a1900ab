package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RunContext holds observability state for one script run.
type RunContext struct {
	RunID     string
	Module    string
	StartTime time.Time
	// Metrics may be nil, in which case nothing is recorded.
	Metrics *RuntimeMetrics
}

// NewRunContext creates a run context starting now.
func NewRunContext(runID, module string, metrics *RuntimeMetrics) *RunContext {
	return &RunContext{
		RunID:     runID,
		Module:    module,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

type runContextKey struct{}

// WithRunContext stores rc in ctx.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunContextFromContext retrieves the RunContext from ctx, or nil.
func RunContextFromContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(*RunContext); ok {
		return rc
	}
	return nil
}

// StartRunSpan starts the script.run span and stores rc in the returned context.
func (rc *RunContext) StartRunSpan(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := StartSpan(WithRunContext(ctx, rc), SpanScriptRun)
	span.SetAttributes(
		attribute.String(AttrRunID, rc.RunID),
		attribute.String(AttrModule, rc.Module),
	)
	return ctx, span
}

// EndRun closes span and records the run outcome.
func (rc *RunContext) EndRun(ctx context.Context, span trace.Span, err error) {
	duration := rc.Duration()

	span.SetAttributes(
		attribute.String(AttrStatus, statusOf(err)),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	EndSpan(span, err)

	if rc.Metrics != nil {
		rc.Metrics.RecordScriptRun(ctx, rc.Module, duration, err)
	}
}

// Duration returns the time elapsed since the run started.
func (rc *RunContext) Duration() time.Duration {
	return time.Since(rc.StartTime)
}
