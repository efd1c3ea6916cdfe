// Package tracing records timed span trees carried through a context and
// logs them through slog once the root span ends.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/echomindr/echomindr/pkg/logger"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span is one timed step of a traced operation.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Err       error
	Children  []*Span
	Attrs     map[string]any
	mu        sync.Mutex
}

// StartSpan opens a root span. The trace id is the request id in ctx when
// there is one.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	traceID := logger.RequestIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	span := &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
	return context.WithValue(ctx, spanKey, span), span
}

// StartChildSpan opens a span under the one in ctx. Without a parent it
// starts a new trace.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return StartSpan(ctx, name)
	}
	child := &Span{
		Name:      name,
		TraceID:   parent.TraceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKey, child), child
}

// End closes the span, recording err if the step failed.
func (s *Span) End(err error) {
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.Err = err
	s.mu.Unlock()
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

// Log writes the span tree depth first at debug level.
func (s *Span) Log(l *slog.Logger) {
	s.log(l, 0)
}

func (s *Span) log(l *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	l.Debug("span", attrs...)
	for _, child := range children {
		child.log(l, depth+1)
	}
}
