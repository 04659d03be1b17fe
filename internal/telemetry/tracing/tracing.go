// Package tracing provides a lightweight span tracker used to correlate
// log lines emitted during one search query or autofocus run. It does not
// export to any collector; it only threads trace/span IDs through
// context.Context so logging can tag related lines.
package tracing

import (
	"context"
	randcrypto "crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

type Span interface {
	End()
	SetAttribute(key string, value any)
	Context() SpanContext
	IsEnded() bool
}

type SpanContext struct {
	TraceID, SpanID, ParentSpanID string
	Start, End                   time.Time
}

type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	Noop() bool
}

type noopTracer struct{}
type noopSpan struct{}

func (noopTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, noopSpan{}
}
func (noopTracer) Noop() bool                          { return true }
func (noopSpan) End()                                  {}
func (noopSpan) SetAttribute(key string, value any)    {}
func (noopSpan) Context() SpanContext                  { return SpanContext{} }
func (noopSpan) IsEnded() bool                         { return true }

type simpleTracer struct{ enabled bool }

type simpleSpan struct {
	ctx   SpanContext
	mu    sync.Mutex
	ended bool
	attrs map[string]any
}

// NewTracer returns a no-op tracer when disabled, otherwise a tracer that
// assigns a fresh trace ID to each root span and propagates it to children.
func NewTracer(enabled bool) Tracer {
	if !enabled {
		return noopTracer{}
	}
	return simpleTracer{enabled: true}
}

func (t simpleTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	parent := SpanFromContext(ctx)
	traceID := parent.ctx.TraceID
	if traceID == "" {
		traceID = newID(16)
	}
	sp := &simpleSpan{
		ctx: SpanContext{
			TraceID:       traceID,
			SpanID:        newID(8),
			ParentSpanID:  parent.ctx.SpanID,
			Start:         time.Now(),
		},
		attrs: make(map[string]any),
	}
	return context.WithValue(ctx, spanKey{}, sp), sp
}

func (t simpleTracer) Noop() bool { return !t.enabled }

func (s *simpleSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.ctx.End = time.Now()
		s.ended = true
	}
}

func (s *simpleSpan) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attrs != nil {
		s.attrs[key] = value
	}
}

func (s *simpleSpan) Context() SpanContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *simpleSpan) IsEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

type spanKey struct{}

// SpanFromContext returns the span stored by StartSpan, or a zero-value
// span if ctx carries none.
func SpanFromContext(ctx context.Context) *simpleSpan {
	if ctx == nil {
		return &simpleSpan{}
	}
	if sp, ok := ctx.Value(spanKey{}).(*simpleSpan); ok {
		return sp
	}
	return &simpleSpan{}
}

// ExtractIDs returns the trace and span IDs carried by ctx, or empty
// strings if no span has been started.
func ExtractIDs(ctx context.Context) (traceID, spanID string) {
	sp := SpanFromContext(ctx)
	return sp.ctx.TraceID, sp.ctx.SpanID
}

func newID(n int) string {
	b := make([]byte, n)
	_, _ = randcrypto.Read(b)
	return hex.EncodeToString(b)
}
