// Package tracer implements the observability tracer (C2): trace-context
// propagation, a JSONL sink, and end-of-run report generation.
package tracer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/codecoder/codecoder/internal/apperr"
	"github.com/codecoder/codecoder/internal/clock"
	"github.com/codecoder/codecoder/pkg/types"
)

var errNoTraceContext = fmt.Errorf("tracer: no trace context on ctx: %w", apperr.ErrInvalidArgument)

// Config controls sampling and filtering, overridable by env vars at the
// call site that constructs it (CCODE_OBSERVABILITY_ENABLED/LEVEL/
// TRACE_SAMPLING).
type Config struct {
	Enabled  bool
	Level    string // debug|info|warn|error
	Sampling float64
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

func (c Config) allows(level string) bool {
	if !c.Enabled {
		return false
	}
	want, ok := levelRank[c.Level]
	if !ok {
		want = levelRank["info"]
	}
	got, ok := levelRank[level]
	if !ok {
		got = levelRank["info"]
	}
	return got >= want
}

type spanState struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Service      string
	Depth        int
}

type ctxKey struct{}

type traceBuffer struct {
	mu        sync.Mutex
	service   string
	startedAt int64
	entries   []types.TraceEntry
}

// Tracer is the process-wide tracer; one instance is shared across tasks.
type Tracer struct {
	cfg  Config
	clk  *clock.Clock
	sink *sink

	mu      sync.Mutex
	buffers map[string]*traceBuffer
}

// New builds a Tracer writing into logDir (typically
// <workspace>/log/observability). A disabled config still builds a working
// Tracer; Log simply becomes a no-op so callers never need to branch on
// whether tracing is on.
func New(cfg Config, logDir string, clk *clock.Clock) (*Tracer, error) {
	s, err := newSink(logDir, clk.Now())
	if err != nil {
		return nil, err
	}
	return &Tracer{
		cfg:     cfg,
		clk:     clk,
		sink:    s,
		buffers: make(map[string]*traceBuffer),
	}, nil
}

// Close releases the underlying sink file.
func (t *Tracer) Close() error {
	return t.sink.close()
}

// DroppedCount returns the number of trace entries dropped for exceeding
// the sink's write budget.
func (t *Tracer) DroppedCount() int64 {
	return t.sink.droppedCount()
}

func spanFromContext(ctx context.Context) (spanState, bool) {
	v := ctx.Value(ctxKey{})
	if v == nil {
		return spanState{}, false
	}
	s, ok := v.(spanState)
	return s, ok
}

// RunWithContext establishes a fresh trace context (new trace_id, root
// span_id), runs fn inside it, and returns the end-of-run report computed
// from every entry logged within the trace (including child spans).
func (t *Tracer) RunWithContext(ctx context.Context, service string, fn func(ctx context.Context) error) (*types.Report, error) {
	traceID := t.clk.NewID(clock.PrefixTrace)
	spanID := t.clk.NewID(clock.PrefixSpan)
	startedAt := t.clk.Now()

	buf := &traceBuffer{service: service, startedAt: startedAt}
	t.mu.Lock()
	t.buffers[traceID] = buf
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.buffers, traceID)
		t.mu.Unlock()
	}()

	span := spanState{TraceID: traceID, SpanID: spanID, Service: service, Depth: 0}
	childCtx := context.WithValue(ctx, ctxKey{}, span)

	err := fn(childCtx)

	return t.computeReport(buf), err
}

// RunInChildSpan inherits the caller's trace_id, mints a new span_id, and
// sets parent_span_id to the caller's span_id. Returns apperr.ErrInvalidArgument
// wrapped if ctx carries no trace context (it must run inside RunWithContext).
func (t *Tracer) RunInChildSpan(ctx context.Context, fn func(ctx context.Context) error) error {
	parent, ok := spanFromContext(ctx)
	if !ok {
		return errNoTraceContext
	}

	span := spanState{
		TraceID:      parent.TraceID,
		SpanID:       t.clk.NewID(clock.PrefixSpan),
		ParentSpanID: parent.SpanID,
		Service:      parent.Service,
		Depth:        parent.Depth + 1,
	}
	childCtx := context.WithValue(ctx, ctxKey{}, span)
	return fn(childCtx)
}

// Log appends an entry to the current trace context's buffer and writes it
// to the sink. It is a no-op if ctx carries no trace context, if tracing is
// disabled, if the entry's level is below the configured threshold, or if
// sampling rejects it.
func (t *Tracer) Log(ctx context.Context, eventType types.TraceEventType, payload any, level, functionName string, durationMs *int64, stack string) {
	span, ok := spanFromContext(ctx)
	if !ok {
		return
	}
	if !t.cfg.allows(level) {
		return
	}
	if t.cfg.Sampling < 1 && rand.Float64() >= t.cfg.Sampling {
		return
	}

	entry := types.TraceEntry{
		Timestamp:    t.clk.Now(),
		TraceID:      span.TraceID,
		SpanID:       span.SpanID,
		ParentSpanID: span.ParentSpanID,
		EventType:    eventType,
		Service:      span.Service,
		FunctionName: functionName,
		Payload:      payload,
		DurationMs:   durationMs,
		StackTrace:   stack,
	}

	t.mu.Lock()
	buf := t.buffers[span.TraceID]
	t.mu.Unlock()
	if buf != nil {
		buf.mu.Lock()
		buf.entries = append(buf.entries, entry)
		buf.mu.Unlock()
	}

	t.sink.write(entry)
}
