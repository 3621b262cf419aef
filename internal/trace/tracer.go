// Package trace implements the hierarchical performance tracer: a tree of
// named spans with a bounded root-history deque and a slow-span observer,
// independent of (and mirrored onto, by callers) the OTel spans in
// internal/observability.
package trace

import (
	"context"
	"fmt"
	"sync"
	"time"

	otelattr "go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Span is a single recorded interval, possibly with children.
type Span struct {
	ID       string
	Name     string
	ParentID string
	StartMs  int64
	EndMs    int64 // 0 while active
	Metadata map[string]any
	Children []*Span
}

// Done reports whether the span has been closed.
func (s *Span) Done() bool {
	return s.EndMs != 0
}

// DurationMs returns the span's duration once closed, else 0.
func (s *Span) DurationMs() int64 {
	if !s.Done() {
		return 0
	}

	return s.EndMs - s.StartMs
}

// SlowObserver is invoked when a completed span's duration exceeds the
// configured threshold. Errors are swallowed.
type SlowObserver func(s *Span) error

// Tracer holds the active and completed span trees, plus a bounded
// root-history deque.
type Tracer struct {
	mu sync.Mutex

	now func() time.Time

	active    map[string]*Span
	completed map[string]*Span
	roots     []string // insertion order, oldest first

	maxRoots        int
	slowThresholdMs int64
	onSlow          SlowObserver

	nextID uint64

	otelTracer oteltrace.Tracer
	otelSpans  map[string]oteltrace.Span
}

// New constructs a Tracer. maxRoots bounds root-span retention (spec
// default 1000); slowThresholdMs is the duration above which onSlow fires
// for a completed span (0 disables the observer regardless of onSlow).
func New(maxRoots int, slowThresholdMs int64, onSlow SlowObserver) *Tracer {
	if maxRoots <= 0 {
		maxRoots = 1000
	}

	return &Tracer{
		now:             time.Now,
		active:          make(map[string]*Span),
		completed:       make(map[string]*Span),
		maxRoots:        maxRoots,
		slowThresholdMs: slowThresholdMs,
		onSlow:          onSlow,
	}
}

// MirrorTo causes every span started after this call, children included, to
// also be recorded as a real OTel span through tracer (nested under its
// parent's OTel span), so the spec's span tree remains visible via the same
// OTLP/Prometheus pipeline as the rest of the ambient stack.
func (t *Tracer) MirrorTo(tracer oteltrace.Tracer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.otelTracer = tracer
	if t.otelSpans == nil {
		t.otelSpans = make(map[string]oteltrace.Span)
	}
}

// SetClock overrides the time source (test hook).
func (t *Tracer) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

func (t *Tracer) nowMs() int64 {
	return t.now().UnixNano() / int64(time.Millisecond)
}

func (t *Tracer) newID() string {
	t.nextID++
	return formatID(t.nextID)
}

// Start creates and registers an active span, returning its id. parentID
// may be empty for a root span.
func (t *Tracer) Start(name string, parentID string, metadata map[string]any) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.newID()
	span := &Span{
		ID:       id,
		Name:     name,
		ParentID: parentID,
		StartMs:  t.nowMs(),
		Metadata: metadata,
	}

	t.active[id] = span

	if parentID == "" {
		t.addRootLocked(id)
	}

	if t.otelTracer != nil {
		ctx := context.Background()
		if parentSpan, ok := t.otelSpans[parentID]; ok {
			ctx = oteltrace.ContextWithSpan(ctx, parentSpan)
		}

		_, otelSpan := t.otelTracer.Start(ctx, name)
		t.otelSpans[id] = otelSpan
	}

	return id
}

// End closes the span identified by id, computing its duration and linking
// it into its parent (active or already-completed). End is idempotent on
// unknown ids.
func (t *Tracer) End(id string, metadata map[string]any) {
	t.mu.Lock()

	span, ok := t.active[id]
	if !ok {
		t.mu.Unlock()
		return
	}

	delete(t.active, id)

	span.EndMs = t.nowMs()

	if metadata != nil {
		if span.Metadata == nil {
			span.Metadata = make(map[string]any, len(metadata))
		}

		for k, v := range metadata {
			span.Metadata[k] = v
		}
	}

	t.completed[id] = span

	if parent, ok := t.active[span.ParentID]; ok {
		parent.Children = append(parent.Children, span)
	} else if parent, ok := t.completed[span.ParentID]; ok {
		parent.Children = append(parent.Children, span)
	}

	slow := t.slowThresholdMs > 0 && span.DurationMs() > t.slowThresholdMs
	observer := t.onSlow

	if otelSpan, ok := t.otelSpans[id]; ok {
		for k, v := range metadata {
			otelSpan.SetAttributes(otelattr.String(k, toAttrString(v)))
		}

		otelSpan.End()
		delete(t.otelSpans, id)
	}

	t.mu.Unlock()

	if slow && observer != nil {
		_ = observer(span)
	}
}

// addRootLocked records id as a new root span, purging the oldest root and
// its entire subtree when the history bound is exceeded. Caller must hold t.mu.
func (t *Tracer) addRootLocked(id string) {
	t.roots = append(t.roots, id)

	if len(t.roots) <= t.maxRoots {
		return
	}

	oldest := t.roots[0]
	t.roots = t.roots[1:]
	t.purgeSubtreeLocked(oldest)
}

func (t *Tracer) purgeSubtreeLocked(rootID string) {
	stack := []string{rootID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		span, ok := t.completed[id]
		delete(t.completed, id)
		delete(t.active, id)

		if !ok {
			continue
		}

		for _, child := range span.Children {
			stack = append(stack, child.ID)
		}
	}
}

// GetRecent returns up to limit of the most recently started root spans, in
// reverse insertion order (newest first). Only completed roots are returned.
func (t *Tracer) GetRecent(limit int) []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Span, 0, limit)

	for i := len(t.roots) - 1; i >= 0 && len(out) < limit; i-- {
		if span, ok := t.completed[t.roots[i]]; ok {
			out = append(out, span)
		}
	}

	return out
}

// RootCount returns the number of root ids currently retained.
func (t *Tracer) RootCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.roots)
}

func toAttrString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprint(v)
}

func formatID(n uint64) string {
	const hex = "0123456789abcdef"

	if n == 0 {
		return "0"
	}

	var buf [16]byte

	i := len(buf)
	for n > 0 {
		i--
		buf[i] = hex[n%16]
		n /= 16
	}

	return string(buf[i:])
}
