package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// suppressedTracerNames are tracer names that are replaced with a no-op
// tracer, silencing hot-path spans that would otherwise dominate export
// volume without adding diagnostic value.
var suppressedTracerNames = map[string]bool{
	"langbridge.resultcache": true,
	"langbridge.typecache":   true,
}

// suppressedSpanNames are individual span names dropped regardless of which
// tracer started them.
var suppressedSpanNames = map[string]bool{
	"langbridge.queue.poll": true,
}

// filteringTracerProvider wraps a delegate TracerProvider, suppressing
// named tracers and individual span names that would otherwise flood the
// exporter with low-value spans.
type filteringTracerProvider struct {
	delegate trace.TracerProvider
}

// NewFilteringTracerProvider returns a TracerProvider that suppresses
// high-cardinality or low-value spans before they reach delegate.
func NewFilteringTracerProvider(delegate trace.TracerProvider) trace.TracerProvider {
	return &filteringTracerProvider{delegate: delegate}
}

func (p *filteringTracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if suppressedTracerNames[name] {
		return nooptrace.NewTracerProvider().Tracer(name)
	}

	return &filteringTracer{delegate: p.delegate.Tracer(name, opts...)}
}

type filteringTracer struct {
	delegate trace.Tracer
}

func (t *filteringTracer) Start(
	ctx context.Context, spanName string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if suppressedSpanNames[spanName] {
		return nooptrace.NewTracerProvider().Tracer("").Start(ctx, spanName, opts...)
	}

	return t.delegate.Start(ctx, spanName, opts...)
}
