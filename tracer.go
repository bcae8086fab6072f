package scout

import "context"

// Span names emitted by the agent loop and the stream handler. Tracer
// implementations may key metrics off them.
const (
	SpanRun         = "agent.run"
	SpanIteration   = "agent.loop.iteration"
	SpanToolExecute = "agent.tool.execute"
)

// Tracer creates spans for tracing agent runs, loop iterations, and tool
// executions. The observer package provides an OTEL-backed implementation;
// when no Tracer is configured, span creation is skipped.
type Tracer interface {
	// Start creates a span and returns a child context carrying it.
	// Callers must call Span.End() when the operation completes.
	Start(ctx context.Context, name string, attrs ...SpanAttr) (context.Context, Span)
}

// Span is a traced operation.
type Span interface {
	// SetAttr adds attributes after creation.
	SetAttr(attrs ...SpanAttr)
	// Error records an error and marks the span failed.
	Error(err error)
	// End completes the span. Must be called exactly once.
	End()
}

// SpanAttr is a key-value attribute attached to a span.
type SpanAttr struct {
	Key   string
	Value any
}

func StringAttr(k, v string) SpanAttr { return SpanAttr{Key: k, Value: v} }

func IntAttr(k string, v int) SpanAttr { return SpanAttr{Key: k, Value: v} }

func BoolAttr(k string, v bool) SpanAttr { return SpanAttr{Key: k, Value: v} }
