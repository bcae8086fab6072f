package observer

import (
	"context"
	"fmt"
	"time"

	"github.com/nevindra/scout"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// otelTracer implements scout.Tracer using OpenTelemetry. Besides spans, it
// feeds the run-level instruments: scout.SpanRun starts bump AgentRuns and
// their End records AgentDuration; scout.SpanIteration starts bump
// LoopIterations.
type otelTracer struct {
	inner trace.Tracer
	inst  *Instruments
}

// NewTracer returns a scout.Tracer backed by the global OTEL TracerProvider,
// recording run metrics on the given instruments (nil disables metrics).
// Call observer.Init() first to configure the provider; otherwise spans go to
// a no-op backend.
func NewTracer(inst *Instruments) scout.Tracer {
	return &otelTracer{inner: otel.Tracer(scopeName), inst: inst}
}

func (t *otelTracer) Start(ctx context.Context, name string, attrs ...scout.SpanAttr) (context.Context, scout.Span) {
	otelAttrs := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		otelAttrs[i] = toOTELAttr(a)
	}
	ctx, span := t.inner.Start(ctx, name, trace.WithAttributes(otelAttrs...))
	s := &otelSpan{inner: span}

	if t.inst != nil {
		switch name {
		case scout.SpanRun:
			identity := runMetricAttrs(attrs)
			t.inst.AgentRuns.Add(ctx, 1, metric.WithAttributes(identity...))
			s.duration = t.inst.AgentDuration
			s.durationAttrs = identity
			s.start = time.Now()
		case scout.SpanIteration:
			t.inst.LoopIterations.Add(ctx, 1, metric.WithAttributes(runMetricAttrs(attrs)...))
		}
	}
	return ctx, s
}

// otelSpan implements scout.Span using an OTEL trace.Span. Run spans also
// carry a duration histogram recorded at End.
type otelSpan struct {
	inner trace.Span

	duration      metric.Float64Histogram
	durationAttrs []attribute.KeyValue
	start         time.Time
	status        string
}

func (s *otelSpan) SetAttr(attrs ...scout.SpanAttr) {
	otelAttrs := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		otelAttrs[i] = toOTELAttr(a)
		if a.Key == "status" {
			s.status = fmt.Sprintf("%v", a.Value)
		}
	}
	s.inner.SetAttributes(otelAttrs...)
}

func (s *otelSpan) Error(err error) {
	s.inner.RecordError(err)
	s.inner.SetStatus(codes.Error, err.Error())
}

func (s *otelSpan) End() {
	if s.duration != nil {
		attrs := s.durationAttrs
		if s.status != "" {
			attrs = append(attrs, AttrRunStatus.String(s.status))
		}
		s.duration.Record(context.Background(),
			float64(time.Since(s.start).Milliseconds()),
			metric.WithAttributes(attrs...))
	}
	s.inner.End()
}

// toOTELAttr converts a scout.SpanAttr to an OTEL attribute.KeyValue.
func toOTELAttr(a scout.SpanAttr) attribute.KeyValue {
	switch v := a.Value.(type) {
	case string:
		return attribute.String(a.Key, v)
	case int:
		return attribute.Int(a.Key, v)
	case int64:
		return attribute.Int64(a.Key, v)
	case float64:
		return attribute.Float64(a.Key, v)
	case bool:
		return attribute.Bool(a.Key, v)
	default:
		return attribute.String(a.Key, fmt.Sprintf("%v", v))
	}
}

// runMetricAttrs projects the loop's span attributes onto the agent metric
// attribute keys.
func runMetricAttrs(attrs []scout.SpanAttr) []attribute.KeyValue {
	var out []attribute.KeyValue
	for _, a := range attrs {
		switch a.Key {
		case "session_id":
			out = append(out, AttrSessionID.String(fmt.Sprintf("%v", a.Value)))
		case "model":
			out = append(out, AttrModel.String(fmt.Sprintf("%v", a.Value)))
		case "iteration":
			if v, ok := a.Value.(int); ok {
				out = append(out, AttrIteration.Int(v))
			}
		}
	}
	return out
}

// compile-time checks
var (
	_ scout.Tracer = (*otelTracer)(nil)
	_ scout.Span   = (*otelSpan)(nil)
)
