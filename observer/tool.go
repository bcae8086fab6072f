package observer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nevindra/scout"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedTool wraps a scout.Tool with OTEL instrumentation.
type ObservedTool struct {
	inner scout.Tool
	inst  *Instruments
}

// WrapTool returns an instrumented tool.
func WrapTool(inner scout.Tool, inst *Instruments) *ObservedTool {
	return &ObservedTool{inner: inner, inst: inst}
}

// WrapRegistry registers instrumented versions of every tool in src into a
// new registry, preserving registration order.
func WrapRegistry(src *scout.Registry, inst *Instruments) *scout.Registry {
	dst := scout.NewRegistry()
	for _, t := range src.All() {
		dst.Register(WrapTool(t, inst))
	}
	return dst
}

func (o *ObservedTool) Name() string                { return o.inner.Name() }
func (o *ObservedTool) Description() string         { return o.inner.Description() }
func (o *ObservedTool) Parameters() json.RawMessage { return o.inner.Parameters() }
func (o *ObservedTool) RequiresConfirmation() bool  { return o.inner.RequiresConfirmation() }

func (o *ObservedTool) Execute(ctx context.Context, args json.RawMessage, workDir string) string {
	name := o.inner.Name()
	ctx, span := o.inst.Tracer.Start(ctx, "tool.execute", trace.WithAttributes(
		AttrToolName.String(name),
	))
	defer span.End()
	start := time.Now()

	result := o.inner.Execute(ctx, args, workDir)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if scout.IsErrorResult(result) {
		status = "tool_error"
	}

	span.SetAttributes(
		AttrToolStatus.String(status),
		AttrToolResultLength.Int(len(result)),
	)

	o.inst.ToolExecutions.Add(ctx, 1, metric.WithAttributes(
		AttrToolName.String(name),
		attribute.String("status", status),
	))
	o.inst.ToolDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrToolName.String(name),
	))

	return result
}

var _ scout.Tool = (*ObservedTool)(nil)
