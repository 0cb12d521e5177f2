// Package otel adapts finished hashi records to any OpenTelemetry SDK span
// exporter, so records flow through the same batch processors and OTLP
// clients as SDK-native spans.
package otel

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ashita-ai/hashi"
)

// Option configures an Exporter.
type Option func(*Exporter)

// WithResource sets the resource attached to every exported span. Defaults
// to resource.Default().
func WithResource(res *resource.Resource) Option {
	return func(e *Exporter) { e.res = res }
}

// WithScope sets the instrumentation scope attached to every exported span.
func WithScope(scope instrumentation.Scope) Option {
	return func(e *Exporter) { e.scope = scope }
}

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// Exporter forwards records to an SDK span exporter one at a time. Export
// errors are logged and swallowed: delivery problems must not propagate
// back into instrumented code.
type Exporter struct {
	exp    sdktrace.SpanExporter
	res    *resource.Resource
	scope  instrumentation.Scope
	logger *slog.Logger
}

// New wraps exp. The caller keeps ownership of exp's lifecycle; call
// Shutdown to flush and release it.
func New(exp sdktrace.SpanExporter, opts ...Option) *Exporter {
	e := &Exporter{
		exp:   exp,
		res:   resource.Default(),
		scope: instrumentation.Scope{Name: "github.com/ashita-ai/hashi"},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Export implements hashi.Exporter.
func (e *Exporter) Export(rec hashi.Record) {
	snap := e.snapshot(rec)
	if err := e.exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{snap}); err != nil {
		e.logger.Error("hashi: span export failed",
			"span", rec.Name, "trace_id", rec.SpanContext.TraceID().String(), "error", err)
	}
}

// Shutdown flushes and shuts down the wrapped exporter.
func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.exp.Shutdown(ctx)
}

func (e *Exporter) snapshot(rec hashi.Record) sdktrace.ReadOnlySpan {
	events := make([]sdktrace.Event, 0, len(rec.Events))
	for _, ev := range rec.Events {
		events = append(events, sdktrace.Event{
			Name:       ev.Name,
			Time:       ev.Time,
			Attributes: ev.Attributes,
		})
	}
	links := make([]sdktrace.Link, 0, len(rec.Links))
	for _, l := range rec.Links {
		links = append(links, sdktrace.Link{
			SpanContext: l.SpanContext,
			Attributes:  l.Attributes,
		})
	}
	stub := tracetest.SpanStub{
		Name:        rec.Name,
		SpanContext: rec.SpanContext,
		Parent:      rec.Parent,
		SpanKind:    rec.Kind,
		StartTime:   rec.StartTime,
		EndTime:     rec.EndTime,
		Attributes:  rec.Attributes,
		Events:      events,
		Links:       links,
		Status: sdktrace.Status{
			Code:        rec.Status.Code,
			Description: rec.Status.Description,
		},
		Resource:             e.res,
		InstrumentationScope: e.scope,
	}
	return stub.Snapshot()
}
