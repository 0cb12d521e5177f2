package hashi

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// textMapPropagator carries W3C traceparent and tracestate.
var textMapPropagator = propagation.TraceContext{}

// Inject writes the scope's current trace context into carrier as W3C
// traceparent/tracestate headers. The active span's own context wins; with
// no active span the extracted remote context is used; with neither the
// carrier is left untouched.
func (br *Bridge) Inject(scope *Scope, carrier propagation.TextMapCarrier) {
	sc := br.contextFor(scope)
	if !sc.IsValid() {
		return
	}
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	textMapPropagator.Inject(ctx, carrier)
}

// Extract reads W3C traceparent/tracestate headers from carrier. A missing
// or malformed traceparent yields the zero SpanContext; a malformed
// tracestate is dropped while the traceparent is kept.
func (br *Bridge) Extract(carrier propagation.TextMapCarrier) trace.SpanContext {
	ctx := textMapPropagator.Extract(context.Background(), carrier)
	return trace.SpanContextFromContext(ctx)
}

// ExtractInto extracts the remote context from carrier and seeds scope with
// it, so spans created under the scope without another parent join the
// remote trace.
func (br *Bridge) ExtractInto(scope *Scope, carrier propagation.TextMapCarrier) trace.SpanContext {
	sc := br.Extract(carrier)
	if sc.IsValid() {
		scope.SetRemote(sc)
	}
	return sc
}

func (br *Bridge) contextFor(scope *Scope) trace.SpanContext {
	if scope == nil {
		return trace.SpanContext{}
	}
	if id, ok := scope.Current(); ok {
		if sc, ok := br.SpanContext(id); ok {
			return sc
		}
	}
	return scope.Remote()
}
