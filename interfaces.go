package hashi

import (
	"go.opentelemetry.io/otel/trace"
)

// Exporter accepts finished trace records, one at a time. Batching, retry,
// and network transmission are the exporter's own concern; Export must not
// surface failures back into the bridge. Implementations must be safe for
// concurrent use — records for different spans may finish concurrently.
//
// The exporters/otel subpackage adapts any OpenTelemetry SDK span exporter;
// the recordtest package provides an in-memory collector for tests.
type Exporter interface {
	Export(rec Record)
}

// Registry is the side table attaching in-progress builders to span
// identities. The default in-memory implementation suffices for almost all
// uses; replace it only to observe or redirect builder storage.
//
// Implementations must be safe for concurrent use across span identities
// and must guarantee that Detach returns a given builder at most once, so
// close handling stays exactly-once even under duplicate notifications.
type Registry interface {
	// Attach stores the builder for a newly created span identity.
	Attach(id ID, b *Builder)
	// Lookup returns the builder for a live span, or nil when the identity
	// is unknown or already detached.
	Lookup(id ID) *Builder
	// Detach removes and returns the builder, or nil when already absent.
	Detach(id ID) *Builder
}

// Sampler decides sampling and allocates identifiers. It is consulted once
// per span creation: for a root span (invalid parent) it mints the trace
// id, the span id, and the sampling decision that the root's descendants
// will inherit; for a child span only the returned span id is used — trace
// id and flags propagate unchanged from the parent.
type Sampler interface {
	DecideAndAllocate(parent trace.SpanContext) (trace.TraceID, trace.SpanID, bool)
}
