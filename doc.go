// Package hashi bridges a span-based instrumentation front-end into the
// OpenTelemetry data model.
//
// Instrumented code creates spans once, through whatever front-end it already
// uses; hashi observes the lifecycle of those spans — creation, field
// recording, enter/exit, close — and turns each finished span into an
// immutable OpenTelemetry-shaped trace record with correct parent/child
// linkage, timing, and attributes. The front-end stays unaware of the
// tracing backend.
//
// # Components
//
//   - Bridge: the lifecycle interceptor. Front-ends deliver span and event
//     callbacks to it; it maintains one Builder per live span and emits one
//     Record per closed span to the configured Exporter.
//   - Scope: the execution-context-local active-span stack. One Scope per
//     goroutine or task; pass it explicitly or carry it in a context.Context
//     via ContextWithScope.
//   - MetricsBridge: optional. Events whose field names carry a metric
//     prefix are treated as metric updates instead of trace events.
//   - Exporter, Registry, Sampler: collaborator interfaces with in-process
//     defaults; see interfaces.go.
//
// # Basic usage
//
//	bridge := hashi.New(
//		hashi.WithExporter(exp),
//	)
//
//	scope := hashi.NewScope()
//	bridge.OnSpanCreated(scope, 1, hashi.NewSpan{Name: "handle-request"})
//	bridge.OnSpanEntered(scope, 1)
//
//	bridge.OnFieldsRecorded(1, hashi.String("user.id", "u-123"))
//	bridge.OnEvent(scope, "cache miss", hashi.String("key", "profile"))
//
//	bridge.OnSpanExited(scope, 1)
//	bridge.OnSpanClosed(1) // exports exactly one Record
//
// # Reserved fields
//
// Fields with an "otel." prefix are reserved and change the record itself
// rather than becoming attributes:
//
//   - otel.name: override the span name sent to exporters.
//   - otel.kind: set the span kind ("server", "client", "producer",
//     "consumer", "internal").
//   - otel.status_code: set the span status ("ok", "error", "unset").
//   - otel.status_message: set the status description (implies an error
//     status).
//
// # Metric events
//
// When a MeterProvider is configured, an event field named with one of the
// prefixes below is recorded against a lazily created instrument named by
// the rest of the field key. Remaining fields on the same event become
// metric attributes.
//
//	monotonic_counter.  counter that only increases
//	counter.            up/down counter
//	histogram.          histogram observation
//	gauge.              gauge set
//
// A metric name keeps the instrument kind of its first use for the lifetime
// of the process; an update under a conflicting kind is discarded and
// reported through the diagnostic logger, never to the caller.
//
// # Error fields
//
// Fields built with Err carry the error message and its unwrap source
// chain. On spans and events they record the message under "error" and the
// chain under "error.chain", and by default also the conventional
// exception.message / exception.stacktrace attributes; an unnamed event
// carrying an error becomes an "exception" event and marks the span status.
// The WithError* options control each mapping.
//
// # Error absorption
//
// No callback returns an error and none panics on bad input. Events outside
// any span, fields recorded on unknown spans, and duplicate close
// notifications are silently tolerated: instrumentation must never
// destabilize the host application.
package hashi
