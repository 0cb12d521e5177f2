package hashi

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Conventional exception attribute names, per the OpenTelemetry semantic
// conventions for exceptions.
const (
	eventExceptionName   = "exception"
	attrExceptionMessage = "exception.message"
	// attrExceptionStacktrace carries the error's source chain (the causes
	// reachable through unwrapping), not a callsite stacktrace.
	attrExceptionStacktrace = "exception.stacktrace"
	attrErrorKey            = "error"
	attrChainSuffix         = ".chain"
)

// Bridge is the lifecycle interceptor: the single subscription point for
// span and event callbacks from an instrumentation front-end. It owns the
// wiring between per-span Builders and the Registry, and emits one
// immutable Record per closed span to the Exporter.
//
// All methods are safe for concurrent use across span identities. Calls for
// one span identity are expected in lifecycle order (created before
// entered/exited/recorded, closed last); the bridge tolerates violations by
// dropping the offending call rather than failing.
type Bridge struct {
	exporter Exporter
	sampler  Sampler
	registry Registry
	metrics  *MetricsBridge
	logger   *slog.Logger

	trackedInactivity        bool
	errorFieldsToExceptions  bool
	errorRecordsToExceptions bool
	errorEventsToStatus      bool
	errorEventsToExceptions  bool
}

// New constructs a Bridge. Without options it resolves parents, tracks
// timings, and discards finished records; supply WithExporter to emit them
// and WithMeterProvider to enable the metrics bridge.
func New(opts ...Option) *Bridge {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.sampler == nil {
		o.sampler = newRandSampler()
	}
	if o.registry == nil {
		o.registry = newMapRegistry()
	}

	br := &Bridge{
		exporter:                o.exporter,
		sampler:                 o.sampler,
		registry:                o.registry,
		logger:                  o.logger,
		trackedInactivity:        o.trackedInactivity,
		errorFieldsToExceptions:  o.errorFieldsToExceptions,
		errorRecordsToExceptions: o.errorRecordsToExceptions,
		errorEventsToStatus:      o.errorEventsToStatus,
		errorEventsToExceptions:  o.errorEventsToExceptions,
	}
	if o.meterProvider != nil {
		br.metrics = NewMetricsBridge(o.meterProvider, WithLogger(o.logger))
	}
	return br
}

// Metrics returns the metrics bridge, or nil when no meter provider was
// configured.
func (br *Bridge) Metrics() *MetricsBridge {
	return br.metrics
}

// NewSpan describes a span being created.
type NewSpan struct {
	Name string
	// Parent declares the linkage: zero value inherits contextually,
	// ChildOf overrides with an explicit parent, Root forces a new trace.
	Parent ParentRef
	// Fields recorded at creation. Reserved otel.* keys apply here too.
	Fields []Field
	// StartTime overrides the creation wall clock when non-zero.
	StartTime time.Time
}

// OnSpanCreated allocates the in-progress record for a new span, resolves
// its effective parent, and attaches the record to the span identity. A
// span whose parent resolution yields nothing becomes a root: this is
// normal, not an error.
func (br *Bridge) OnSpanCreated(scope *Scope, id ID, span NewSpan) {
	start := span.StartTime
	if start.IsZero() {
		start = time.Now()
	}

	parent := resolveParent(span.Parent, scope, br.registry, id)
	tid, sid, sampled := br.sampler.DecideAndAllocate(parent)

	cfg := trace.SpanContextConfig{SpanID: sid}
	if parent.IsValid() {
		cfg.TraceID = parent.TraceID()
		cfg.TraceFlags = parent.TraceFlags()
		cfg.TraceState = parent.TraceState()
	} else {
		cfg.TraceID = tid
		if sampled {
			cfg.TraceFlags = trace.FlagsSampled
		}
	}

	b := newBuilder(span.Name, trace.NewSpanContext(cfg), parent, start)
	for _, f := range span.Fields {
		br.applyField(b, f)
	}
	br.registry.Attach(id, b)
}

// OnSpanEntered pushes the span onto the scope's active stack, making it
// the implicit parent for spans created in this scope and the attribution
// target for events. Timing accumulates only between matched enter/exit
// pairs.
func (br *Bridge) OnSpanEntered(scope *Scope, id ID) {
	if scope != nil {
		scope.push(id)
	}
	if b := br.registry.Lookup(id); b != nil {
		b.enter(time.Now())
	}
}

// OnSpanExited pops the span from the scope's active stack and stamps the
// provisional end time used if the span is closed without re-entering.
func (br *Bridge) OnSpanExited(scope *Scope, id ID) {
	if scope != nil {
		scope.pop(id)
	}
	if b := br.registry.Lookup(id); b != nil {
		b.exit(time.Now())
	}
}

// OnFieldsRecorded merges fields into the span's attributes,
// last-write-wins per key. Reserved otel.* keys update the record shape
// instead. Unknown span identities are silently dropped.
func (br *Bridge) OnFieldsRecorded(id ID, fields ...Field) {
	b := br.registry.Lookup(id)
	if b == nil {
		return
	}
	for _, f := range fields {
		br.applyField(b, f)
	}
}

// applyField routes one span field: error values get the exception mapping,
// everything else goes through the reserved-key/attribute path.
func (br *Bridge) applyField(b *Builder, f Field) {
	if f.Value.Kind() == KindError {
		b.setErrorField(f.Key, f.Value, br.errorFieldsToExceptions)
		return
	}
	b.setField(f)
}

// OnFollowsFrom records a causal, non-hierarchical reference from span id
// to the span it follows. The relationship never changes the parent/child
// tree; it is recorded purely as a link on the dependent span's record.
// Either side being unknown drops the link silently.
func (br *Bridge) OnFollowsFrom(id, follows ID) {
	b := br.registry.Lookup(id)
	if b == nil {
		return
	}
	fb := br.registry.Lookup(follows)
	if fb == nil {
		return
	}
	b.addLink(fb.SpanContext(), nil)
}

// OnEvent attributes a timed sub-event to the scope's current active span.
// Events with metric-shaped fields go to the metrics bridge instead when it
// is enabled. Events with no active span are dropped — expected for events
// outside any span, never an error.
func (br *Bridge) OnEvent(scope *Scope, name string, fields ...Field) {
	if br.metrics != nil && hasMetricFields(fields) {
		br.metrics.recordEventFields(fields)
		return
	}
	if scope == nil {
		return
	}
	id, ok := scope.Current()
	if !ok {
		return
	}
	br.eventOn(id, name, time.Now(), fields)
}

// OnEventFor is OnEvent with an explicit parent span, for events the
// front-end attributes directly rather than contextually.
func (br *Bridge) OnEventFor(id ID, name string, fields ...Field) {
	if br.metrics != nil && hasMetricFields(fields) {
		br.metrics.recordEventFields(fields)
		return
	}
	br.eventOn(id, name, time.Now(), fields)
}

func (br *Bridge) eventOn(id ID, name string, ts time.Time, fields []Field) {
	b := br.registry.Lookup(id)
	if b == nil {
		return
	}

	ev := Event{Name: name, Time: ts}
	for _, f := range fields {
		switch f.Key {
		case "message":
			ev.Name = f.Value.Emit()
		case attrErrorKey:
			br.applyErrorField(b, &ev, f)
		default:
			ev.Attributes = append(ev.Attributes, f.attr())
		}
	}
	b.addEvent(ev)
}

// applyErrorField maps an event's error field onto the conventional
// exception shape and, when configured, onto the span status and the span's
// own attributes. Only unnamed events are rewritten to exception events;
// named events keep their name.
func (br *Bridge) applyErrorField(b *Builder, ev *Event, f Field) {
	msg := f.Value.Emit()

	if br.errorEventsToStatus {
		b.mergeStatus(Status{Code: codes.Error, Description: msg})
	}

	// Typed error values carry the source chain and get the full mapping.
	if f.Value.Kind() == KindError {
		chain := f.Value.errChain()
		if ev.Name == "" && br.errorEventsToExceptions {
			ev.Name = eventExceptionName
		}
		if br.errorFieldsToExceptions {
			ev.Attributes = append(ev.Attributes,
				attribute.String(attrExceptionMessage, msg),
				attribute.StringSlice(attrExceptionStacktrace, chain),
			)
		}
		if br.errorRecordsToExceptions {
			b.putExceptionAttrs(msg, chain)
		}
		ev.Attributes = append(ev.Attributes,
			attribute.String(attrErrorKey, msg),
			attribute.StringSlice(attrErrorKey+attrChainSuffix, chain),
		)
		return
	}

	switch {
	case ev.Name == "" && br.errorEventsToExceptions:
		ev.Name = eventExceptionName
		ev.Attributes = append(ev.Attributes, attribute.String(attrExceptionMessage, msg))
	case br.errorFieldsToExceptions:
		ev.Attributes = append(ev.Attributes,
			attribute.String(attrErrorKey, msg),
			attribute.String(attrExceptionMessage, msg),
		)
	default:
		ev.Attributes = append(ev.Attributes, attribute.String(attrErrorKey, msg))
	}
}

// OnSpanClosed finalizes the span: the builder is removed from the
// registry, the end time stamped, and the immutable record emitted exactly
// once. A second close for the same identity finds no builder and is a
// no-op.
func (br *Bridge) OnSpanClosed(id ID) {
	b := br.registry.Detach(id)
	if b == nil {
		return
	}
	rec := b.finalize(time.Now(), br.trackedInactivity)
	if br.exporter != nil {
		br.exporter.Export(rec)
	}
}

// SetParent re-parents a live span onto the given context, typically one
// extracted from a remote carrier after the span was already created. The
// span keeps its allocated span id but adopts the parent's trace id, flags,
// and state. No-op on unknown or closed spans or an invalid context.
func (br *Bridge) SetParent(id ID, parent trace.SpanContext) {
	if !parent.IsValid() {
		return
	}
	if b := br.registry.Lookup(id); b != nil {
		b.setParent(parent)
	}
}

// AddLink attaches a link to another trace context on a live span's
// record, with optional attributes. Invalid contexts and unknown spans are
// dropped silently.
func (br *Bridge) AddLink(id ID, sc trace.SpanContext, attrs ...attribute.KeyValue) {
	if b := br.registry.Lookup(id); b != nil {
		b.addLink(sc, attrs)
	}
}

// SetStatus sets a live span's status directly, overriding any status
// derived from error events.
func (br *Bridge) SetStatus(id ID, st Status) {
	if b := br.registry.Lookup(id); b != nil {
		b.setStatus(st)
	}
}

// AddEvent appends a timed sub-event directly to a live span, bypassing
// contextual attribution. A zero timestamp means now.
func (br *Bridge) AddEvent(id ID, name string, ts time.Time, fields ...Field) {
	if ts.IsZero() {
		ts = time.Now()
	}
	br.eventOn(id, name, ts, fields)
}

// SpanContext returns a live span's own trace context, for propagation or
// linking. ok is false when the identity is unknown or already closed.
func (br *Bridge) SpanContext(id ID) (sc trace.SpanContext, ok bool) {
	b := br.registry.Lookup(id)
	if b == nil {
		return trace.SpanContext{}, false
	}
	return b.SpanContext(), true
}

// Err returns an error field carrying the message and the source chain.
// Error fields map to the conventional exception attributes and, on events,
// can mark the span status; see the package documentation.
func Err(err error) Field {
	return Field{Key: attrErrorKey, Value: ErrorValue(err)}
}
