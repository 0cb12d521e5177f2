package hashi

import (
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ID is the opaque span identity issued by the instrumentation front-end.
// It is only locally unique and must never be interpreted as a trace or
// span id. The zero ID is never issued.
type ID uint64

// Status is the span status of a record: a code plus an optional
// description. The description is meaningful only for error statuses.
type Status struct {
	Code        codes.Code
	Description string
}

// Event is a timed sub-event recorded on a span.
type Event struct {
	Name       string
	Time       time.Time
	Attributes []attribute.KeyValue
}

// Record is the immutable, backend-shaped representation of a finished
// span. Exactly one Record is emitted per closed span.
type Record struct {
	// SpanContext identifies this span: its trace id, own span id, flags,
	// and trace state.
	SpanContext trace.SpanContext
	// Parent is the effective parent context, or an invalid (zero) context
	// for a root span.
	Parent trace.SpanContext

	Name      string
	Kind      trace.SpanKind
	StartTime time.Time
	EndTime   time.Time
	Status    Status

	Attributes []attribute.KeyValue
	Events     []Event
	Links      []trace.Link
}

// Builder is the mutable in-progress trace record for one live span. It is
// exclusively owned by that span: the registry serializes lifecycle
// callbacks per span identity, and the internal mutex additionally makes
// the direct span operations on Bridge (SetStatus, AddLink, ...) safe to
// call from any goroutine.
type Builder struct {
	mu sync.Mutex

	spanContext trace.SpanContext
	parent      trace.SpanContext

	name      string
	kind      trace.SpanKind
	startTime time.Time
	// endTime holds the provisional end stamped by the most recent exit;
	// zero until the span has been exited at least once.
	endTime time.Time
	status  Status

	// Attribute merging is last-write-wins per key while preserving first
	// insertion order in the finished record.
	attrIndex map[attribute.Key]int
	attrs     []attribute.KeyValue

	events []Event
	links  []trace.Link

	// Busy/idle bookkeeping. Depth counts nested enters so only matched
	// enter/exit pairs accumulate time.
	enterDepth   int
	busyNanos    int64
	idleNanos    int64
	lastActivity time.Time

	finalized bool
}

func newBuilder(name string, sc, parent trace.SpanContext, start time.Time) *Builder {
	return &Builder{
		spanContext:  sc,
		parent:       parent,
		name:         name,
		kind:         trace.SpanKindInternal,
		startTime:    start,
		attrIndex:    make(map[attribute.Key]int),
		lastActivity: start,
	}
}

// SpanContext returns the span's own trace context.
func (b *Builder) SpanContext() trace.SpanContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spanContext
}

// setParent replaces the effective parent and re-derives the span's own
// context from it, keeping the allocated span id. Used by Bridge.SetParent
// for re-parenting onto a remote context before close.
func (b *Builder) setParent(parent trace.SpanContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return
	}
	b.parent = parent
	b.spanContext = b.spanContext.WithTraceID(parent.TraceID()).
		WithTraceFlags(parent.TraceFlags()).
		WithTraceState(parent.TraceState())
}

// setField applies one field: reserved otel.* keys mutate the record shape,
// everything else merges into the attribute map last-write-wins.
func (b *Builder) setField(f Field) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return
	}
	switch f.Key {
	case fieldSpanName:
		b.name = f.Value.Emit()
	case fieldSpanKind:
		if k, ok := parseSpanKind(f.Value.Emit()); ok {
			b.kind = k
		}
	case fieldStatusCode:
		b.status = parseStatus(f.Value.Emit())
	case fieldStatusMessage:
		b.status = Status{Code: codes.Error, Description: f.Value.Emit()}
	default:
		b.putAttr(f.attr())
	}
}

// setErrorField maps an error-valued span field onto attributes: always the
// field key with the message and key.chain with the source chain, plus the
// conventional exception.message/exception.stacktrace pair when
// toExceptions is set.
func (b *Builder) setErrorField(key string, v Value, toExceptions bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return
	}
	msg := v.Emit()
	chain := v.errChain()
	if toExceptions {
		b.putAttr(attribute.String(attrExceptionMessage, msg))
		b.putAttr(attribute.StringSlice(attrExceptionStacktrace, chain))
	}
	b.putAttr(attribute.String(key, msg))
	b.putAttr(attribute.StringSlice(key+attrChainSuffix, chain))
}

// putExceptionAttrs records the exception pair on the span itself, for
// error events configured to surface on the surrounding span.
func (b *Builder) putExceptionAttrs(msg string, chain []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return
	}
	b.putAttr(attribute.String(attrExceptionMessage, msg))
	b.putAttr(attribute.StringSlice(attrExceptionStacktrace, chain))
}

// putAttr requires b.mu.
func (b *Builder) putAttr(kv attribute.KeyValue) {
	if i, ok := b.attrIndex[kv.Key]; ok {
		b.attrs[i] = kv
		return
	}
	b.attrIndex[kv.Key] = len(b.attrs)
	b.attrs = append(b.attrs, kv)
}

func (b *Builder) setStatus(st Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return
	}
	b.status = st
}

// mergeStatus upgrades the status but never downgrades: an explicit Ok or
// Error already present wins over an error derived from an event field.
func (b *Builder) mergeStatus(st Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized || b.status.Code != codes.Unset {
		return
	}
	b.status = st
}

func (b *Builder) addEvent(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return
	}
	b.events = append(b.events, ev)
}

func (b *Builder) addLink(sc trace.SpanContext, attrs []attribute.KeyValue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized || !sc.IsValid() {
		return
	}
	b.links = append(b.links, trace.Link{SpanContext: sc, Attributes: attrs})
}

// enter accumulates idle time since the last activity when this is the
// outermost enter. Nested enters only increase the depth, so interleaved
// enter/exit pairs on the same span stay matched.
func (b *Builder) enter(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return
	}
	if b.enterDepth == 0 {
		b.idleNanos += now.Sub(b.lastActivity).Nanoseconds()
		b.lastActivity = now
	}
	b.enterDepth++
}

// exit accumulates busy time on the outermost exit and stamps the
// provisional end time used at close.
func (b *Builder) exit(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized || b.enterDepth == 0 {
		return
	}
	b.enterDepth--
	if b.enterDepth == 0 {
		b.busyNanos += now.Sub(b.lastActivity).Nanoseconds()
		b.lastActivity = now
	}
	b.endTime = now
}

// finalize seals the builder and returns the immutable record. The end time
// is the provisional one stamped by the last exit, or now when the span was
// never exited; it never precedes the start time. trackTimings appends the
// busy_ns/idle_ns attributes.
func (b *Builder) finalize(now time.Time, trackTimings bool) Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.finalized = true

	end := b.endTime
	if end.IsZero() {
		end = now
	}
	if end.Before(b.startTime) {
		end = b.startTime
	}

	if trackTimings {
		b.putAttr(attribute.Int64("busy_ns", b.busyNanos))
		b.putAttr(attribute.Int64("idle_ns", b.idleNanos))
	}

	attrs := make([]attribute.KeyValue, len(b.attrs))
	copy(attrs, b.attrs)
	events := make([]Event, len(b.events))
	copy(events, b.events)
	links := make([]trace.Link, len(b.links))
	copy(links, b.links)

	return Record{
		SpanContext: b.spanContext,
		Parent:      b.parent,
		Name:        b.name,
		Kind:        b.kind,
		StartTime:   b.startTime,
		EndTime:     end,
		Status:      b.status,
		Attributes:  attrs,
		Events:      events,
		Links:       links,
	}
}

// Reserved field names. Fields with these keys change the record shape
// instead of becoming attributes; they use the conventional otel.* names so
// instrumented code ports across bridges unchanged.
const (
	fieldSpanName      = "otel.name"
	fieldSpanKind      = "otel.kind"
	fieldStatusCode    = "otel.status_code"
	fieldStatusMessage = "otel.status_message"
)

func parseSpanKind(s string) (trace.SpanKind, bool) {
	switch {
	case strings.EqualFold(s, "server"):
		return trace.SpanKindServer, true
	case strings.EqualFold(s, "client"):
		return trace.SpanKindClient, true
	case strings.EqualFold(s, "producer"):
		return trace.SpanKindProducer, true
	case strings.EqualFold(s, "consumer"):
		return trace.SpanKindConsumer, true
	case strings.EqualFold(s, "internal"):
		return trace.SpanKindInternal, true
	default:
		return trace.SpanKindInternal, false
	}
}

func parseStatus(s string) Status {
	switch {
	case strings.EqualFold(s, "ok"):
		return Status{Code: codes.Ok}
	case strings.EqualFold(s, "error"):
		return Status{Code: codes.Error}
	default:
		return Status{Code: codes.Unset}
	}
}
