package hashi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func testSpanContext(tid byte, sid byte) trace.SpanContext {
	var traceID trace.TraceID
	var spanID trace.SpanID
	traceID[15] = tid
	spanID[7] = sid
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestBuilder_ReservedFields(t *testing.T) {
	start := time.Now()
	b := newBuilder("orig", testSpanContext(1, 1), trace.SpanContext{}, start)

	b.setField(String("otel.name", "renamed"))
	b.setField(String("otel.kind", "Server"))
	b.setField(String("otel.status_code", "OK"))
	b.setField(String("user.id", "u1"))

	rec := b.finalize(start.Add(time.Millisecond), false)
	assert.Equal(t, "renamed", rec.Name)
	assert.Equal(t, trace.SpanKindServer, rec.Kind)
	assert.Equal(t, codes.Ok, rec.Status.Code)

	// Reserved keys never leak into attributes.
	m := attrMap(rec.Attributes)
	assert.NotContains(t, m, attribute.Key("otel.name"))
	assert.NotContains(t, m, attribute.Key("otel.kind"))
	assert.Contains(t, m, attribute.Key("user.id"))
}

func TestBuilder_StatusMessageImpliesError(t *testing.T) {
	b := newBuilder("s", testSpanContext(1, 1), trace.SpanContext{}, time.Now())
	b.setField(String("otel.status_message", "it broke"))

	rec := b.finalize(time.Now(), false)
	assert.Equal(t, codes.Error, rec.Status.Code)
	assert.Equal(t, "it broke", rec.Status.Description)
}

func TestBuilder_UnknownKindKeepsInternal(t *testing.T) {
	b := newBuilder("s", testSpanContext(1, 1), trace.SpanContext{}, time.Now())
	b.setField(String("otel.kind", "blimp"))

	rec := b.finalize(time.Now(), false)
	assert.Equal(t, trace.SpanKindInternal, rec.Kind)
}

func TestBuilder_AttributesLastWriteWinsKeepsOrder(t *testing.T) {
	b := newBuilder("s", testSpanContext(1, 1), trace.SpanContext{}, time.Now())
	b.setField(String("a", "1"))
	b.setField(String("b", "2"))
	b.setField(String("a", "3"))

	rec := b.finalize(time.Now(), false)
	require.Len(t, rec.Attributes, 2)
	assert.Equal(t, attribute.Key("a"), rec.Attributes[0].Key)
	assert.Equal(t, "3", rec.Attributes[0].Value.AsString())
	assert.Equal(t, attribute.Key("b"), rec.Attributes[1].Key)
}

func TestBuilder_MergeStatusNeverDowngrades(t *testing.T) {
	b := newBuilder("s", testSpanContext(1, 1), trace.SpanContext{}, time.Now())

	b.mergeStatus(Status{Code: codes.Error, Description: "first"})
	b.mergeStatus(Status{Code: codes.Error, Description: "second"})
	rec := b.finalize(time.Now(), false)
	assert.Equal(t, "first", rec.Status.Description)

	// Explicit status overrides a merged one.
	b = newBuilder("s", testSpanContext(1, 2), trace.SpanContext{}, time.Now())
	b.mergeStatus(Status{Code: codes.Error, Description: "derived"})
	b.setStatus(Status{Code: codes.Ok})
	rec = b.finalize(time.Now(), false)
	assert.Equal(t, codes.Ok, rec.Status.Code)
}

func TestBuilder_BusyIdleAccumulation(t *testing.T) {
	start := time.Unix(100, 0)
	b := newBuilder("s", testSpanContext(1, 1), trace.SpanContext{}, start)

	// idle 1s, busy 2s, idle 3s, busy 4s.
	b.enter(start.Add(1 * time.Second))
	b.exit(start.Add(3 * time.Second))
	b.enter(start.Add(6 * time.Second))
	b.exit(start.Add(10 * time.Second))

	rec := b.finalize(start.Add(10*time.Second), true)
	m := attrMap(rec.Attributes)
	require.Contains(t, m, attribute.Key("busy_ns"))
	require.Contains(t, m, attribute.Key("idle_ns"))
	assert.Equal(t, (6 * time.Second).Nanoseconds(), m["busy_ns"].AsInt64())
	assert.Equal(t, (4 * time.Second).Nanoseconds(), m["idle_ns"].AsInt64())

	// Provisional end from the last exit.
	assert.Equal(t, start.Add(10*time.Second), rec.EndTime)
}

func TestBuilder_NestedEnterExitStaysMatched(t *testing.T) {
	start := time.Unix(100, 0)
	b := newBuilder("s", testSpanContext(1, 1), trace.SpanContext{}, start)

	b.enter(start.Add(1 * time.Second))
	b.enter(start.Add(2 * time.Second)) // nested, no idle accrual
	b.exit(start.Add(3 * time.Second))  // still entered
	b.exit(start.Add(5 * time.Second))  // outermost, busy 4s

	rec := b.finalize(start.Add(5*time.Second), true)
	m := attrMap(rec.Attributes)
	assert.Equal(t, (4 * time.Second).Nanoseconds(), m["busy_ns"].AsInt64())
	assert.Equal(t, (1 * time.Second).Nanoseconds(), m["idle_ns"].AsInt64())
}

func TestBuilder_UnmatchedExitIgnored(t *testing.T) {
	start := time.Unix(100, 0)
	b := newBuilder("s", testSpanContext(1, 1), trace.SpanContext{}, start)

	b.exit(start.Add(time.Second))

	rec := b.finalize(start.Add(2*time.Second), true)
	m := attrMap(rec.Attributes)
	assert.Zero(t, m["busy_ns"].AsInt64())
	// The stray exit did not stamp a provisional end.
	assert.Equal(t, start.Add(2*time.Second), rec.EndTime)
}

func TestBuilder_TimingsDisabled(t *testing.T) {
	b := newBuilder("s", testSpanContext(1, 1), trace.SpanContext{}, time.Now())
	b.enter(time.Now())
	b.exit(time.Now())

	rec := b.finalize(time.Now(), false)
	m := attrMap(rec.Attributes)
	assert.NotContains(t, m, attribute.Key("busy_ns"))
	assert.NotContains(t, m, attribute.Key("idle_ns"))
}

func TestBuilder_EndNeverBeforeStart(t *testing.T) {
	start := time.Unix(100, 0)
	b := newBuilder("s", testSpanContext(1, 1), trace.SpanContext{}, start)

	rec := b.finalize(start.Add(-time.Second), false)
	assert.Equal(t, start, rec.EndTime)
}

func TestBuilder_WritesAfterFinalizeDropped(t *testing.T) {
	b := newBuilder("s", testSpanContext(1, 1), trace.SpanContext{}, time.Now())
	_ = b.finalize(time.Now(), false)

	b.setField(String("late", "x"))
	b.addEvent(Event{Name: "late"})
	b.setStatus(Status{Code: codes.Error})

	rec := b.finalize(time.Now(), false)
	assert.Empty(t, rec.Attributes)
	assert.Empty(t, rec.Events)
	assert.Equal(t, codes.Unset, rec.Status.Code)
}

func TestBuilder_SetParentRederivesContext(t *testing.T) {
	b := newBuilder("s", testSpanContext(1, 1), trace.SpanContext{}, time.Now())
	ownSpanID := b.SpanContext().SpanID()

	remote := testSpanContext(9, 9)
	b.setParent(remote)

	sc := b.SpanContext()
	assert.Equal(t, remote.TraceID(), sc.TraceID())
	assert.Equal(t, ownSpanID, sc.SpanID(), "span id survives re-parenting")
	assert.Equal(t, remote.TraceFlags(), sc.TraceFlags())
}

func TestBuilder_AddLinkRejectsInvalid(t *testing.T) {
	b := newBuilder("s", testSpanContext(1, 1), trace.SpanContext{}, time.Now())
	b.addLink(trace.SpanContext{}, nil)
	b.addLink(testSpanContext(2, 2), []attribute.KeyValue{attribute.Bool("x", true)})

	rec := b.finalize(time.Now(), false)
	require.Len(t, rec.Links, 1)
	assert.Equal(t, testSpanContext(2, 2).SpanID(), rec.Links[0].SpanContext.SpanID())
}
