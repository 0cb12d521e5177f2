package hashi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ashita-ai/hashi"
)

const (
	sampleTraceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	sampleTraceID     = "4bf92f3577b34da6a3ce929d0e0e4736"
	sampleSpanID      = "00f067aa0ba902b7"
)

func TestBridge_ExtractW3CContext(t *testing.T) {
	br, _ := newTestBridge()
	carrier := propagation.MapCarrier{
		"traceparent": sampleTraceparent,
		"tracestate":  "vendor=foo",
	}

	sc := br.Extract(carrier)
	require.True(t, sc.IsValid())
	assert.Equal(t, sampleTraceID, sc.TraceID().String())
	assert.Equal(t, sampleSpanID, sc.SpanID().String())
	assert.True(t, sc.IsSampled())
	assert.True(t, sc.IsRemote())
	assert.Equal(t, "vendor=foo", sc.TraceState().String())
}

func TestBridge_ExtractMalformed(t *testing.T) {
	br, _ := newTestBridge()

	sc := br.Extract(propagation.MapCarrier{"traceparent": "00-zzzz-zzzz-01"})
	assert.False(t, sc.IsValid())

	sc = br.Extract(propagation.MapCarrier{})
	assert.False(t, sc.IsValid())

	// Malformed tracestate drops the state but keeps the traceparent.
	sc = br.Extract(propagation.MapCarrier{
		"traceparent": sampleTraceparent,
		"tracestate":  "not a valid state===",
	})
	require.True(t, sc.IsValid())
	assert.Equal(t, "", sc.TraceState().String())
}

func TestBridge_ExtractedContextParentsNewSpans(t *testing.T) {
	br, exp := newTestBridge()
	scope := hashi.NewScope()

	carrier := propagation.MapCarrier{"traceparent": sampleTraceparent}
	sc := br.ExtractInto(scope, carrier)
	require.True(t, sc.IsValid())

	br.OnSpanCreated(scope, 1, hashi.NewSpan{Name: "handler"})
	br.OnSpanClosed(1)

	rec := exp.Records()[0]
	assert.Equal(t, sampleTraceID, rec.SpanContext.TraceID().String())
	assert.Equal(t, sampleSpanID, rec.Parent.SpanID().String())
	assert.True(t, rec.SpanContext.IsSampled(), "sampled flag inherited from remote")
}

func TestBridge_InjectActiveSpanWinsOverRemote(t *testing.T) {
	br, _ := newTestBridge()
	scope := hashi.NewScope()

	br.ExtractInto(scope, propagation.MapCarrier{"traceparent": sampleTraceparent})
	br.OnSpanCreated(scope, 1, hashi.NewSpan{Name: "s", Parent: hashi.Root()})
	br.OnSpanEntered(scope, 1)
	ownSC, _ := br.SpanContext(1)

	out := propagation.MapCarrier{}
	br.Inject(scope, out)

	round := br.Extract(out)
	require.True(t, round.IsValid())
	assert.Equal(t, ownSC.TraceID(), round.TraceID())
	assert.Equal(t, ownSC.SpanID(), round.SpanID())
}

func TestBridge_InjectFallsBackToRemote(t *testing.T) {
	br, _ := newTestBridge()
	scope := hashi.NewScope()
	br.ExtractInto(scope, propagation.MapCarrier{"traceparent": sampleTraceparent})

	out := propagation.MapCarrier{}
	br.Inject(scope, out)
	assert.Equal(t, sampleTraceparent, out.Get("traceparent"))
}

func TestBridge_InjectWithNoContextIsNoop(t *testing.T) {
	br, _ := newTestBridge()

	out := propagation.MapCarrier{}
	br.Inject(hashi.NewScope(), out)
	assert.Empty(t, out.Keys())

	br.Inject(nil, out)
	assert.Empty(t, out.Keys())
}
