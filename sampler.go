package hashi

import (
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// randSampler is the default Sampler: cryptographically random identifiers,
// roots always sampled, children inheriting the parent's decision.
type randSampler struct {
	// fallback seeds time-derived ids if crypto/rand ever fails; tracing
	// keeps working with weaker ids rather than failing the caller.
	fallback atomic.Uint64
}

func newRandSampler() *randSampler {
	s := &randSampler{}
	s.fallback.Store(uint64(time.Now().UnixNano()))
	return s
}

func (s *randSampler) DecideAndAllocate(parent trace.SpanContext) (trace.TraceID, trace.SpanID, bool) {
	spanID := s.newSpanID()
	if parent.IsValid() {
		return parent.TraceID(), spanID, parent.IsSampled()
	}
	return s.newTraceID(), spanID, true
}

func (s *randSampler) newTraceID() trace.TraceID {
	var tid trace.TraceID
	for {
		if _, err := rand.Read(tid[:]); err != nil {
			binary.BigEndian.PutUint64(tid[:8], s.fallback.Add(1))
			binary.BigEndian.PutUint64(tid[8:], s.fallback.Add(1))
		}
		if tid.IsValid() {
			return tid
		}
	}
}

func (s *randSampler) newSpanID() trace.SpanID {
	var sid trace.SpanID
	for {
		if _, err := rand.Read(sid[:]); err != nil {
			binary.BigEndian.PutUint64(sid[:], s.fallback.Add(1))
		}
		if sid.IsValid() {
			return sid
		}
	}
}
