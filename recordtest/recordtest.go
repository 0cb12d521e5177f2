// Package recordtest provides in-memory test doubles for exercising a
// bridge: a collecting exporter and a deterministic sampler that allocates
// predictable trace and span ids.
package recordtest

import (
	"encoding/binary"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/hashi"
)

// Exporter collects finished records in memory.
type Exporter struct {
	mu      sync.Mutex
	records []hashi.Record
}

// NewExporter returns an empty collecting exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export appends rec. Safe for concurrent use.
func (e *Exporter) Export(rec hashi.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, rec)
}

// Records returns a copy of everything exported so far.
func (e *Exporter) Records() []hashi.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]hashi.Record, len(e.records))
	copy(out, e.records)
	return out
}

// Len reports how many records were exported.
func (e *Exporter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

// Reset discards collected records.
func (e *Exporter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = nil
}

// Sampler allocates sequential ids so tests can assert on exact trace and
// span identifiers. Roots get trace id 00..0n for the nth allocation; every
// span is sampled unless Drop is set.
type Sampler struct {
	mu   sync.Mutex
	next uint64

	// Drop makes every decision unsampled.
	Drop bool
}

// NewSampler returns a sampler whose first allocated id is 1.
func NewSampler() *Sampler {
	return &Sampler{}
}

// DecideAndAllocate implements hashi.Sampler.
func (s *Sampler) DecideAndAllocate(parent trace.SpanContext) (trace.TraceID, trace.SpanID, bool) {
	s.mu.Lock()
	s.next++
	n := s.next
	drop := s.Drop
	s.mu.Unlock()

	var sid trace.SpanID
	binary.BigEndian.PutUint64(sid[:], n)

	if parent.IsValid() {
		return parent.TraceID(), sid, parent.IsSampled() && !drop
	}
	var tid trace.TraceID
	binary.BigEndian.PutUint64(tid[8:], n)
	return tid, sid, !drop
}
