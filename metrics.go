package hashi

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric field prefixes. An event field named with one of these records the
// value against the instrument named by the rest of the key.
const (
	prefixMonotonicCounter = "monotonic_counter."
	prefixCounter          = "counter."
	prefixHistogram        = "histogram."
	prefixGauge            = "gauge."
)

// instrumentationName is the scope under which bridge instruments are
// created.
const instrumentationName = "github.com/ashita-ai/hashi"

// InstrumentKind identifies the aggregation an instrument performs.
type InstrumentKind int

const (
	// InstrumentCounter only ever increases.
	InstrumentCounter InstrumentKind = iota + 1
	// InstrumentUpDownCounter can increase and decrease.
	InstrumentUpDownCounter
	// InstrumentHistogram records a distribution of observations.
	InstrumentHistogram
	// InstrumentGauge records the latest value.
	InstrumentGauge
)

func (k InstrumentKind) String() string {
	switch k {
	case InstrumentCounter:
		return "counter"
	case InstrumentUpDownCounter:
		return "up_down_counter"
	case InstrumentHistogram:
		return "histogram"
	case InstrumentGauge:
		return "gauge"
	default:
		return "unknown"
	}
}

// MetricsBridge treats specially-shaped events as metric updates against a
// cache of lazily created instruments. The cache is shared across all
// goroutines and lives for the lifetime of the bridge; entries are never
// evicted.
//
// A metric name is bound to the instrument kind of its first use. An update
// for the same name under a different kind is a configuration error: it is
// reported through the diagnostic logger and discarded without touching the
// existing instrument. Integer and floating-point updates to the same name
// feed separate typed instruments of the same kind, so keep a metric's
// numeric domain consistent if a single exported series matters.
type MetricsBridge struct {
	meter  metric.Meter
	logger *slog.Logger

	mu    sync.RWMutex
	kinds map[string]InstrumentKind
	units map[string]string

	int64Counters         map[string]metric.Int64Counter
	float64Counters       map[string]metric.Float64Counter
	int64UpDownCounters   map[string]metric.Int64UpDownCounter
	float64UpDownCounters map[string]metric.Float64UpDownCounter
	int64Histograms       map[string]metric.Int64Histogram
	float64Histograms     map[string]metric.Float64Histogram
	int64Gauges           map[string]metric.Int64Gauge
	float64Gauges         map[string]metric.Float64Gauge
}

// NewMetricsBridge constructs a metrics bridge on the given provider. Only
// the WithLogger option is consulted.
func NewMetricsBridge(mp metric.MeterProvider, opts ...Option) *MetricsBridge {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &MetricsBridge{
		meter:                 mp.Meter(instrumentationName),
		logger:                o.logger,
		kinds:                 make(map[string]InstrumentKind),
		units:                 make(map[string]string),
		int64Counters:         make(map[string]metric.Int64Counter),
		float64Counters:       make(map[string]metric.Float64Counter),
		int64UpDownCounters:   make(map[string]metric.Int64UpDownCounter),
		float64UpDownCounters: make(map[string]metric.Float64UpDownCounter),
		int64Histograms:       make(map[string]metric.Int64Histogram),
		float64Histograms:     make(map[string]metric.Float64Histogram),
		int64Gauges:           make(map[string]metric.Int64Gauge),
		float64Gauges:         make(map[string]metric.Float64Gauge),
	}
}

// Record applies one metric update. The first update for a name fixes its
// kind and unit; a conflicting kind discards the update (see the type
// docs), a differing unit is accepted but the instrument keeps the unit it
// was created with. Non-numeric values are discarded. Record never returns
// an error: metric anomalies must not reach the instrumented caller.
func (m *MetricsBridge) Record(name string, kind InstrumentKind, unit string, value Value, attrs ...attribute.KeyValue) {
	switch kind {
	case InstrumentCounter, InstrumentUpDownCounter, InstrumentHistogram, InstrumentGauge:
	default:
		// An unknown kind must not bind the name, or later legitimate
		// registrations would be rejected as conflicts.
		m.logger.Error("hashi: unknown instrument kind, update discarded",
			"metric", name, "kind", int(kind))
		return
	}
	switch value.Kind() {
	case KindInt64, KindFloat64:
	default:
		m.logger.Debug("hashi: non-numeric metric value discarded",
			"metric", name, "kind", kind.String())
		return
	}
	if !m.reserve(name, kind, unit) {
		return
	}

	ctx := context.Background()
	float := value.Kind() == KindFloat64

	switch kind {
	case InstrumentCounter:
		if float {
			lookupOrCreate(m, m.float64Counters, name,
				func() (metric.Float64Counter, error) {
					return m.meter.Float64Counter(name, metric.WithUnit(unit))
				},
				func(c metric.Float64Counter) { c.Add(ctx, value.AsFloat64(), metric.WithAttributes(attrs...)) })
		} else {
			lookupOrCreate(m, m.int64Counters, name,
				func() (metric.Int64Counter, error) {
					return m.meter.Int64Counter(name, metric.WithUnit(unit))
				},
				func(c metric.Int64Counter) { c.Add(ctx, value.AsInt64(), metric.WithAttributes(attrs...)) })
		}
	case InstrumentUpDownCounter:
		if float {
			lookupOrCreate(m, m.float64UpDownCounters, name,
				func() (metric.Float64UpDownCounter, error) {
					return m.meter.Float64UpDownCounter(name, metric.WithUnit(unit))
				},
				func(c metric.Float64UpDownCounter) { c.Add(ctx, value.AsFloat64(), metric.WithAttributes(attrs...)) })
		} else {
			lookupOrCreate(m, m.int64UpDownCounters, name,
				func() (metric.Int64UpDownCounter, error) {
					return m.meter.Int64UpDownCounter(name, metric.WithUnit(unit))
				},
				func(c metric.Int64UpDownCounter) { c.Add(ctx, value.AsInt64(), metric.WithAttributes(attrs...)) })
		}
	case InstrumentHistogram:
		if float {
			lookupOrCreate(m, m.float64Histograms, name,
				func() (metric.Float64Histogram, error) {
					return m.meter.Float64Histogram(name, metric.WithUnit(unit))
				},
				func(h metric.Float64Histogram) { h.Record(ctx, value.AsFloat64(), metric.WithAttributes(attrs...)) })
		} else {
			lookupOrCreate(m, m.int64Histograms, name,
				func() (metric.Int64Histogram, error) {
					return m.meter.Int64Histogram(name, metric.WithUnit(unit))
				},
				func(h metric.Int64Histogram) { h.Record(ctx, value.AsInt64(), metric.WithAttributes(attrs...)) })
		}
	case InstrumentGauge:
		if float {
			lookupOrCreate(m, m.float64Gauges, name,
				func() (metric.Float64Gauge, error) {
					return m.meter.Float64Gauge(name, metric.WithUnit(unit))
				},
				func(g metric.Float64Gauge) { g.Record(ctx, value.AsFloat64(), metric.WithAttributes(attrs...)) })
		} else {
			lookupOrCreate(m, m.int64Gauges, name,
				func() (metric.Int64Gauge, error) {
					return m.meter.Int64Gauge(name, metric.WithUnit(unit))
				},
				func(g metric.Int64Gauge) { g.Record(ctx, value.AsInt64(), metric.WithAttributes(attrs...)) })
		}
	}
}

// reserve binds name to kind on first use and rejects conflicting reuse.
// First writer also fixes the unit.
func (m *MetricsBridge) reserve(name string, kind InstrumentKind, unit string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.kinds[name]
	if !ok {
		m.kinds[name] = kind
		m.units[name] = unit
		return true
	}
	if existing != kind {
		m.logger.Error("hashi: metric name reused with conflicting instrument kind, update discarded",
			"metric", name, "registered_kind", existing.String(), "requested_kind", kind.String())
		return false
	}
	if unit != "" && m.units[name] != unit {
		m.logger.Debug("hashi: metric unit differs from first registration",
			"metric", name, "registered_unit", m.units[name], "requested_unit", unit)
	}
	return true
}

// lookupOrCreate is the fast-path read / double-checked write for the
// instrument caches. Creation is linearizable: two goroutines racing on a
// new name observe exactly one instrument.
func lookupOrCreate[T any](m *MetricsBridge, cache map[string]T, name string, build func() (T, error), apply func(T)) {
	m.mu.RLock()
	inst, ok := cache[name]
	m.mu.RUnlock()
	if ok {
		apply(inst)
		return
	}

	m.mu.Lock()
	inst, ok = cache[name]
	if !ok {
		var err error
		inst, err = build()
		if err != nil {
			m.mu.Unlock()
			m.logger.Error("hashi: instrument creation failed, update discarded",
				"metric", name, "error", err)
			return
		}
		cache[name] = inst
	}
	m.mu.Unlock()
	apply(inst)
}

// recordEventFields splits an event's fields into metric updates and shared
// attribute dimensions, then applies each update. One event may carry
// several metrics; all of them share the event's non-metric fields as
// attributes.
func (m *MetricsBridge) recordEventFields(fields []Field) {
	type update struct {
		name  string
		kind  InstrumentKind
		value Value
	}
	var updates []update
	var attrs []attribute.KeyValue

	for _, f := range fields {
		if name, kind, ok := splitMetricKey(f.Key); ok && isNumeric(f.Value) {
			updates = append(updates, update{name: name, kind: kind, value: f.Value})
			continue
		}
		attrs = append(attrs, f.attr())
	}
	for _, u := range updates {
		m.Record(u.name, u.kind, "", u.value, attrs...)
	}
}

// hasMetricFields reports whether any field qualifies as a metric update:
// a recognized kind prefix naming the metric, with a numeric value.
func hasMetricFields(fields []Field) bool {
	for _, f := range fields {
		if _, _, ok := splitMetricKey(f.Key); ok && isNumeric(f.Value) {
			return true
		}
	}
	return false
}

func splitMetricKey(key string) (name string, kind InstrumentKind, ok bool) {
	if name, ok = strings.CutPrefix(key, prefixMonotonicCounter); ok {
		return name, InstrumentCounter, name != ""
	}
	if name, ok = strings.CutPrefix(key, prefixCounter); ok {
		return name, InstrumentUpDownCounter, name != ""
	}
	if name, ok = strings.CutPrefix(key, prefixHistogram); ok {
		return name, InstrumentHistogram, name != ""
	}
	if name, ok = strings.CutPrefix(key, prefixGauge); ok {
		return name, InstrumentGauge, name != ""
	}
	return "", 0, false
}

func isNumeric(v Value) bool {
	return v.Kind() == KindInt64 || v.Kind() == KindFloat64
}
