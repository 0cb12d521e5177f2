package hashi

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

// Option configures a Bridge.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	exporter                 Exporter
	sampler                  Sampler
	registry                 Registry
	meterProvider            metric.MeterProvider
	logger                   *slog.Logger
	trackedInactivity        bool
	errorFieldsToExceptions  bool
	errorRecordsToExceptions bool
	errorEventsToStatus      bool
	errorEventsToExceptions  bool
}

// WithExporter sets the collaborator that receives finished records.
// Without one, records are discarded (useful while wiring up
// instrumentation before an exporter exists).
func WithExporter(exp Exporter) Option {
	return func(o *resolvedOptions) { o.exporter = exp }
}

// WithSampler replaces the default sampler/id-generator (random ids, roots
// always sampled).
func WithSampler(s Sampler) Option {
	return func(o *resolvedOptions) { o.sampler = s }
}

// WithRegistry replaces the default in-memory builder side table.
func WithRegistry(r Registry) Option {
	return func(o *resolvedOptions) { o.registry = r }
}

// WithMeterProvider enables the metrics bridge: events carrying metric
// prefix fields are recorded against instruments from this provider
// instead of becoming trace events.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *resolvedOptions) { o.meterProvider = mp }
}

// WithLogger sets the structured logger for side-channel diagnostics
// (metric kind conflicts, discarded data). If not set, the default slog
// logger is used. Diagnostics never reach the instrumented caller.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithTrackedInactivity sets whether records include busy_ns (total time
// entered) and idle_ns (total time alive but not entered) attributes.
// Enabled by default.
func WithTrackedInactivity(track bool) Option {
	return func(o *resolvedOptions) { o.trackedInactivity = track }
}

// WithErrorFieldsToExceptions sets whether an error-valued field also emits
// the conventional exception.message and exception.stacktrace attributes
// alongside the plain error attribute, on the span or event carrying the
// field. Enabled by default.
func WithErrorFieldsToExceptions(enabled bool) Option {
	return func(o *resolvedOptions) { o.errorFieldsToExceptions = enabled }
}

// WithErrorRecordsToExceptions sets whether an error-valued field on an
// event additionally pushes the exception.message and exception.stacktrace
// attributes onto the surrounding span, not just the event. Enabled by
// default.
func WithErrorRecordsToExceptions(enabled bool) Option {
	return func(o *resolvedOptions) { o.errorRecordsToExceptions = enabled }
}

// WithErrorEventsToStatus sets whether an event carrying an error field
// marks the surrounding span's status as error. Enabled by default.
func WithErrorEventsToStatus(enabled bool) Option {
	return func(o *resolvedOptions) { o.errorEventsToStatus = enabled }
}

// WithErrorEventsToExceptions sets whether an unnamed event carrying an
// error field is renamed to the conventional "exception" event with an
// exception.message attribute. Enabled by default.
func WithErrorEventsToExceptions(enabled bool) Option {
	return func(o *resolvedOptions) { o.errorEventsToExceptions = enabled }
}

func defaultOptions() resolvedOptions {
	return resolvedOptions{
		trackedInactivity:        true,
		errorFieldsToExceptions:  true,
		errorRecordsToExceptions: true,
		errorEventsToStatus:      true,
		errorEventsToExceptions:  true,
	}
}
