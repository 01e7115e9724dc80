// Package o11y provides tracing and metrics for the harness and anything
// built on top of it. A Provider is carried in the context, so library code
// can trace itself without caring which backend is wired up, and tests can
// swap in fakes.
package o11y

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/rollbar/rollbar-go"
)

type Provider interface {
	// AddGlobalField adds data to every span the process produces,
	// eg. version, service, hostname
	AddGlobalField(key string, val interface{})

	// StartSpan opens a span representing a unit of work.
	//
	// name should be short and human readable, with just enough detail to
	// tell this work apart from its neighbours.
	//
	// The caller must call End, usually via defer:
	//
	//   ctx, span := o11y.StartSpan(ctx, "relayd: start")
	//   defer span.End()
	StartSpan(ctx context.Context, name string) (context.Context, Span)

	// GetSpan returns the active span from the context, or nil if there is none.
	GetSpan(ctx context.Context) Span

	// AddField attaches application-level information to the currently
	// active span. The field name is prefixed with "app.".
	AddField(ctx context.Context, key string, val interface{})

	// AddFieldToTrace attaches information to the root span, where it is
	// propagated onto every current and future child span,
	// eg. relay_url, workspace, binary
	AddFieldToTrace(ctx context.Context, key string, val interface{})

	// Log emits a point-in-time event, a span with no duration.
	Log(ctx context.Context, name string, fields ...Pair)

	Close(ctx context.Context)

	// MetricsProvider exposes the raw metrics backend for callers that
	// need to emit metrics outside of any span.
	MetricsProvider() MetricsProvider
}

type Span interface {
	// AddField attaches application-level information to the span.
	// The field name is prefixed with "app.".
	AddField(key string, val interface{})

	// AddRawField attaches information to the span without the app. prefix.
	// It is meant for library and plumbing code; application code should
	// prefer AddField to avoid clashing with the well known field names,
	// eg. result, http.status_code, db.system
	//
	// The opentelemetry semantic conventions are a good source of names:
	// https://github.com/open-telemetry/opentelemetry-specification/tree/7ae3d066c95c716ef3086228ef955d84ba03ac88/specification/trace/semantic_conventions
	AddRawField(key string, val interface{})

	// RecordMetric asks the provider to emit a metric when the span ends.
	RecordMetric(metric Metric)

	// End closes the span, fixing its duration and handing it to the
	// provider. The span must not be used afterwards.
	End()
}

// Pair is one piece of metadata attached to a span.
type Pair struct {
	Key   string
	Value interface{}
}

// Field returns a new metadata pair.
func Field(key string, value interface{}) Pair {
	return Pair{Key: key, Value: value}
}

type providerKey struct{}

// WithProvider returns a child context carrying the Provider, for retrieval
// with FromContext.
func WithProvider(ctx context.Context, p Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

// FromContext returns the provider stored in the context. Contexts without a
// provider get a noop provider back, so callers never need a nil check.
func FromContext(ctx context.Context) Provider {
	provider, ok := ctx.Value(providerKey{}).(Provider)
	if !ok {
		return defaultProvider
	}
	return provider
}

// StartSpan opens a span via the provider in the context.
func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return FromContext(ctx).StartSpan(ctx, name)
}

// Log emits a point-in-time event via the provider in the context.
func Log(ctx context.Context, name string, fields ...Pair) {
	FromContext(ctx).Log(ctx, name, fields...)
}

// LogError emits a point-in-time event carrying an error.
func LogError(ctx context.Context, name string, err error, fields ...Pair) {
	_, span := StartSpan(ctx, name)
	for _, f := range fields {
		span.AddField(f.Key, f.Value)
	}
	AddResultToSpan(span, err)
	span.End()
}

// AddField attaches a field to the currently active span.
func AddField(ctx context.Context, key string, val interface{}) {
	FromContext(ctx).AddField(ctx, key, val)
}

// AddFieldToTrace attaches a field to the root span, and hence to every
// child span in the trace.
func AddFieldToTrace(ctx context.Context, key string, val interface{}) {
	FromContext(ctx).AddFieldToTrace(ctx, key, val)
}

// End completes a span, using AddResultToSpan to fill in the error and
// result fields first.
//
// Capture the returned error as shown in the doc example:
//
//	defer o11y.End(span, &err)
//
// Taking a pointer to the error interface means the defer can be set up
// immediately after StartSpan. The deferred call captures the address of the
// named return value, later assignments land in the pointed-to data, and
// when End finally dereferences it the most recent error is seen.
func End(span Span, err *error) {
	var actualErr error
	if err != nil {
		actualErr = *err
	}
	AddResultToSpan(span, actualErr)
	span.End()
}

// AddResultToSpan inspects a possibly nil error and sets the span's "error"
// and "result" fields to match.
func AddResultToSpan(span Span, err error) {
	switch {
	case IsWarning(err):
		span.AddRawField("warning", err.Error())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Cancellation and deadlines happen in every shutdown and timeout
		// path. Recording them as errors buries the real failures.
		span.AddRawField("result", "canceled")
		span.AddRawField("warning", err.Error())
		return
	case err != nil:
		span.AddRawField("result", "error")
		span.AddRawField("error", err.Error())
		return
	}
	span.AddRawField("result", "success")
}

type MetricType string

const (
	MetricTimer = "timer"
	MetricGauge = "gauge"
	MetricCount = "count"
)

// Metric describes a metric to derive from a span when it ends. Field names
// the span field the value is read from, and TagFields lists span fields to
// copy in as tags.
type Metric struct {
	Type MetricType
	Name string
	// Field holding the value, ignored for Incr.
	Field string
	// FixedTag is attached as-is, independent of any span field.
	FixedTag  *Tag
	TagFields []string
}

type Tag struct {
	Name  string
	Value interface{}
}

func NewTag(name string, value interface{}) *Tag {
	return &Tag{Name: name, Value: value}
}

// Timing emits the span's own duration as a timer metric.
func Timing(name string, fields ...string) Metric {
	return Metric{Type: MetricTimer, Name: name, Field: "duration_ms", TagFields: fields}
}

// Duration emits a timer metric from the named span field.
func Duration(name string, valueField string, fields ...string) Metric {
	return Metric{Type: MetricTimer, Name: name, Field: valueField, TagFields: fields}
}

// Incr emits a count metric of one.
func Incr(name string, fields ...string) Metric {
	return Metric{Type: MetricCount, Name: name, TagFields: fields}
}

// Gauge emits a gauge metric from the named span field.
func Gauge(name string, valueField string, tagFields ...string) Metric {
	return Metric{
		Type:      MetricGauge,
		Name:      name,
		Field:     valueField,
		TagFields: tagFields,
	}
}

// Count emits a count metric from the named span field.
func Count(name string, valueField string, fixedTag *Tag, tagFields ...string) Metric {
	return Metric{
		Type:      MetricCount,
		Name:      name,
		Field:     valueField,
		FixedTag:  fixedTag,
		TagFields: tagFields,
	}
}

// MetricsProvider is the subset of the statsd client the o11y providers use.
// The method shapes are statsd's, so the real client satisfies it directly.
type MetricsProvider interface {
	// Histogram is like TimeInMilliseconds but for arbitrary values,
	// aggregated agent side.
	Histogram(name string, value float64, tags []string, rate float64) error
	// TimeInMilliseconds records how long something took.
	TimeInMilliseconds(name string, value float64, tags []string, rate float64) error
	// Gauge records the current level of some quantity.
	Gauge(name string, value float64, tags []string, rate float64) error
	// Count adds to a counter.
	Count(name string, value int64, tags []string, rate float64) error
}

type ClosableMetricsProvider interface {
	MetricsProvider
	io.Closer
}

var defaultProvider = &noopProvider{}

type noopProvider struct{}

func (c *noopProvider) AddGlobalField(string, interface{}) {}

func (c *noopProvider) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &noopSpan{}
}

func (c *noopProvider) GetSpan(context.Context) Span {
	return &noopSpan{}
}

func (c *noopProvider) AddField(context.Context, string, interface{}) {}

func (c *noopProvider) AddFieldToTrace(context.Context, string, interface{}) {}

func (c *noopProvider) Close(context.Context) {}

func (c *noopProvider) Log(context.Context, string, ...Pair) {}

func (c *noopProvider) MetricsProvider() MetricsProvider {
	return &statsd.NoOpClient{}
}

type noopSpan struct{}

func (s *noopSpan) AddField(key string, val interface{})    {}
func (s *noopSpan) AddRawField(key string, val interface{}) {}
func (s *noopSpan) RecordMetric(metric Metric)              {}
func (s *noopSpan) End()                                    {}

// HandlePanic records a recovered panic on the span, emits the panics metric,
// and reports it when the provider carries a rollbar client.
func HandlePanic(ctx context.Context, span Span, panic interface{}) (err error) {
	err = fmt.Errorf("panic handled: %+v", panic)
	span.AddRawField("panic", panic)
	span.AddRawField("has_panicked", "true")
	span.AddRawField("stack", string(debug.Stack()))
	span.RecordMetric(Incr("panics", "name"))

	provider := FromContext(ctx)
	rollable, ok := provider.(rollbarAble)
	if !ok {
		return err
	}
	rollable.RollBarClient().LogPanic(panic, true)
	return err
}

type rollbarAble interface {
	RollBarClient() *rollbar.Client
}
