package honeycomb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/nostrkit/relayd/o11y"
)

func TestHoneycomb(t *testing.T) {
	url, events := newEventServer(t)

	h := New(Config{
		Dataset:    "test-dataset",
		Host:       url,
		SendTraces: true,
	})
	h.AddGlobalField("version", 42)

	ctx := o11y.WithProvider(context.Background(), h)
	ctx, span := o11y.StartSpan(ctx, "start-relay")
	o11y.AddFieldToTrace(ctx, "trace_key", "trace-value")
	o11y.AddField(ctx, "another_key", "span-value")
	span.AddField("span_key", "span-value")
	span.AddRawField("raw_key", "span-value")
	span.End()
	h.Close(ctx)

	got := events.all()
	assert.Assert(t, got != "", "expected to receive an event")
	assert.Check(t, cmp.Contains(got, `"version":42`))
	assert.Check(t, cmp.Contains(got, `"name":"start-relay"`))
	assert.Check(t, cmp.Contains(got, `"app.span_key":"span-value"`), "span.AddField is prefixed")
	assert.Check(t, cmp.Contains(got, `"raw_key":"span-value"`), "span.AddRawField is unprefixed")
	assert.Check(t, cmp.Contains(got, `"app.another_key":"span-value"`), "o11y.AddField is prefixed")
	assert.Check(t, cmp.Contains(got, `"app.trace_key":"trace-value"`), "o11y.AddFieldToTrace is prefixed")
}

func TestHoneycomb_ValidatesKeys(t *testing.T) {
	h := New(Config{
		Dataset:    "test-dataset",
		Host:       "invalid-url",
		SendTraces: true,
	})
	ctx := o11y.WithProvider(context.Background(), h)
	defer h.Close(ctx)

	ctx, span := o11y.StartSpan(ctx, "start-relay")
	defer span.End()

	mustPanic := func(key string, fn func()) {
		t.Helper()
		defer func() {
			t.Helper()
			err, ok := recover().(error)
			assert.Assert(t, ok, "expected a panic for key %q", key)
			assert.ErrorContains(t, err, key)
		}()
		fn()
	}

	mustPanic("bad-global-key", func() { h.AddGlobalField("bad-global-key", "value") })
	mustPanic("bad-trace-key", func() { o11y.AddFieldToTrace(ctx, "bad-trace-key", "value") })
	mustPanic("bad-ctx-key", func() { o11y.AddField(ctx, "bad-ctx-key", "value") })
	mustPanic("bad-span-key", func() { span.AddField("bad-span-key", "value") })
	mustPanic("bad-raw-key", func() { span.AddRawField("bad-raw-key", "value") })
}

func TestHoneycomb_MetricsNotConfigured(t *testing.T) {
	// Without a metrics provider the magic metrics field must still be
	// stripped before the event goes out.
	url, events := newEventServer(t)

	h := New(Config{
		Dataset:    "test-dataset",
		Host:       url,
		SendTraces: true,
	})
	h.AddGlobalField("version", 42)

	ctx, span := h.StartSpan(context.Background(), "start-relay")
	span.RecordMetric(o11y.Timing("relay.start"))
	span.End()
	h.Close(ctx)

	got := events.all()
	assert.Assert(t, got != "", "expected honeycomb to receive an event")
	assert.Check(t, !strings.Contains(got, metricKey))
}

func TestHoneycomb_Metrics(t *testing.T) {
	url, events := newEventServer(t)

	sink := &capturingMetrics{}
	h := New(Config{
		Dataset:    "test-dataset",
		Host:       url,
		SendTraces: true,
		Metrics:    sink,
	})
	h.AddGlobalField("version", 42)

	ctx, span := h.StartSpan(context.Background(), "start-relay")
	span.RecordMetric(o11y.Timing("relay.start", "relay_state", "port"))
	span.RecordMetric(o11y.Incr("relay.probe.attempt", "relay_state", "port"))
	span.RecordMetric(o11y.Duration("relay.probe.wait", "wait", "port"))
	span.AddField("relay_state", "ready")
	span.AddField("port", 4822)
	span.AddField("another_tag", "another-value")
	span.AddField("wait", time.Second)

	span.AddField("open_conns", 17.0)
	span.RecordMetric(o11y.Gauge("relay.open_conns", "open_conns"))
	span.AddField("stored", 134)
	span.AddField("dropped", 145)
	span.RecordMetric(o11y.Count("relay.events", "stored", o11y.NewTag("kind", "stored")))
	span.RecordMetric(o11y.Count("relay.events", "dropped", o11y.NewTag("kind", "dropped")))
	span.End()
	h.Close(ctx)

	assert.Assert(t, events.all() != "", "expected honeycomb to receive an event")
	assert.Check(t, !strings.Contains(events.all(), metricKey))

	assert.Assert(t, cmp.Len(sink.calls, 6))
	assert.Check(t, cmp.DeepEqual(sink.calls[0], metricCall{
		Kind:  "timer",
		Name:  "relay.start",
		Tags:  []string{"relay_state:ready", "port:4822"},
		Rate:  1,
		Value: 10,
	}, anyPositiveValue))

	assert.Check(t, cmp.DeepEqual(sink.calls[1], metricCall{
		Kind:     "count",
		Name:     "relay.probe.attempt",
		Tags:     []string{"relay_state:ready", "port:4822"},
		Rate:     1,
		ValueInt: 1,
	}))

	assert.Check(t, cmp.DeepEqual(sink.calls[2], metricCall{
		Kind:  "timer",
		Name:  "relay.probe.wait",
		Tags:  []string{"port:4822"},
		Rate:  1,
		Value: 1000,
	}))

	assert.Check(t, cmp.DeepEqual(sink.calls[3], metricCall{
		Kind:  "gauge",
		Name:  "relay.open_conns",
		Tags:  []string{},
		Rate:  1,
		Value: 17,
	}))

	assert.Check(t, cmp.DeepEqual(sink.calls[4], metricCall{
		Kind:     "count",
		Name:     "relay.events",
		Tags:     []string{"kind:stored"},
		Rate:     1,
		ValueInt: 134,
	}))

	assert.Check(t, cmp.DeepEqual(sink.calls[5], metricCall{
		Kind:     "count",
		Name:     "relay.events",
		Tags:     []string{"kind:dropped"},
		Rate:     1,
		ValueInt: 145,
	}))
}

func TestHoneycomb_ResultFields(t *testing.T) {
	t.Run("Errors mark the span", func(t *testing.T) {
		url, events := newEventServer(t)
		h := New(Config{
			Dataset:    "error-dataset",
			Host:       url,
			SendTraces: true,
		})

		_ = func() (err error) {
			_, span := h.StartSpan(context.Background(), "start-relay-failed")
			defer o11y.End(span, &err)
			return errors.New("exit status 1")
		}()
		h.Close(context.Background())

		got := events.all()
		assert.Assert(t, got != "", "expected to receive an event")
		assert.Check(t, cmp.Contains(got, `"name":"start-relay-failed"`))
		assert.Check(t, cmp.Contains(got, `"result":"error"`))
		assert.Check(t, cmp.Contains(got, `"error":"exit status 1"`))
	})

	t.Run("Success leaves no error field", func(t *testing.T) {
		url, events := newEventServer(t)
		h := New(Config{
			Dataset:    "error-dataset",
			Host:       url,
			SendTraces: true,
		})

		_, _ = func() (wsURL string, err error) {
			_, span := h.StartSpan(context.Background(), "start-relay-ok")
			defer o11y.End(span, &err)
			return "ws://127.0.0.1:4822", nil
		}()
		h.Close(context.Background())

		got := events.all()
		assert.Assert(t, got != "", "expected to receive an event")
		assert.Check(t, cmp.Contains(got, `"result":"success"`))
		assert.Check(t, !strings.Contains(got, `"error"`))
	})
}

// eventLog collects the JSON batches a provider delivers, so tests can make
// all their assertions after Close has flushed everything.
type eventLog struct {
	mu      sync.Mutex
	batches []string
}

func (l *eventLog) add(batch string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, batch)
}

func (l *eventLog) all() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.batches, "\n")
}

// newEventServer starts a server that decodes each batch posted to it and
// records the raw JSON.
func newEventServer(t *testing.T) (string, *eventLog) {
	log := &eventLog{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		reader, err := zstd.NewReader(r.Body)
		if err != nil {
			t.Error("could not decode request body:", err)
			return
		}
		defer reader.Close()

		b, err := io.ReadAll(reader)
		if err != nil {
			t.Error("could not read request body:", err)
			return
		}
		log.add(string(b))
	}))
	t.Cleanup(ts.Close)
	return ts.URL, log
}

// The timer's measured duration is not predictable, any positive value is a
// match.
var anyPositiveValue = gocmp.Options{gocmp.Comparer(func(a, b float64) bool {
	return a > 0 && b > 0
})}

type metricCall struct {
	Kind     string
	Name     string
	Value    float64
	ValueInt int64
	Tags     []string
	Rate     float64
}

type capturingMetrics struct {
	o11y.MetricsProvider
	calls []metricCall
}

func (c *capturingMetrics) record(call metricCall) error {
	c.calls = append(c.calls, call)
	return nil
}

func (c *capturingMetrics) TimeInMilliseconds(name string, value float64, tags []string, rate float64) error {
	return c.record(metricCall{Kind: "timer", Name: name, Value: value, Tags: tags, Rate: rate})
}

func (c *capturingMetrics) Gauge(name string, value float64, tags []string, rate float64) error {
	return c.record(metricCall{Kind: "gauge", Name: name, Value: value, Tags: tags, Rate: rate})
}

func (c *capturingMetrics) Count(name string, value int64, tags []string, rate float64) error {
	return c.record(metricCall{Kind: "count", Name: name, ValueInt: value, Tags: tags, Rate: rate})
}

func (c *capturingMetrics) Close() error { return nil }
