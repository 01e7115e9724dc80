// Package honeycomb is the beeline backed o11y provider. Locally the harness
// usually renders spans as text or colour on stderr, CI tends to want json,
// and real deployments can send the same spans to a honeycomb server.
package honeycomb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/honeycombio/beeline-go"
	"github.com/honeycombio/beeline-go/client"
	"github.com/honeycombio/beeline-go/trace"
	"github.com/honeycombio/dynsampler-go"
	"github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"

	"github.com/nostrkit/relayd/o11y"
)

type Config struct {
	// Host and Dataset address the honeycomb ingest API.
	Host    string
	Dataset string
	// Key authorises sends. Only needed when SendTraces is set and no
	// Sender override is in place.
	Key string
	// Format picks the local rendering: "text", "colour" (or "color"),
	// "none", or anything else for json.
	Format string
	// SendTraces turns on real delivery to honeycomb.
	SendTraces bool
	// Sender replaces the real honeycomb transmission, for tests.
	Sender transmission.Sender
	// SampleTraces enables key based sampling with the rates below.
	SampleTraces  bool
	SampleKeyFunc func(map[string]interface{}) string
	SampleRates   map[string]int
	// Writer receives the local rendering, stderr if nil.
	Writer io.Writer
	// Metrics receives any metrics recorded on spans as they are sent.
	Metrics     o11y.ClosableMetricsProvider
	ServiceName string

	Debug bool
}

func (c *Config) Validate() error {
	if c.SendTraces && c.Key == "" && c.Sender == nil {
		return errors.New("honeycomb_key is required to send traces")
	}
	return nil
}

// sender assembles the full transmission stack: the upstream delivery when
// SendTraces is on, plus whatever local rendering Format asks for.
func (c *Config) sender() transmission.Sender {
	out := c.Writer
	if out == nil {
		out = os.Stderr
	}

	multi := &MultiSender{}
	if c.SendTraces {
		multi.Senders = append(multi.Senders, c.upstream())
	}
	if local := formatSender(c.Format, out); local != nil {
		multi.Senders = append(multi.Senders, local)
	}
	return multi
}

// upstream is the real honeycomb transmission, unless a test swapped in its
// own with Config.Sender.
func (c *Config) upstream() transmission.Sender {
	if c.Sender != nil {
		return c.Sender
	}
	return &transmission.Honeycomb{
		MaxBatchSize:         libhoney.DefaultMaxBatchSize,
		BatchTimeout:         libhoney.DefaultBatchTimeout,
		MaxConcurrentBatches: libhoney.DefaultMaxConcurrentBatches,
		PendingWorkCapacity:  libhoney.DefaultPendingWorkCapacity,
		UserAgentAddition:    c.ServiceName,
	}
}

// formatSender maps the Format setting to a local sender, nil for "none".
func formatSender(format string, out io.Writer) transmission.Sender {
	switch format {
	case "none":
		return nil
	case "text":
		return &TextSender{out: out}
	case "colour", "color":
		return &TextSender{out: out, colour: true}
	default: // json
		return &transmission.WriterSender{W: out}
	}
}

// New wires up beeline with the configured sender stack and returns the
// provider. Metrics recorded on spans are forwarded to conf.Metrics when the
// span ends.
func New(conf Config) o11y.Provider {
	// The error is unhelpfully always nil, libhoney's own constructors
	// drop it too.
	hc, _ := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       conf.Key,
		Dataset:      conf.Dataset,
		APIHost:      conf.Host,
		Transmission: conf.sender(),
	})

	bc := beeline.Config{
		Client:      hc,
		Debug:       conf.Debug,
		WriteKey:    conf.Key,
		ServiceName: conf.ServiceName,
	}
	conf.addHooks(&bc)
	beeline.Init(bc)

	return &provider{metricsProvider: conf.Metrics}
}

// addHooks arranges for span metrics to go out exactly once per span,
// whichever of beeline's two hooks ends up seeing it.
func (c *Config) addHooks(bc *beeline.Config) {
	emit := sendSpanMetrics(c.Metrics)

	if !c.SampleTraces {
		bc.PresendHook = emit
		return
	}

	rates := c.SampleRates
	if rates == nil {
		rates = map[string]int{}
	}
	sampler := &TraceSampler{
		KeyFunc: c.SampleKeyFunc,
		Sampler: &dynsampler.Static{Default: 1, Rates: rates},
	}
	bc.SamplerHook = func(fields map[string]interface{}) (bool, int) {
		// Metrics go out here because spans the sampler drops never
		// reach a PresendHook.
		emit(fields)
		return sampler.Hook(fields)
	}
}

type provider struct {
	metricsProvider o11y.ClosableMetricsProvider
}

func (p *provider) AddGlobalField(key string, val interface{}) {
	checkKey(key)
	client.AddField(key, val)
}

func (p *provider) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	current := trace.GetSpanFromContext(ctx)
	var next *trace.Span
	if current != nil {
		ctx, next = current.CreateAsyncChild(ctx)
	} else {
		// No active trace. Start one, and use its root as the new span
		// rather than hanging a child off an empty root.
		ctx, _ = trace.NewTrace(ctx, nil)
		next = trace.GetSpanFromContext(ctx)
	}
	next.AddField("name", name)

	return ctx, WrapSpan(next)
}

func (p *provider) GetSpan(ctx context.Context) o11y.Span {
	return WrapSpan(trace.GetSpanFromContext(ctx))
}

func (p *provider) AddField(ctx context.Context, key string, val interface{}) {
	checkKey(key)
	beeline.AddField(ctx, key, val)
}

func (p *provider) AddFieldToTrace(ctx context.Context, key string, val interface{}) {
	checkKey(key)
	beeline.AddFieldToTrace(ctx, key, val)
}

func (p *provider) Log(ctx context.Context, name string, fields ...o11y.Pair) {
	_, s := beeline.StartSpan(ctx, name)
	sp := WrapSpan(s)
	for _, field := range fields {
		sp.AddField(field.Key, field.Value)
	}
	sp.End()
}

func (p *provider) Close(_ context.Context) {
	beeline.Close()
	if p.metricsProvider != nil {
		_ = p.metricsProvider.Close()
	}
}

func (p *provider) MetricsProvider() o11y.MetricsProvider {
	return p.metricsProvider
}

// WrapSpan adapts a beeline span to the o11y.Span interface.
func WrapSpan(s *trace.Span) o11y.Span {
	if s == nil {
		return nil
	}
	return &span{span: s}
}

type span struct {
	span    *trace.Span
	metrics []o11y.Metric
}

func (s *span) AddField(key string, val interface{}) {
	checkKey(key)
	s.span.AddField("app."+key, fieldValue(val))
}

func (s *span) AddRawField(key string, val interface{}) {
	checkKey(key)
	s.span.AddField(key, fieldValue(val))
}

func (s *span) RecordMetric(metric o11y.Metric) {
	s.metrics = append(s.metrics, metric)
	// stashed as a span field for the hooks in metrics.go to fish out
	s.span.AddField(metricKey, s.metrics)
}

func (s *span) End() {
	s.span.Send()
}

// fieldValue renders error values as their message, which beats the "{}"
// most errors marshal to.
func fieldValue(val interface{}) interface{} {
	if err, ok := val.(error); ok {
		return err.Error()
	}
	return val
}

// checkKey catches field names that statsd would mangle once they become
// metric tags.
func checkKey(key string) {
	if strings.Contains(key, "-") {
		panic(fmt.Errorf("field key %q must not contain '-', use '_'", key))
	}
}
