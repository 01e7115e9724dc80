// Package o11y builds the full observability provider from configuration:
// honeycomb tracing, statsd metrics and rollbar error reporting wired up
// behind one o11y.Provider.
package o11y

import (
	"context"
	"fmt"
	"os"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/rollbar/rollbar-go"

	"github.com/nostrkit/relayd/config/secret"
	"github.com/nostrkit/relayd/o11y"
	"github.com/nostrkit/relayd/o11y/honeycomb"
)

type Config struct {
	Statsd            string
	RollbarToken      secret.String
	RollbarEnv        string
	RollbarServerRoot string
	HoneycombEnabled  bool
	HoneycombDataset  string
	HoneycombKey      secret.String
	SampleTraces      bool
	SampleKeyFunc     func(map[string]interface{}) string
	SampleRates       map[string]int
	Format            string
	Version           string
	Service           string
	StatsNamespace    string

	// Optional
	Mode                    string
	Debug                   bool
	RollbarDisabled         bool
	StatsdTelemetryDisabled bool
}

// Setup is the primary entrypoint to initialise the o11y system, for the
// stub relay binary and for tests alike.
//
// Processes that go through Setup more than once should call DevInit first,
// setup and teardown are then reference counted so the provider is only
// built and closed once.
func Setup(ctx context.Context, o Config) (context.Context, func(context.Context), error) {
	if coordinator != nil {
		return coordinator.setup(ctx, o)
	}
	return setup(ctx, o)
}

func setup(ctx context.Context, o Config) (context.Context, func(context.Context), error) {
	honeyConfig, err := honeycombConfig(o)
	if err != nil {
		return nil, nil, err
	}

	hostname, _ := os.Hostname()

	honeyConfig.Metrics, err = metrics(o, hostname)
	if err != nil {
		return nil, nil, err
	}

	provider := honeycomb.New(honeyConfig)
	provider.AddGlobalField("service", o.Service)
	provider.AddGlobalField("version", o.Version)
	if o.Mode != "" {
		provider.AddGlobalField("mode", o.Mode)
	}

	if o.RollbarToken != "" {
		provider = withRollbar(provider, o, hostname)
	}

	ctx = o11y.WithProvider(ctx, provider)
	return ctx, provider.Close, nil
}

func metrics(o Config, hostname string) (o11y.ClosableMetricsProvider, error) {
	if o.Statsd == "" {
		return &statsd.NoOpClient{}, nil
	}

	tags := []string{
		"service:" + o.Service,
		"version:" + o.Version,
		"hostname:" + hostname,
	}
	if o.Mode != "" {
		tags = append(tags, "mode:"+o.Mode)
	}

	opts := []statsd.Option{
		statsd.WithNamespace(o.StatsNamespace),
		statsd.WithTags(tags),
	}
	if o.StatsdTelemetryDisabled {
		opts = append(opts, statsd.WithoutTelemetry())
	}

	return statsd.New(o.Statsd, opts...)
}

func withRollbar(provider o11y.Provider, o Config, hostname string) o11y.Provider {
	client := rollbar.NewAsync(o.RollbarToken.Raw(), o.RollbarEnv, o.Version, hostname, o.RollbarServerRoot)
	client.SetEnabled(!o.RollbarDisabled)
	client.Message(rollbar.INFO, "Deployment")
	return rollbarProvider{
		Provider: provider,
		client:   client,
	}
}

// rollbarProvider layers rollbar error reporting on top of the honeycomb
// provider. HandlePanic finds the client through the RollBarClient accessor.
type rollbarProvider struct {
	o11y.Provider
	client *rollbar.Client
}

func (p rollbarProvider) Close(ctx context.Context) {
	p.Provider.Close(ctx)
	_ = p.client.Close()
}

func (p rollbarProvider) RollBarClient() *rollbar.Client {
	return p.client
}

func honeycombConfig(o Config) (honeycomb.Config, error) {
	if o.SampleKeyFunc == nil {
		// Sample on the span name and its result by default.
		o.SampleKeyFunc = func(fields map[string]interface{}) string {
			return fmt.Sprintf("%s %v", fields["name"], fields["app.result"])
		}
	}

	conf := honeycomb.Config{
		Dataset:       o.HoneycombDataset,
		Key:           o.HoneycombKey.Raw(),
		Format:        o.Format,
		SendTraces:    o.HoneycombEnabled,
		SampleTraces:  o.SampleTraces,
		SampleKeyFunc: o.SampleKeyFunc,
		SampleRates:   o.SampleRates,
		ServiceName:   o.Service,
		Debug:         o.Debug,
	}
	return conf, conf.Validate()
}
