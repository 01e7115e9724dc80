package system

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nostrkit/relayd/o11y"
	"github.com/nostrkit/relayd/worker"
)

// MetricProducer is anything that can report instantaneous gauge values,
// most commonly a server's listener.
type MetricProducer interface {
	// MetricName is the name gauges from this producer are reported under.
	// (Name would be cleaner, but clashes in too many implementations.)
	MetricName() string

	// Gauges returns the current gauge values by name.
	Gauges(ctx context.Context) map[string]float64
}

// reportGauges returns a func in the shape errgroup.Go wants, running a
// worker loop that publishes every producer's gauges every ten seconds.
func reportGauges(ctx context.Context, producers []MetricProducer) func() error {
	return func() error {
		worker.Run(ctx, worker.Config{
			Name:          "metric-loop",
			MaxWorkTime:   time.Second,
			NoWorkBackOff: backoff.NewConstantBackOff(10 * time.Second),
			WorkFunc: func(ctx context.Context) error {
				publishGauges(ctx, producers)
				// The loop is purely periodic, always back off.
				return worker.ErrShouldBackoff
			},
		})
		return nil
	}
}

// publishGauges sends every producer's gauges to the metrics provider as
// "gauge.<producer>.<key>", with dashes in the producer name flattened to
// underscores.
func publishGauges(ctx context.Context, producers []MetricProducer) {
	metrics := o11y.FromContext(ctx).MetricsProvider()
	for _, p := range producers {
		name := strings.ReplaceAll(p.MetricName(), "-", "_")
		for key, value := range p.Gauges(ctx) {
			_ = metrics.Gauge(fmt.Sprintf("gauge.%s.%s", name, key), value, []string{}, 1)
		}
	}
}
