package system

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nostrkit/relayd/o11y"
	"github.com/nostrkit/relayd/termination"
)

// System runs a set of services as one unit. Every service shares a context
// that is cancelled on the first failure or termination signal, gauge
// producers feed a single metrics loop, and cleanups run once everything
// has stopped.
type System struct {
	group     *errgroup.Group
	ctx       context.Context
	services  []func(context.Context) error
	producers []MetricProducer
	cleanups  []func(ctx context.Context) error
}

func New(ctx context.Context) *System {
	group, ctx := errgroup.WithContext(ctx)
	return &System{
		group: group,
		ctx:   ctx,
	}
}

// swapped out in tests, where handling real signals would be unhelpful
var terminationTestHook = termination.Handle

// Run starts every added service plus the termination handler, and blocks
// until the group winds down. delay is handed to the termination handler so
// the process can linger after a stop signal while its peers notice it is
// going away.
func (s *System) Run(delay time.Duration) (err error) {
	_, uptimeSpan := o11y.StartSpan(s.ctx, "system: run")
	defer o11y.End(uptimeSpan, &err)
	uptimeSpan.RecordMetric(o11y.Timing("system.run", "result"))

	s.group.Go(func() error {
		return terminationTestHook(s.ctx, delay)
	})

	for _, f := range s.services {
		f := f // the goroutines start while the loop moves on
		s.group.Go(func() error {
			return f(s.ctx)
		})
	}

	if len(s.producers) > 0 {
		s.group.Go(reportGauges(s.ctx, s.producers))
	}

	return s.group.Wait()
}

// AddService registers a long-running func. Run starts it, and it is
// expected to stop (returning nil) once its context is cancelled.
func (s *System) AddService(svc func(ctx context.Context) error) {
	s.services = append(s.services, svc)
}

// AddMetrics registers a producer whose gauges the metrics loop publishes.
func (s *System) AddMetrics(m MetricProducer) {
	s.producers = append(s.producers, m)
}

// AddCleanup registers a func for Cleanup to call, typically closing
// something the services were using.
func (s *System) AddCleanup(c func(ctx context.Context) error) {
	s.cleanups = append(s.cleanups, c)
}

// Cleanup runs the registered cleanups in the order they were added.
// Errors are logged rather than returned, one failed cleanup must not
// stop the rest.
func (s *System) Cleanup(ctx context.Context) {
	for _, c := range s.cleanups {
		if err := c(ctx); err != nil {
			o11y.Log(ctx, "system: cleanup error", o11y.Field("error", err))
		}
	}
}
