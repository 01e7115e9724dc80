// Package worker runs a work function in a supervised loop, with panic
// recovery, a span per iteration and optional pacing while there is no
// work to do. The system package uses it to poll gauge producers.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nostrkit/relayd/o11y"
)

// ErrShouldBackoff tells Run that the iteration found no work.
var ErrShouldBackoff = errors.New("should back off")

// noDelay makes the loop go around again immediately.
const noDelay = time.Duration(-1)

// Config describes one worker loop.
type Config struct {
	// Name appears on the per-iteration span and metric.
	Name string
	// NoWorkBackOff paces the loop while WorkFunc keeps reporting there is
	// nothing to do. Defaults to an exponential backoff capped at 5s.
	NoWorkBackOff backoff.BackOff
	// MaxWorkTime bounds a single WorkFunc call via its context.
	MaxWorkTime time.Duration
	// WorkFunc does one unit of work. Return ErrShouldBackoff to report an
	// idle iteration, any other error is recorded on the span and the loop
	// carries on at full speed.
	WorkFunc func(ctx context.Context) error

	waiter func(ctx context.Context, delay time.Duration)
}

// Run calls cfg.WorkFunc in a loop until ctx is cancelled.
func Run(ctx context.Context, cfg Config) {
	cfg = withDefaults(cfg)
	cfg.NoWorkBackOff.Reset()
	provider := o11y.FromContext(ctx)

	for ctx.Err() == nil {
		delay := runOnce(provider, cfg)
		if delay < 0 {
			// Work happened (or failed), go around again immediately.
			cfg.NoWorkBackOff.Reset()
			continue
		}
		cfg.waiter(ctx, delay)
	}
}

func withDefaults(cfg Config) Config {
	if cfg.waiter == nil {
		cfg.waiter = sleep
	}
	if cfg.NoWorkBackOff == nil {
		cfg.NoWorkBackOff = defaultBackOff()
	}
	return cfg
}

func sleep(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func defaultBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval: 50 * time.Millisecond,
		Multiplier:      2,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  0, // the loop never gives up
		Clock:           backoff.SystemClock,
	}
	b.Reset()
	return b
}

func runOnce(provider o11y.Provider, cfg Config) (delay time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.MaxWorkTime)
	defer cancel()

	ctx = o11y.WithProvider(ctx, provider)
	ctx, span := o11y.StartSpan(ctx, "worker loop: "+cfg.Name)
	span.RecordMetric(o11y.Timing("worker_loop", "loop_name", "result"))
	span.AddField("loop_name", cfg.Name)

	var err error
	defer o11y.End(span, &err)

	// Recover the way net/http handlers do, one bad iteration must not
	// take the whole loop down.
	defer func() {
		if r := recover(); r != nil {
			err = o11y.HandlePanic(ctx, span, r)
		}
	}()

	delay = noDelay
	err = cfg.WorkFunc(ctx)
	if errors.Is(err, ErrShouldBackoff) {
		delay = cfg.NoWorkBackOff.NextBackOff()
		err = nil
	}

	span.AddField("backoff_ms", delay.Milliseconds())
	return delay
}
