package termination

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nostrkit/relayd/o11y"
)

var ErrTerminated = errors.New("terminated")

// Handle blocks until the process receives an interrupt or termination signal,
// waits for delay to let in flight work drain, then returns ErrTerminated.
// If ctx is cancelled before any signal arrives Handle returns nil.
func Handle(ctx context.Context, delay time.Duration) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		o11y.Log(ctx, "termination: signal received",
			o11y.Field("signal", sig.String()),
			o11y.Field("delay", delay.String()),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
		return ErrTerminated
	case <-ctx.Done():
		return nil
	}
}
