package relayd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// probeDialTimeout bounds a single readiness dial.
const probeDialTimeout = 500 * time.Millisecond

// awaitReady blocks until the relay accepts a TCP connection on addr, the
// relay process exits, or the startup budget is spent. The probe is a plain
// connect and close, it makes no assumption about the relay's protocol.
func awaitReady(ctx context.Context, s *supervisor, addr string, budget time.Duration) error {
	attempt := func() error {
		// A dead relay is never going to accept, fail straight away rather
		// than waiting out the budget.
		if status, exited := s.exitStatus(); exited {
			return backoff.Permanent(&ExitError{Status: status, Logs: s.logs.String()})
		}
		conn, err := net.DialTimeout("tcp", addr, probeDialTimeout)
		if err != nil {
			return err
		}
		return conn.Close()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = budget

	err := backoff.Retry(attempt, backoff.WithContext(bo, ctx))
	if err == nil {
		return nil
	}
	exitErr := &ExitError{}
	if errors.As(err, &exitErr) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w after %s: %v", ErrStartTimeout, budget, err)
}
