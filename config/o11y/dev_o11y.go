package o11y

import (
	"context"
	"sync"

	"github.com/nostrkit/relayd/o11y"
)

// DevInit switches Setup into reference-counted mode. Call it before the
// first Setup in processes that initialise o11y more than once, such as
// test binaries where every package does its own Setup. It exists so the
// package does not need an init().
func DevInit() {
	coordinator = &setupCoordinator{}
}

var coordinator *setupCoordinator

// setupCoordinator makes repeated Setup calls share one provider (keeping
// the race detector happy about beeline's globals) and makes only the last
// of the returned cleanup functions do the real teardown.
type setupCoordinator struct {
	mu sync.Mutex

	refs      int
	provider  o11y.Provider
	realClose func(context.Context)
}

func (c *setupCoordinator) setup(ctx context.Context, o Config) (context.Context, func(context.Context), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs > 0 {
		ctx = o11y.WithProvider(ctx, c.provider)
		c.refs++
		return ctx, c.close, nil
	}

	ctx, cleanup, err := setup(ctx, o)
	if err != nil {
		return ctx, nil, err
	}
	c.realClose = cleanup
	c.provider = o11y.FromContext(ctx)
	c.refs++
	return ctx, c.close, nil
}

func (c *setupCoordinator) close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs--
	if c.refs == 0 {
		c.realClose(ctx)
	}
}
