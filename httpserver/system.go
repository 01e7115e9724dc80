package httpserver

import (
	"context"
	"fmt"

	"github.com/nostrkit/relayd/system"
)

// Load starts a server for cfg and registers its serve loop and listener
// gauges with sys, which owns shutdown ordering from then on.
func Load(ctx context.Context, cfg Config, sys *system.System) (*HTTPServer, error) {
	server, err := New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not start %q server: %w", cfg.Name, err)
	}

	sys.AddService(server.Serve)
	sys.AddMetrics(server.MetricsProducer())
	return server, nil
}
