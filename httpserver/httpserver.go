package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nostrkit/relayd/o11y"
)

type Config struct {
	// Name of the server in o11y.
	Name string
	// Addr to listen on, host:port for tcp or a path for unix sockets.
	Addr string
	// Handler serves the requests.
	Handler http.Handler

	// Network is "tcp", "tcp4", "tcp6", "unix" or "unixpacket".
	// Empty means tcp.
	Network string
}

// HTTPServer wraps http.Server with a connection tracking listener and
// context driven graceful shutdown.
type HTTPServer struct {
	listener *trackedListener
	server   *http.Server
}

// New binds the listener. Nothing is served until Serve is called.
func New(ctx context.Context, cfg Config) (s *HTTPServer, err error) {
	_, span := o11y.StartSpan(ctx, "server: new-server "+cfg.Name)
	defer o11y.End(span, &err)

	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
	span.AddField("server_name", cfg.Name)
	span.AddField("network", cfg.Network)

	ln, err := net.Listen(cfg.Network, cfg.Addr)
	if err != nil {
		return nil, err
	}
	tracked := &trackedListener{
		Listener: ln,
		name:     cfg.Name,
	}
	span.AddField("address", tracked.Addr().String())

	return &HTTPServer{
		listener: tracked,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      cfg.Handler,
			ReadTimeout:  55 * time.Second,
			WriteTimeout: 55 * time.Second,
		},
	}, nil
}

// Serve accepts requests until ctx is cancelled, then shuts down
// gracefully, giving in-flight requests 10 seconds to finish.
func (s *HTTPServer) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.server.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// MetricsProducer exposes the listener's connection gauges.
func (s *HTTPServer) MetricsProducer() MetricProducer {
	return s.listener
}

// Addr is the resolved listen address, useful with "localhost:0".
func (s HTTPServer) Addr() string {
	return s.listener.Addr().String()
}
