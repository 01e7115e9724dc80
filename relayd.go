package relayd

import (
	"context"
	"fmt"

	"github.com/nostrkit/relayd/o11y"
)

// Relay is one managed relay process together with its resolved binary,
// allocated port and workspace. Construct one with Start, dispose of it with
// Stop.
type Relay struct {
	binary string
	host   string
	port   int

	ws  *workspace
	sup *supervisor
}

// New launches a relay with all defaults: binary from RELAYD_EXE or the
// PATH, a free loopback port and the default startup budget.
func New(ctx context.Context) (*Relay, error) {
	return Start(ctx, Config{})
}

// Start launches a relay per the config and blocks until it accepts TCP
// connections. On any failure the spawned process is killed and the
// workspace removed before the error is returned, a failed Start never
// leaks state. A failed Start is final, callers wanting a retry construct a
// fresh relay.
func Start(ctx context.Context, cfg Config) (r *Relay, err error) {
	ctx, span := o11y.StartSpan(ctx, "relayd: start")
	defer o11y.End(span, &err)
	span.RecordMetric(o11y.Timing("relayd.start", "result"))

	cfg = cfg.withDefaults()

	binary, err := resolveBinary(cfg)
	if err != nil {
		return nil, err
	}
	span.AddField("binary", binary)

	ws, err := newWorkspace()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			ws.remove(ctx)
		}
	}()
	span.AddField("dir", ws.dir)

	port := cfg.Port
	if port == 0 {
		port, err = freePort(cfg.Host)
		if err != nil {
			return nil, err
		}
	}
	span.AddField("port", port)

	err = ws.writeConfig(cfg.Host, port, cfg.Extra)
	if err != nil {
		return nil, err
	}

	sup, err := startProcess(binary, cfg.Args, ws)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if stopErr := sup.stop(); stopErr != nil {
				o11y.LogError(ctx, "relayd: cleanup process", stopErr)
			}
		}
	}()
	span.AddField("pid", sup.cmd.Process.Pid)

	err = awaitReady(ctx, sup, joinHostPort(cfg.Host, port), cfg.StartTimeout)
	if err != nil {
		return nil, err
	}

	return &Relay{
		binary: binary,
		host:   cfg.Host,
		port:   port,
		ws:     ws,
		sup:    sup,
	}, nil
}

// URL returns the websocket address of the relay, of the form
// ws://127.0.0.1:<port>. It is non-empty on every relay Start returned.
func (r *Relay) URL() string {
	return fmt.Sprintf("ws://%s", r.Addr())
}

// Addr returns the host:port the relay listens on.
func (r *Relay) Addr() string {
	return joinHostPort(r.host, r.port)
}

// Port returns the allocated listen port.
func (r *Relay) Port() int {
	return r.port
}

// Dir returns the relay's workspace directory, holding the rendered config,
// the relay database and the log file. It is removed by Stop.
func (r *Relay) Dir() string {
	return r.ws.dir
}

// Pid returns the relay's OS process id.
func (r *Relay) Pid() int {
	return r.sup.cmd.Process.Pid
}

// Logs returns everything the relay wrote to stdout and stderr so far.
func (r *Relay) Logs() string {
	return r.sup.logs.String()
}

// Stop terminates the relay and removes its workspace. It is safe to call
// more than once, and on a relay that already died. Teardown failures are
// logged, never returned, so a cleanup path cannot mask the caller's own
// test outcome.
func (r *Relay) Stop(ctx context.Context) {
	ctx, span := o11y.StartSpan(ctx, "relayd: stop")
	defer span.End()
	span.AddField("port", r.port)

	if err := r.sup.stop(); err != nil {
		o11y.LogError(ctx, "relayd: cleanup process", err)
	}
	r.ws.remove(ctx)
}
