package httpserver

import (
	"context"
	"net"
	"net/url"
	"sync"
)

// trackedListener wraps a net.Listener and counts total and active
// connections per remote host, feeding the listener gauges.
type trackedListener struct {
	net.Listener

	mu      sync.RWMutex
	name    string
	total   int
	active  int
	remotes map[string]int
}

// Accept returns the next connection wrapped so that closing it unwinds
// the accounting done here.
func (l *trackedListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return conn, err
	}
	l.opened(remoteHost(conn))
	return &trackedConn{
		listener: l,
		Conn:     conn,
	}, nil
}

// MetricName satisfies MetricProducer.
func (l *trackedListener) MetricName() string {
	return l.name + "-listener"
}

// Gauges satisfies MetricProducer.
func (l *trackedListener) Gauges(_ context.Context) map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var maxPer, minPer int
	// with nothing active both per-remote gauges should read zero
	if l.active > 0 {
		minPer = 100000
		for _, n := range l.remotes {
			if n > maxPer {
				maxPer = n
			}
			if n < minPer {
				minPer = n
			}
		}
	}
	return map[string]float64{
		"number_of_remotes":  float64(len(l.remotes)),
		"total_connections":  float64(l.total),
		"active_connections": float64(l.active),
		// how evenly the clients spread their connections
		"max_connections_per_remote": float64(maxPer),
		"min_connections_per_remote": float64(minPer),
	}
}

// remoteHost is the connection's remote host (most likely an IP), with the
// port dropped.
func remoteHost(c net.Conn) string {
	return (&url.URL{Host: c.RemoteAddr().String()}).Hostname()
}

func (l *trackedListener) opened(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.remotes == nil {
		l.remotes = make(map[string]int)
	}
	l.total++
	l.active++
	l.remotes[host]++
}

func (l *trackedListener) closed(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.active--
	l.remotes[host]--
	if l.remotes[host] == 0 {
		delete(l.remotes, host)
	}
}

// trackedConn undoes its listener's accounting when closed.
type trackedConn struct {
	net.Conn

	listener *trackedListener
}

func (c *trackedConn) Close() error {
	c.listener.closed(remoteHost(c.Conn))
	return c.Conn.Close()
}
