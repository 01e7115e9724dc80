// Package fakestatsd runs an in-process statsd server on a loopback UDP
// port, for asserting on the metrics the harness emits.
package fakestatsd

import (
	"bytes"
	"net"
	"strings"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
)

// Metric is one decoded statsd line. Value keeps the raw wire form of the
// value and type, "1|c|" for a count of one.
type Metric struct {
	Name  string
	Value string
	Tags  []string
}

// FakeStatsd accumulates the metrics sent to it. Point a real statsd
// client at Addr and assert on Metrics.
type FakeStatsd struct {
	conn *net.UDPConn

	mu      sync.RWMutex
	metrics []Metric
}

// New starts a server which stops listening when the test finishes.
func New(t testing.TB) *FakeStatsd {
	t.Helper()

	addr, err := net.ResolveUDPAddr("udp", "localhost:0")
	assert.Assert(t, err)

	conn, err := net.ListenUDP("udp", addr)
	assert.Assert(t, err)

	s := &FakeStatsd{conn: conn}
	go s.listen()
	t.Cleanup(func() {
		_ = s.conn.Close()
	})
	return s
}

// Addr returns the host:port the server is listening on.
func (s *FakeStatsd) Addr() string {
	return s.conn.LocalAddr().String()
}

// Metrics returns a copy of every metric received so far.
func (s *FakeStatsd) Metrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := make([]Metric, len(s.metrics))
	copy(metrics, s.metrics)
	return metrics
}

// Reset discards the metrics received so far.
func (s *FakeStatsd) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = nil
}

func (s *FakeStatsd) listen() {
	buf := make([]byte, 10000)

	for {
		n, err := s.conn.Read(buf)
		if err != nil && strings.Contains(err.Error(), "use of closed network connection") {
			return
		}

		// One datagram can carry several newline separated metrics.
		for _, line := range bytes.Split(buf[:n], []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			s.record(parse(string(line)))
		}
	}
}

func (s *FakeStatsd) record(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, m)
}

// parse splits "name:value|type|#tag1,tag2" into its parts, keeping the
// value and type section raw.
func parse(raw string) Metric {
	name, rest, _ := strings.Cut(raw, ":")
	value, rawTags, tagged := strings.Cut(rest, "#")

	var tags []string
	if tagged {
		tags = strings.Split(rawTags, ",")
	}

	return Metric{Name: name, Value: value, Tags: tags}
}
