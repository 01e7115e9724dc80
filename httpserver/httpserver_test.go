package httpserver

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"

	"golang.org/x/sync/errgroup"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/nostrkit/relayd/testing/testcontext"
)

func TestNew_ServesOverTCP(t *testing.T) {
	ctx, cancel := context.WithCancel(testcontext.Background())
	defer cancel()

	srv, err := New(ctx, Config{
		Name:    "info-server",
		Addr:    "localhost:0",
		Handler: infoHandler(),
	})
	assert.Assert(t, err)

	g, ctx := errgroup.WithContext(ctx)
	t.Cleanup(func() {
		assert.Check(t, g.Wait())
	})
	g.Go(func() error {
		return srv.Serve(ctx)
	})

	body, status := get(t, http.DefaultClient, srv.Addr(), "info")
	assert.Check(t, cmp.Equal(status, http.StatusOK))
	assert.Check(t, cmp.Equal(body, `{"name":"test-relay"}`))
}

func TestNew_ServesOverUnixSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(testcontext.Background())
	defer cancel()

	socket := filepath.Join(t.TempDir(), "admin.sock")

	srv, err := New(ctx, Config{
		Name:    "info-server",
		Addr:    socket,
		Handler: infoHandler(),
		Network: "unix",
	})
	assert.Assert(t, err)

	g, ctx := errgroup.WithContext(ctx)
	t.Cleanup(func() {
		assert.Check(t, g.Wait())
	})
	g.Go(func() error {
		return srv.Serve(ctx)
	})

	// The host part of the URL is ignored, every request lands on the socket.
	c := &http.Client{
		Transport: &http.Transport{
			DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", socket)
			},
		},
	}

	body, status := get(t, c, "localhost", "info")
	assert.Check(t, cmp.Equal(status, http.StatusOK))
	assert.Check(t, cmp.Equal(body, `{"name":"test-relay"}`))
}

func infoHandler() http.Handler {
	r := http.NewServeMux()
	r.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"name":"test-relay"}`)
	})
	return r
}

func get(t *testing.T, c *http.Client, host, path string) (string, int) {
	t.Helper()

	r, err := c.Get(fmt.Sprintf("http://%s/%s", host, path))
	assert.Assert(t, err)

	defer func() {
		assert.Assert(t, r.Body.Close())
	}()

	b, err := io.ReadAll(r.Body)
	assert.Assert(t, err)

	return string(b), r.StatusCode
}
