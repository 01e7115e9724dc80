package relaybin

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/nostrkit/relayd/testing/httprecorder"
	"github.com/nostrkit/relayd/testing/httprecorder/httpnetrecorder"
	"github.com/nostrkit/relayd/testing/testcontext"
)

var checksums = fmt.Sprintf(
	`366a532dab9da27aa8f69a2a68c508eb9a7f1e10f60b05a9d6ec35d3003e8d0b *%[1]s/%[2]s/relay
16fda323f6fb24c22e6e25a1fdb4cdc35d0368f2d772f656bce2442a22dd4887 *%[1]s/%[2]s/relayctl
f1e86269235a1a3a86fba9144b9b1e90f03671dcf711682a1a5d0a05fc8233fb *%[1]s/%[2]s/slow
c093b238eb12104b7b82ede652d990969de5f5e91f1f19e8bd9a7af556a4bd45 *windows/amd64/relay.exe
`, runtime.GOOS, runtime.GOARCH)

func TestDownload(t *testing.T) {
	ctx := testcontext.Background()

	const which = "/relay"
	platform := runtime.GOOS + "/" + runtime.GOARCH
	slowAttempt := 0
	mu := sync.Mutex{}
	rec := httprecorder.New()
	srv := httptest.NewServer(httpnetrecorder.Middleware(ctx, rec,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case which + "/release.txt":
				_, _ = io.WriteString(w, "2.4.1-11fca17\n")
				return
			case which + "/2.4.1-11fca17/checksums.txt":
				_, _ = io.WriteString(w, checksums)
				return
			case which + "/p.1.n-abc/checksums.txt":
				_, _ = io.WriteString(w, checksums)
				return
			case which + "/2.4.1-11fca17/" + platform + "/relay":
				_, _ = io.WriteString(w, "I am the relay to download")
				return
			case which + "/2.4.1-11fca17/" + platform + "/relayctl":
				_, _ = io.WriteString(w, "I am the control tool to download")
				return
			case which + "/p.1.n-abc/" + platform + "/relay":
				_, _ = io.WriteString(w, "I am the pinned relay to download")
				return
			case which + "/slow/checksums.txt":
				_, _ = io.WriteString(w, checksums)
				return
			case which + "/slow/" + platform + "/slow":
				mu.Lock()
				defer mu.Unlock()
				if slowAttempt == 0 {
					time.Sleep(3 * time.Second)
					slowAttempt++
				}
				_, _ = io.WriteString(w, "this is the slow file")
				return
			}
			t.Log(r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		})))
	t.Cleanup(srv.Close)

	dir, err := os.MkdirTemp("", "relaybin-test")
	assert.Assert(t, err)
	t.Cleanup(func() {
		assert.Check(t, os.RemoveAll(dir))
	})

	t.Run("Latest relay binary", func(t *testing.T) {
		path, err := Download(ctx, Config{
			BaseURL: srv.URL,
			Which:   "relay",
			Dir:     dir,
		})
		assert.Assert(t, err)

		// Check that we don't double up the which path
		assert.Check(t, !strings.Contains(path, "relay/relay/"))

		b, err := os.ReadFile(path) //nolint:gosec // it's a test file we just created
		assert.Assert(t, err)
		assert.Check(t, cmp.Equal(string(b), "I am the relay to download"))
	})

	t.Run("Bad pinned version", func(t *testing.T) {
		_, err := Download(ctx, Config{
			BaseURL: srv.URL,
			Which:   "relay",
			Pinned:  "not-a-ver",
			Dir:     dir,
		})
		assert.Check(t, cmp.ErrorContains(err, "resolve failed"))
	})

	t.Run("Good pinned version", func(t *testing.T) {
		path, err := Download(ctx, Config{
			BaseURL: srv.URL,
			Which:   "relay",
			Pinned:  "p.1.n-abc",
			Dir:     dir,
		})
		assert.Assert(t, err)

		b, err := os.ReadFile(path) //nolint:gosec // it's a test file we just created
		assert.Assert(t, err)
		assert.Check(t, cmp.Equal(string(b), "I am the pinned relay to download"))
	})

	t.Run("Sibling binary", func(t *testing.T) {
		path, err := Download(ctx, Config{
			BaseURL: srv.URL,
			Which:   "relay",
			Binary:  "relayctl",
			Dir:     dir,
		})
		assert.Assert(t, err)

		b, err := os.ReadFile(path) //nolint:gosec // it's a test file we just created
		assert.Assert(t, err)
		assert.Check(t, cmp.Equal(string(b), "I am the control tool to download"))
	})

	t.Run("Slow server with short attempt timeout", func(t *testing.T) {
		path, err := Download(ctx, Config{
			BaseURL:        srv.URL,
			Which:          "relay",
			Binary:         "slow",
			Pinned:         "slow",
			Dir:            dir,
			AttemptTimeout: 2 * time.Second,
		})
		assert.Assert(t, err)

		b, err := os.ReadFile(path) //nolint:gosec // it's a test file we just created
		assert.Assert(t, err)
		assert.Check(t, cmp.Equal(string(b), "this is the slow file"))

		fileURL, err := url.Parse(which + "/slow/" + platform + "/slow")
		assert.Assert(t, err)
		requests := rec.FindRequests("GET", *fileURL)
		assert.Check(t, cmp.Equal(2, len(requests)))
	})
}
