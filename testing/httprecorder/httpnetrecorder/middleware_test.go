package httpnetrecorder_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/nostrkit/relayd/testing/httprecorder"
	"github.com/nostrkit/relayd/testing/httprecorder/httpnetrecorder"
	"github.com/nostrkit/relayd/testing/testcontext"
)

func TestMiddleware(t *testing.T) {
	ctx := testcontext.Background()
	rec := httprecorder.New()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"name":"test-relay"}`)
	})
	srv := httptest.NewServer(httpnetrecorder.Middleware(ctx, rec, h))
	t.Cleanup(srv.Close)

	res, err := http.Get(srv.URL + "/info")
	assert.Assert(t, err)
	t.Cleanup(func() {
		assert.Check(t, res.Body.Close())
	})
	body, err := io.ReadAll(res.Body)
	assert.Check(t, err)
	assert.Check(t, cmp.Equal(`{"name":"test-relay"}`, string(body)))

	t.Run("The handler response arrived and the request was recorded", func(t *testing.T) {
		assert.Check(t, cmp.DeepEqual(rec.AllRequests(), []httprecorder.Request{
			{
				Method: "GET",
				URL:    url.URL{Path: "/info"},
				Header: http.Header{
					"Accept-Encoding": {"gzip"},
					"User-Agent":      {"Go-http-client/1.1"},
				},
				Body: []byte{},
			},
		}))
	})
}
