// Package httpnetrecorder wires an httprecorder into plain net/http test
// fakes that do not go through the gin stack.
package httpnetrecorder

import (
	"context"
	"net/http"

	"github.com/nostrkit/relayd/o11y"
	"github.com/nostrkit/relayd/testing/httprecorder"
)

// Middleware records every request before handing it to h. Recording
// failures are logged rather than failing the request, the fake should keep
// serving either way.
func Middleware(ctx context.Context, rec *httprecorder.RequestRecorder, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := rec.Record(r); err != nil {
			o11y.LogError(ctx, "httpnetrecorder: record failed", err)
		}
		h.ServeHTTP(w, r)
	})
}
