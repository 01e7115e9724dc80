package httpclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"

	"github.com/nostrkit/relayd/o11y"
)

// HTTPError is returned when a call completes with a non 2xx status code.
type HTTPError struct {
	method       string
	route        string
	code         int
	attempts     int
	doneRetrying bool
}

var _ error = (*HTTPError)(nil)

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("the response from %s %s was %d (%s) (%d attempts)",
		e.method, e.route, e.code, http.StatusText(e.code), e.attempts)
}

// Code returns the response status code stored in this error.
func (e *HTTPError) Code() int {
	return e.code
}

// Is treats an HTTPError as an o11y warning to keep expected failures out of
// the error traces. Whilst the retry loop is still running every status is a
// warning. Once retrying is over only the common auth and not-found statuses
// stay quiet.
func (e *HTTPError) Is(target error) bool {
	if !o11y.IsWarningNoUnwrap(target) {
		return false
	}
	if !e.doneRetrying {
		return true
	}
	// 401, 403 and 404 turn up in normal operation (402 less so)
	return e.code > 400 && e.code <= 404
}

// HasStatusCode reports whether err is an HTTPError carrying one of codes.
func HasStatusCode(err error, codes ...int) bool {
	e := &HTTPError{}
	if !errors.As(err, &e) {
		return false
	}
	for _, code := range codes {
		if e.code == code {
			return true
		}
	}
	return false
}

// errorFromStatus maps a non 2xx response to an error. 5xx responses stay
// retryable, everything else ends the retry loop.
func errorFromStatus(req *http.Request, res *http.Response, route string, attempts int) error {
	herr := &HTTPError{
		method:   req.Method,
		route:    route,
		code:     res.StatusCode,
		attempts: attempts,
	}
	switch {
	case res.StatusCode >= 500:
		return herr
	case res.StatusCode >= 300:
		return backoff.Permanent(herr)
	case res.StatusCode == http.StatusNoContent:
		return backoff.Permanent(ErrNoContent)
	}
	return nil
}

// markRetriesDone flips the warning behaviour of an HTTPError once the retry
// loop has given up, so persistent failures do get traced as errors.
func markRetriesDone(err error) error {
	e := &HTTPError{}
	if errors.As(err, &e) {
		e.doneRetrying = true
		return e
	}
	return err
}
