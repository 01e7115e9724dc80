// Package httpclient is an o11y instrumented HTTP client for the services the
// harness talks to, such as relay release hosts. Calls are traced, timed and
// retried: 5xx responses are retried with exponential backoff, and after a 429
// the client holds off for a cooling-down period rather than hammering a
// server that asked it to go away.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nostrkit/relayd/o11y"
)

const contentTypeJSON = "application/json; charset=utf-8"

// rateLimitHold is how long the client refuses to send after a 429 response.
const rateLimitHold = 10 * time.Second

var (
	// ErrNoContent is returned for 204 responses. It is a warning since an
	// empty result is routine for many callers.
	ErrNoContent = o11y.NewWarning("no content")

	// ErrRateLimited is returned without contacting the server whilst the
	// client is waiting out a 429.
	ErrRateLimited = errors.New("waiting out server rate limit")
)

// Config holds the settings for a Client.
type Config struct {
	// Name identifies the client in spans and metrics.
	Name string
	// BaseURL is prefixed onto every request route.
	BaseURL string
	// AcceptType, when set, is sent as the Accept header on every request.
	AcceptType string
	// Timeout bounds an entire Call including retries.
	// A zero Timeout means the client keeps retrying indefinitely.
	Timeout time.Duration
	// MaxConnectionsPerHost sizes the connection pool, defaulting to 10.
	MaxConnectionsPerHost int
}

// Client makes traced HTTP calls with retries. Use New to construct one.
type Client struct {
	name        string
	baseURL     string
	acceptType  string
	retryBudget time.Duration
	httpClient  *http.Client

	mu            sync.RWMutex
	rateLimitedAt time.Time

	now func() time.Time // test hook
}

// New returns a client ready to make calls against cfg.BaseURL.
func New(cfg Config) *Client {
	if cfg.MaxConnectionsPerHost == 0 {
		cfg.MaxConnectionsPerHost = 10
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxConnsPerHost = cfg.MaxConnectionsPerHost
	tr.MaxIdleConnsPerHost = cfg.MaxConnectionsPerHost

	return &Client{
		name:        cfg.Name,
		baseURL:     cfg.BaseURL,
		acceptType:  cfg.AcceptType,
		retryBudget: cfg.Timeout,
		httpClient:  &http.Client{Transport: tr},
		now:         time.Now,
	}
}

// CloseIdleConnections exists for tests that assert on connection reuse.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Decoder consumes the response body of a successful call.
type Decoder func(r io.Reader) error

// NewJSONDecoder returns a Decoder that unmarshals the response body into out.
func NewJSONDecoder(out interface{}) Decoder {
	return func(r io.Reader) error {
		if err := json.NewDecoder(r).Decode(out); err != nil {
			return fmt.Errorf("failed to unmarshal: %w", err)
		}
		return nil
	}
}

// NewStringDecoder returns a Decoder that captures the response body into out.
func NewStringDecoder(out *string) Decoder {
	return func(r io.Reader) error {
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		*out = string(b)
		return nil
	}
}

// Request describes a single call the Client will make.
type Request struct {
	Method  string
	Route   string
	Body    interface{} // marshalled to JSON when set
	Decoder Decoder     // called with the response body when set
	Headers map[string]string
	Timeout time.Duration // per attempt timeout
	Query   url.Values

	url string
}

// NewRequest builds a Request from a route template and its params. Keeping
// the unexpanded template as the Route holds the span and metric cardinality
// down when the expanded url varies per call.
// The returned Request can be altered further before handing it to Call.
func NewRequest(method, route string, timeout time.Duration, routeParams ...interface{}) Request {
	return Request{
		Method:  method,
		url:     fmt.Sprintf(route, routeParams...),
		Route:   route,
		Timeout: timeout,
	}
}

// Call sends the request, wrapping each attempt in a span. 5xx responses are
// retried until the client's Timeout is spent. If the call completes with any
// other non 2xx status an *HTTPError describing the response is returned.
func (c *Client) Call(ctx context.Context, r Request) (err error) {
	if r.url == "" {
		// The request was constructed by hand rather than with NewRequest.
		r.url = r.Route
	}
	u, err := url.Parse(c.baseURL + r.url)
	if err != nil {
		return err
	}
	u.RawQuery = r.Query.Encode() // "" when Query is nil

	err = c.do(ctx, fmt.Sprintf("httpclient: %s %s", c.name, r.Route), u, r)
	// retries are over, restore normal error and warning behaviour
	return markRetriesDone(err)
}

// do runs the retry loop. The response body is only handed to the decoder for
// 2xx responses, otherwise it is drained and discarded.
func (c *Client) do(ctx context.Context, spanName string, u *url.URL, r Request) error {
	attempts := 0
	attempt := func() (err error) {
		_, span := o11y.StartSpan(ctx, spanName)
		defer o11y.End(span, &err)

		attempts++
		start := time.Now()

		if c.holdingOff() {
			return backoff.Permanent(ErrRateLimited)
		}

		req, err := c.buildRequest(r, u)
		if err != nil {
			return backoff.Permanent(err)
		}

		// Bound the individual attempt. Callers that did not pick a per
		// attempt timeout get a service-to-service sized default.
		perAttempt := r.Timeout
		if perAttempt == 0 {
			perAttempt = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(ctx, perAttempt)
		defer cancel()
		req = req.WithContext(ctx)

		span.AddRawField("http.client_name", c.name)
		span.AddRawField("http.route", r.Route)
		span.AddRawField("http.base_url", c.baseURL)
		spanRequestFields(span, req, attempts)

		res, err := c.httpClient.Do(req)
		if err != nil {
			// url errors repeat the method and target, which only adds
			// noise to traces and metrics
			uerr := &url.Error{}
			if errors.As(err, &uerr) {
				err = uerr.Err
			}
			return fmt.Errorf("call: %s %s failed with: %w after %d attempt(s)",
				req.Method, r.Route, err, attempts)
		}
		defer func() {
			// drain the rest of the body so the connection can be reused
			_, _ = io.Copy(io.Discard, res.Body)
			_ = res.Body.Close()
		}()

		if m := o11y.FromContext(ctx).MetricsProvider(); m != nil {
			_ = m.TimeInMilliseconds("httpclient",
				float64(time.Since(start).Nanoseconds())/1e6,
				[]string{
					"http.client_name:" + c.name,
					"http.route:" + r.Route,
					"http.method:" + r.Method,
					"http.status_code:" + strconv.Itoa(res.StatusCode),
					"http.retry:" + strconv.FormatBool(attempts > 1),
				},
				1,
			)
		}
		spanResponseFields(span, res)

		if err := errorFromStatus(req, res, r.Route, attempts); err != nil {
			if HasStatusCode(err, http.StatusTooManyRequests) {
				c.recordRateLimit()
			}
			return err
		}
		if r.Decoder == nil {
			return nil
		}
		if err := r.Decoder(res.Body); err != nil {
			// the body is already spent, a retry would not help
			return backoff.Permanent(fmt.Errorf("call: %s %s decoding failed with: %w after %d attempt(s)",
				req.Method, r.Route, err, attempts))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = c.retryBudget
	return backoff.Retry(attempt, backoff.WithContext(bo, ctx))
}

func (c *Client) buildRequest(r Request, u *url.URL) (*http.Request, error) {
	req, err := http.NewRequest(r.Method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if c.acceptType != "" {
		req.Header.Set("Accept", c.acceptType)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if r.Body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(r.Body); err != nil {
			return nil, fmt.Errorf("could not json encode request: %w", err)
		}
		req.Header.Set("Content-Type", contentTypeJSON)
		req.Body = io.NopCloser(buf)
	}
	return req, nil
}

func spanRequestFields(span o11y.Span, req *http.Request, attempt int) {
	span.AddRawField("meta.type", "http_client")
	span.AddRawField("span.kind", "Client")
	span.AddRawField("http.scheme", req.URL.Scheme)
	span.AddRawField("http.host", req.URL.Host)
	span.AddRawField("http.target", req.URL.Path)
	span.AddRawField("http.method", req.Method)
	span.AddRawField("http.url", req.URL.String())
	span.AddRawField("http.user_agent", req.UserAgent())
	span.AddRawField("http.request_content_length", req.ContentLength)
	span.AddRawField("http.attempt", attempt)
	span.AddRawField("http.retry", attempt > 1)
}

func spanResponseFields(span o11y.Span, res *http.Response) {
	if cl := res.Header.Get("Content-Length"); cl != "" {
		span.AddRawField("http.response_content_length", cl)
	}
	if ct := res.Header.Get("Content-Type"); ct != "" {
		span.AddRawField("http.response_content_type", ct)
	}
	if ce := res.Header.Get("Content-Encoding"); ce != "" {
		span.AddRawField("http.response_content_encoding", ce)
	}
	span.AddRawField("http.status_code", res.StatusCode)
}

// holdingOff reports whether a recent 429 means this call should not go out.
func (c *Client) holdingOff() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.now().Before(c.rateLimitedAt.Add(rateLimitHold))
}

func (c *Client) recordRateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rateLimitedAt = c.now()
}
