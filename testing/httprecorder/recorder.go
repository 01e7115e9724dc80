// Package httprecorder captures the requests an http.Handler receives so a
// test can assert on exactly what its client sent: method, URL, headers and
// body. The fake release hosts in this repo wrap their handlers with a
// recorder to check download and checksum traffic.
package httprecorder

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// Request is the recorded form of a single inbound http.Request.
type Request struct {
	Method string
	URL    url.URL
	Header http.Header
	Body   []byte
}

// StringBody returns the recorded body as a string.
func (r *Request) StringBody() string {
	return string(r.Body)
}

// Decode unmarshals the recorded body as JSON into x.
func (r *Request) Decode(x interface{}) error {
	return json.Unmarshal(r.Body, x)
}

// RequestRecorder accumulates recorded requests. It is safe for concurrent
// use, handlers record from whatever goroutine serves them.
type RequestRecorder struct {
	mu   sync.RWMutex
	seen []Request
}

func New() *RequestRecorder {
	return &RequestRecorder{}
}

// Record snapshots request and stores it. The body is read in full and then
// replaced so the wrapped handler can still consume it.
func (r *RequestRecorder) Record(request *http.Request) error {
	req, err := snapshot(request)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, req)

	return nil
}

func snapshot(request *http.Request) (Request, error) {
	req := Request{
		Method: request.Method,
		URL:    *request.URL,
		Header: make(http.Header, len(request.Header)),
	}
	for k, v := range request.Header {
		req.Header[k] = v
	}

	body, err := io.ReadAll(request.Body)
	if err != nil {
		return Request{}, err
	}
	req.Body = body
	// The original reader is spent, hand the handler a fresh one.
	request.Body = io.NopCloser(bytes.NewReader(body))

	return req, nil
}

// Reset discards everything recorded so far.
func (r *RequestRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = nil
}

// AllRequests returns a copy of every recorded request, oldest first.
func (r *RequestRecorder) AllRequests() []Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Request, len(r.seen))
	copy(all, r.seen)
	return all
}

// LastRequest returns the most recently recorded request, or nil if nothing
// has been recorded.
func (r *RequestRecorder) LastRequest() *Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.seen) == 0 {
		return nil
	}
	last := r.seen[len(r.seen)-1]
	return &last
}

// FindRequests returns the recorded requests matching method and u exactly,
// in arrival order.
func (r *RequestRecorder) FindRequests(method string, u url.URL) []Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found []Request
	for _, req := range r.seen {
		if req.Method == method && req.URL == u {
			found = append(found, req)
		}
	}
	return found
}
