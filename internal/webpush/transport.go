package webpush

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds each delivery request when no timeout is
// configured.
const DefaultRequestTimeout = 30 * time.Second

// Response is the transport-level outcome of a delivered request.
type Response struct {
	StatusCode int
	Header     http.Header
}

// Transport is the delivery collaborator: a POST client. Implementations
// report network and protocol failures through the returned error; any
// response with a status code counts as delivered.
type Transport interface {
	Post(ctx context.Context, url string, header http.Header, body []byte) (*Response, error)
}

// Flusher is implemented by transports that buffer or multiplex outgoing
// requests and need an explicit nudge to complete them.
type Flusher interface {
	FlushPending(ctx context.Context) error
}

// ConcurrentTransport is implemented by transports that safely carry
// multiple in-flight requests. The dispatcher issues all submissions of a
// flush before waiting when the transport reports Concurrent.
type ConcurrentTransport interface {
	Transport
	Concurrent() bool
}

// HTTPTransport delivers requests over net/http. The underlying client
// transparently multiplexes HTTP/2 connections, so it is safe for the
// dispatcher to keep many requests in flight.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates an HTTPTransport with the given per-request
// timeout. A zero or negative timeout falls back to DefaultRequestTimeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &HTTPTransport{client: &http.Client{Timeout: timeout}}
}

// Post sends one POST request and returns its status code and headers.
func (t *HTTPTransport) Post(ctx context.Context, url string, header http.Header, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", url, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header}, nil
}

// Concurrent reports that the transport supports parallel submissions.
func (t *HTTPTransport) Concurrent() bool { return true }
