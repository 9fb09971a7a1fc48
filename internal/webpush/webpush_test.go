package webpush_test

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dogma165/push-notification/internal/webpush"
)

// --- stub transports ---

type capturedRequest struct {
	URL    string
	Header http.Header
	Body   []byte
}

// stubTransport records requests and answers sequentially.
type stubTransport struct {
	requests []capturedRequest
	failOn   map[int]error // request index → transport error
	status   int
}

func (s *stubTransport) Post(_ context.Context, url string, header http.Header, body []byte) (*webpush.Response, error) {
	idx := len(s.requests)
	s.requests = append(s.requests, capturedRequest{URL: url, Header: header, Body: body})
	if err, ok := s.failOn[idx]; ok {
		return nil, err
	}
	status := s.status
	if status == 0 {
		status = http.StatusCreated
	}
	return &webpush.Response{StatusCode: status, Header: http.Header{"Location": []string{url + "/msg"}}}, nil
}

// concurrentTransport is safe for parallel submissions and tracks whether
// FlushPending was invoked.
type concurrentTransport struct {
	mu      sync.Mutex
	byURL   map[string]int
	calls   int
	flushed bool
}

func (c *concurrentTransport) Post(_ context.Context, url string, _ http.Header, _ []byte) (*webpush.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byURL == nil {
		c.byURL = make(map[string]int)
	}
	c.byURL[url]++
	c.calls++
	return &webpush.Response{StatusCode: http.StatusCreated}, nil
}

func (c *concurrentTransport) Concurrent() bool { return true }

func (c *concurrentTransport) FlushPending(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushed = true
	return nil
}

func testSubscriberKey(t *testing.T) []byte {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	return key.PublicKey().Bytes()
}

// --- tests ---

func TestFlush_EmptyQueue(t *testing.T) {
	transport := &stubTransport{}
	wp := webpush.New(transport, nil, nil)

	report, err := wp.Flush(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)
	// Nothing to send: the transport must not be touched.
	assert.Empty(t, transport.requests)
}

func TestFlush_MissingAPIKeyFailsBeforeSending(t *testing.T) {
	transport := &stubTransport{}
	wp := webpush.New(transport, nil, nil)

	require.NoError(t, wp.Enqueue(webpush.Notification{
		Endpoint: "https://android.googleapis.com/gcm/send/token1",
	}))

	_, err := wp.Flush(context.Background())
	var missing *webpush.MissingAuthorizationKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, webpush.ServiceType("gcm"), missing.Service)
	assert.Empty(t, transport.requests)

	// The batch is retained: configuring the key lets the same batch proceed.
	wp.SetAPIKey("gcm", "secret-api-key")
	report, err := wp.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].OK())

	require.Len(t, transport.requests, 1)
	req := transport.requests[0]
	assert.Equal(t, "https://gcm-http.googleapis.com/gcm/send/token1", req.URL)
	assert.Equal(t, "key=secret-api-key", req.Header.Get("Authorization"))
}

func TestFlush_PartialFailureIsIsolated(t *testing.T) {
	transport := &stubTransport{failOn: map[int]error{1: errors.New("connection reset")}}
	wp := webpush.New(transport, nil, nil)

	endpoints := []string{
		"https://push.example.com/a",
		"https://push.example.com/b",
		"https://push.example.com/c",
	}
	for _, ep := range endpoints {
		require.NoError(t, wp.Enqueue(webpush.Notification{Endpoint: ep}))
	}

	report, err := wp.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	first, second, third := report.Results[0], report.Results[1], report.Results[2]
	assert.Equal(t, http.StatusCreated, first.StatusCode)
	assert.True(t, first.OK())

	assert.False(t, second.OK())
	assert.Zero(t, second.StatusCode)
	assert.ErrorContains(t, second.Err, "connection reset")
	assert.Equal(t, "https://push.example.com/b", second.Endpoint)

	assert.Equal(t, http.StatusCreated, third.StatusCode)
	assert.Equal(t, 1, report.Failed())

	// The batch is consumed even on partial failure.
	assert.Zero(t, wp.Pending())
	report, err = wp.Flush(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestFlush_ResultsOrderedByGroupThenEnqueue(t *testing.T) {
	transport := &stubTransport{}
	wp := webpush.New(transport, nil, nil)
	wp.SetAPIKey("gcm", "k")

	require.NoError(t, wp.Enqueue(webpush.Notification{Endpoint: "https://push.example.com/1"}))
	require.NoError(t, wp.Enqueue(webpush.Notification{Endpoint: "https://android.googleapis.com/gcm/send/2"}))
	require.NoError(t, wp.Enqueue(webpush.Notification{Endpoint: "https://push.example.com/3"}))

	report, err := wp.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	// Standard group was created first, so both its members come before the
	// gcm notification.
	assert.Equal(t, "https://push.example.com/1", report.Results[0].Endpoint)
	assert.Equal(t, "https://push.example.com/3", report.Results[1].Endpoint)
	assert.Equal(t, "https://android.googleapis.com/gcm/send/2", report.Results[2].Endpoint)
	assert.Equal(t, webpush.ServiceType("gcm"), report.Results[2].ServiceType)
}

func TestFlush_EncryptedPayloadHeaders(t *testing.T) {
	transport := &stubTransport{}
	wp := webpush.New(transport, nil, nil)

	require.NoError(t, wp.Enqueue(webpush.Notification{
		Endpoint:      "https://push.example.com/enc",
		Payload:       []byte(`{"body":"secret"}`),
		SubscriberKey: testSubscriberKey(t),
		AuthSecret:    make([]byte, 16),
	}))

	report, err := wp.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.True(t, report.Results[0].OK())

	req := transport.requests[0]
	// Padded envelope (4080) plus the GCM tag.
	assert.Len(t, req.Body, 4096)
	assert.Equal(t, "4096", req.Header.Get("Content-Length"))
	assert.Equal(t, "application/octet-stream", req.Header.Get("Content-Type"))
	assert.Equal(t, "aesgcm", req.Header.Get("Content-Encoding"))
	assert.Regexp(t, `^keyid="p256dh";salt="[A-Za-z0-9_-]{22}"$`, req.Header.Get("Encryption"))
	assert.Regexp(t, `^keyid="p256dh";dh="[A-Za-z0-9_-]{87}"$`, req.Header.Get("Crypto-Key"))
	assert.Equal(t, strconv.Itoa(webpush.DefaultTTL), req.Header.Get("TTL"))
}

func TestFlush_UnencryptedFallback(t *testing.T) {
	transport := &stubTransport{}
	wp := webpush.New(transport, nil, nil)

	payload := []byte("plain notification")
	require.NoError(t, wp.Enqueue(webpush.Notification{
		Endpoint: "https://push.example.com/plain",
		Payload:  payload,
	}))

	_, err := wp.Flush(context.Background())
	require.NoError(t, err)

	req := transport.requests[0]
	assert.Equal(t, payload, req.Body)
	assert.Equal(t, strconv.Itoa(len(payload)), req.Header.Get("Content-Length"))
	assert.Empty(t, req.Header.Get("Content-Encoding"))
	assert.Empty(t, req.Header.Get("Encryption"))
}

func TestFlush_TicklePush(t *testing.T) {
	transport := &stubTransport{}
	wp := webpush.New(transport, nil, nil)
	wp.SetTTL(60)

	require.NoError(t, wp.Enqueue(webpush.Notification{Endpoint: "https://push.example.com/tickle"}))

	_, err := wp.Flush(context.Background())
	require.NoError(t, err)

	req := transport.requests[0]
	assert.Empty(t, req.Body)
	assert.Equal(t, "0", req.Header.Get("Content-Length"))
	assert.Equal(t, "60", req.Header.Get("TTL"))
}

func TestFlush_BadKeyMaterialIsolatedPerNotification(t *testing.T) {
	transport := &stubTransport{}
	wp := webpush.New(transport, nil, nil)

	require.NoError(t, wp.Enqueue(webpush.Notification{
		Endpoint:      "https://push.example.com/bad",
		Payload:       []byte("x"),
		SubscriberKey: []byte{0x04, 0xFF}, // malformed point
		AuthSecret:    make([]byte, 16),
	}))
	require.NoError(t, wp.Enqueue(webpush.Notification{Endpoint: "https://push.example.com/ok"}))

	report, err := wp.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	var invalid *webpush.InvalidKeyMaterialError
	assert.ErrorAs(t, report.Results[0].Err, &invalid)
	assert.True(t, report.Results[1].OK())

	// Only the deliverable notification reached the transport.
	require.Len(t, transport.requests, 1)
	assert.Equal(t, "https://push.example.com/ok", transport.requests[0].URL)
}

func TestEnqueue_PayloadTooLarge(t *testing.T) {
	wp := webpush.New(&stubTransport{}, nil, nil)

	err := wp.Enqueue(webpush.Notification{
		Endpoint: "https://push.example.com/big",
		Payload:  make([]byte, webpush.MaxPayloadLength+1),
	})
	var tooLarge *webpush.PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Zero(t, wp.Pending())
}

func TestFlush_ConcurrentTransport(t *testing.T) {
	transport := &concurrentTransport{}
	wp := webpush.New(transport, nil, nil)

	for i := 0; i < 20; i++ {
		require.NoError(t, wp.Enqueue(webpush.Notification{
			Endpoint: "https://push.example.com/" + strconv.Itoa(i),
		}))
	}

	report, err := wp.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 20)

	// Every result keeps its enqueue position even with parallel delivery.
	for i, res := range report.Results {
		assert.Equal(t, "https://push.example.com/"+strconv.Itoa(i), res.Endpoint)
		assert.True(t, res.OK())
	}
	assert.Equal(t, 20, transport.calls)
	assert.True(t, transport.flushed)
}

func TestConfigurationDefaults(t *testing.T) {
	wp := webpush.New(&stubTransport{}, nil, nil)

	assert.Equal(t, 2419200, wp.TTL())
	assert.True(t, wp.AutomaticPadding())

	wp.SetAutomaticPadding(false)
	wp.SetTTL(120)
	assert.False(t, wp.AutomaticPadding())
	assert.Equal(t, 120, wp.TTL())
}
