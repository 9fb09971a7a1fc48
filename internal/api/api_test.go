package api_test

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dogma165/push-notification/internal/api"
	"github.com/dogma165/push-notification/internal/service"
	"github.com/dogma165/push-notification/internal/storage"
	"github.com/dogma165/push-notification/internal/webpush"
)

type stubTransport struct {
	mu   sync.Mutex
	urls []string
}

func (s *stubTransport) Post(_ context.Context, url string, _ http.Header, _ []byte) (*webpush.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, url)
	return &webpush.Response{StatusCode: http.StatusCreated}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *stubTransport) {
	t.Helper()

	db, _, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	transport := &stubTransport{}
	svc := service.NewPushService(
		storage.NewSQLiteSubscriptionStore(db),
		storage.NewSQLiteDeliveryStore(db),
		webpush.New(transport, nil, nil),
		nil, nil,
	)

	r := chi.NewRouter()
	api.New(svc, nil).Mount(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, transport
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func createSubscription(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, srv.URL+"/subscriptions", map[string]any{
		"endpoint": "https://push.example.com/abc",
		"keys": map[string]string{
			"p256dh": base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			"auth":   base64.RawURLEncoding.EncodeToString(secret),
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sub storage.Subscription
	decodeBody(t, resp, &sub)
	require.NotEmpty(t, sub.ID)
	return sub.ID
}

func TestSubscriptionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSubscription(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/subscriptions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sub storage.Subscription
	decodeBody(t, resp, &sub)
	assert.Equal(t, "https://push.example.com/abc", sub.Endpoint)

	resp = doJSON(t, http.MethodGet, srv.URL+"/subscriptions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var subs []storage.Subscription
	decodeBody(t, resp, &subs)
	assert.Len(t, subs, 1)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/subscriptions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/subscriptions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateSubscription_Invalid(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/subscriptions", map[string]any{
		"endpoint": "not-a-url",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotifyFlushAndDeliveries(t *testing.T) {
	srv, transport := newTestServer(t)
	id := createSubscription(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/notifications", map[string]any{
		"subscription_id": id,
		"payload":         `{"title":"hi"}`,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/flush", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var flush struct {
		Sent    int `json:"sent"`
		Failed  int `json:"failed"`
		Results []struct {
			Endpoint   string `json:"endpoint"`
			StatusCode int    `json:"status_code"`
		} `json:"results"`
	}
	decodeBody(t, resp, &flush)
	assert.Equal(t, 1, flush.Sent)
	assert.Zero(t, flush.Failed)
	require.Len(t, flush.Results, 1)
	assert.Equal(t, http.StatusCreated, flush.Results[0].StatusCode)
	assert.Equal(t, []string{"https://push.example.com/abc"}, transport.urls)

	resp = doJSON(t, http.MethodGet, srv.URL+"/deliveries?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []storage.DeliveryLogEntry
	decodeBody(t, resp, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, storage.StatusSent, entries[0].Status)
}

func TestFlush_EmptyQueue(t *testing.T) {
	srv, transport := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/flush", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var flush map[string]any
	decodeBody(t, resp, &flush)
	assert.Equal(t, float64(0), flush["sent"])
	assert.Empty(t, transport.urls)
}

func TestNotification_RequiresTarget(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/notifications", map[string]any{
		"payload": "hello",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBroadcast(t *testing.T) {
	srv, _ := newTestServer(t)
	createSubscription(t, srv)

	// Second subscriber has no keys: tickle-only endpoint.
	resp := doJSON(t, http.MethodPost, srv.URL+"/subscriptions", map[string]any{
		"endpoint": "https://push.example.com/second",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/notifications", map[string]any{
		"broadcast": true,
		"payload":   "fan out",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var queued map[string]int
	decodeBody(t, resp, &queued)
	assert.Equal(t, 2, queued["queued"])
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/settings", service.Settings{
		TTL:              600,
		AutomaticPadding: true,
		APIKeys:          map[string]string{"gcm": "secret"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var settings service.Settings
	decodeBody(t, resp, &settings)
	assert.Equal(t, 600, settings.TTL)
	// The key must come back masked.
	assert.Equal(t, "***", settings.APIKeys["gcm"])
}

func TestInvalidJSONBody(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/subscriptions", "/notifications"} {
		resp, err := http.Post(srv.URL+path, "application/json", bytes.NewBufferString("{nope"))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, fmt.Sprintf("path %s", path))
	}
}
