// Package service implements the business logic layer between HTTP handlers
// and the webpush/storage packages. All interfaces are designed for easy
// mocking in tests.
package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dogma165/push-notification/internal/eventbus"
	"github.com/dogma165/push-notification/internal/storage"
	"github.com/dogma165/push-notification/internal/webpush"
)

// maskedSecret replaces stored API keys in settings responses.
const maskedSecret = "***"

// EventPublisher is the interface for publishing application events.
type EventPublisher interface {
	Publish(eventType string, payload map[string]string)
}

// Settings is the runtime-mutable delivery configuration.
type Settings struct {
	TTL              int               `json:"ttl"`
	AutomaticPadding bool              `json:"automatic_padding"`
	APIKeys          map[string]string `json:"api_keys"`
}

// PushService defines the business logic interface for managing
// subscriptions and delivering pushes.
type PushService interface {
	// RegisterSubscription validates and persists a new push subscription.
	// p256dh and auth are base64 as supplied by the browser; either may be
	// empty for endpoints that only receive tickle pushes.
	RegisterSubscription(ctx context.Context, endpoint, p256dh, auth string) (storage.Subscription, error)

	// GetSubscription returns the subscription with the given id.
	GetSubscription(ctx context.Context, id string) (storage.Subscription, error)

	// ListSubscriptions returns all registered subscriptions.
	ListSubscriptions(ctx context.Context) ([]storage.Subscription, error)

	// RemoveSubscription deletes a subscription by id.
	RemoveSubscription(ctx context.Context, id string) error

	// Notify queues a payload for the subscription with the given id.
	// A nil payload queues a tickle push.
	Notify(ctx context.Context, subscriptionID string, payload []byte) error

	// NotifyAll queues a payload for every registered subscription and
	// returns how many were queued.
	NotifyAll(ctx context.Context, payload []byte) (int, error)

	// Flush delivers all queued notifications, records the outcomes in the
	// delivery log, and publishes delivery events. Returns nil when the
	// queue was empty.
	Flush(ctx context.Context) (*webpush.FlushReport, error)

	// Pending returns the number of queued notifications.
	Pending() int

	// ListDeliveries returns recent delivery log entries.
	ListDeliveries(ctx context.Context, limit int) ([]storage.DeliveryLogEntry, error)

	// GetSettings returns the current delivery settings with masked API keys.
	GetSettings() Settings

	// UpdateSettings applies new delivery settings. An API key equal to the
	// mask sentinel keeps the existing key.
	UpdateSettings(s Settings) error
}

// pushService is the default implementation of PushService.
type pushService struct {
	subs       storage.SubscriptionStore
	deliveries storage.DeliveryStore
	sender     *webpush.WebPush
	events     EventPublisher
	logger     *slog.Logger

	// mu serializes enqueue, flush, and settings mutation: the dispatcher
	// itself requires external synchronization.
	mu      sync.Mutex
	apiKeys map[string]string
}

// NewPushService returns a PushService over the given stores and dispatcher.
func NewPushService(subs storage.SubscriptionStore, deliveries storage.DeliveryStore,
	sender *webpush.WebPush, events EventPublisher, logger *slog.Logger) PushService {
	if logger == nil {
		logger = slog.Default()
	}
	return &pushService{
		subs:       subs,
		deliveries: deliveries,
		sender:     sender,
		events:     events,
		logger:     logger,
		apiKeys:    make(map[string]string),
	}
}

func (s *pushService) RegisterSubscription(ctx context.Context, endpoint, p256dh, auth string) (storage.Subscription, error) {
	if !strings.HasPrefix(endpoint, "https://") && !strings.HasPrefix(endpoint, "http://") {
		return storage.Subscription{}, &ValidationError{Field: "endpoint", Message: "must be an HTTP(S) URL"}
	}
	if _, err := decodeSubscriberKey(p256dh, 65); err != nil {
		return storage.Subscription{}, &ValidationError{Field: "p256dh", Message: err.Error()}
	}
	if _, err := decodeSubscriberKey(auth, 16); err != nil {
		return storage.Subscription{}, &ValidationError{Field: "auth", Message: err.Error()}
	}

	sub := storage.Subscription{
		ID:        uuid.NewString(),
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.subs.SaveSubscription(ctx, sub); err != nil {
		return storage.Subscription{}, fmt.Errorf("saving subscription: %w", err)
	}

	s.logger.Info("subscription registered", "id", sub.ID, "endpoint", endpoint)
	return sub, nil
}

func (s *pushService) GetSubscription(ctx context.Context, id string) (storage.Subscription, error) {
	sub, err := s.subs.GetSubscription(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Subscription{}, &NotFoundError{Resource: "subscription", ID: id}
	}
	if err != nil {
		return storage.Subscription{}, err
	}
	return sub, nil
}

func (s *pushService) ListSubscriptions(ctx context.Context) ([]storage.Subscription, error) {
	return s.subs.ListSubscriptions(ctx)
}

func (s *pushService) RemoveSubscription(ctx context.Context, id string) error {
	deleted, err := s.subs.DeleteSubscription(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return &NotFoundError{Resource: "subscription", ID: id}
	}
	return nil
}

func (s *pushService) Notify(ctx context.Context, subscriptionID string, payload []byte) error {
	sub, err := s.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	return s.enqueue(sub, payload)
}

func (s *pushService) NotifyAll(ctx context.Context, payload []byte) (int, error) {
	subs, err := s.subs.ListSubscriptions(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, sub := range subs {
		if err := s.enqueue(sub, payload); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// enqueue converts a stored subscription into a notification and queues it.
func (s *pushService) enqueue(sub storage.Subscription, payload []byte) error {
	key, err := decodeSubscriberKey(sub.P256dh, 65)
	if err != nil {
		return &ValidationError{Field: "p256dh", Message: err.Error()}
	}
	auth, err := decodeSubscriberKey(sub.Auth, 16)
	if err != nil {
		return &ValidationError{Field: "auth", Message: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sender.Enqueue(webpush.Notification{
		Endpoint:      sub.Endpoint,
		Payload:       payload,
		SubscriberKey: key,
		AuthSecret:    auth,
	})
}

func (s *pushService) Flush(ctx context.Context) (*webpush.FlushReport, error) {
	s.mu.Lock()
	report, err := s.sender.Flush(ctx)
	s.mu.Unlock()
	if err != nil || report == nil {
		return report, err
	}

	for _, res := range report.Results {
		entry := storage.DeliveryLogEntry{
			Endpoint:    res.Endpoint,
			ServiceType: string(res.ServiceType),
			StatusCode:  res.StatusCode,
			Status:      storage.StatusSent,
			CreatedAt:   time.Now().UTC(),
		}
		event := eventbus.EventDeliverySent
		if !res.OK() {
			entry.Status = storage.StatusFailed
			entry.ErrorMsg = res.Err.Error()
			event = eventbus.EventDeliveryFailed
		}

		if logErr := s.deliveries.LogDelivery(ctx, entry); logErr != nil {
			s.logger.Error("failed to record delivery", "endpoint", res.Endpoint, "error", logErr)
		}
		if s.events != nil {
			s.events.Publish(event, map[string]string{
				"endpoint": res.Endpoint,
				"service":  string(res.ServiceType),
				"status":   strconv.Itoa(res.StatusCode),
			})
		}
	}

	if s.events != nil {
		s.events.Publish(eventbus.EventFlushCompleted, map[string]string{
			"total":  strconv.Itoa(len(report.Results)),
			"failed": strconv.Itoa(report.Failed()),
		})
	}
	return report, nil
}

func (s *pushService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sender.Pending()
}

func (s *pushService) ListDeliveries(ctx context.Context, limit int) ([]storage.DeliveryLogEntry, error) {
	return s.deliveries.ListDeliveries(ctx, limit)
}

func (s *pushService) GetSettings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make(map[string]string, len(s.apiKeys))
	for svc := range s.apiKeys {
		keys[svc] = maskedSecret
	}
	return Settings{
		TTL:              s.sender.TTL(),
		AutomaticPadding: s.sender.AutomaticPadding(),
		APIKeys:          keys,
	}
}

func (s *pushService) UpdateSettings(settings Settings) error {
	if settings.TTL < 0 {
		return &ValidationError{Field: "ttl", Message: "must not be negative"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sender.SetTTL(settings.TTL)
	s.sender.SetAutomaticPadding(settings.AutomaticPadding)
	for svc, key := range settings.APIKeys {
		if key == maskedSecret {
			continue // keep the existing key
		}
		s.apiKeys[svc] = key
		s.sender.SetAPIKey(webpush.ServiceType(svc), key)
	}
	return nil
}

// DecodeKeys decodes base64 subscriber key material as supplied by a
// browser subscription: the 65-byte p256dh point and 16-byte auth secret.
func DecodeKeys(p256dh, auth string) ([]byte, []byte, error) {
	key, err := decodeSubscriberKey(p256dh, 65)
	if err != nil {
		return nil, nil, &ValidationError{Field: "p256dh", Message: err.Error()}
	}
	secret, err := decodeSubscriberKey(auth, 16)
	if err != nil {
		return nil, nil, &ValidationError{Field: "auth", Message: err.Error()}
	}
	return key, secret, nil
}

// decodeSubscriberKey decodes base64 subscriber key material and checks its
// length. Browsers emit unpadded URL-safe base64, but padded and standard
// alphabets are accepted too. An empty input yields nil.
func decodeSubscriberKey(encoded string, wantLen int) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}

	trimmed := strings.TrimRight(encoded, "=")
	raw, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(trimmed)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(raw) != wantLen {
		return nil, fmt.Errorf("decoded to %d bytes, want %d", len(raw), wantLen)
	}
	return raw, nil
}
