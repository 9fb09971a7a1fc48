package storage

import (
	"context"
	"time"
)

// Subscription is a registered browser push subscription. P256dh and Auth
// carry the subscriber's key material as base64, exactly as supplied by the
// browser's PushSubscription object.
type Subscription struct {
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscriptionStore defines the interface for persisting push subscriptions.
type SubscriptionStore interface {
	// SaveSubscription inserts a new subscription.
	SaveSubscription(ctx context.Context, sub Subscription) error
	// GetSubscription returns the subscription with the given id, or
	// sql.ErrNoRows wrapped when it does not exist.
	GetSubscription(ctx context.Context, id string) (Subscription, error)
	// ListSubscriptions returns all subscriptions, oldest first.
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
	// DeleteSubscription removes a subscription. Removing an unknown id is
	// not an error; the returned bool reports whether a row was deleted.
	DeleteSubscription(ctx context.Context, id string) (bool, error)
}
