package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteSubscriptionStore implements SubscriptionStore backed by SQLite.
type SQLiteSubscriptionStore struct {
	db *sql.DB
}

// NewSQLiteSubscriptionStore returns a new SQLiteSubscriptionStore.
func NewSQLiteSubscriptionStore(db *sql.DB) *SQLiteSubscriptionStore {
	return &SQLiteSubscriptionStore{db: db}
}

// SaveSubscription inserts a subscription record.
func (s *SQLiteSubscriptionStore) SaveSubscription(ctx context.Context, sub Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, endpoint, p256dh, auth, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting subscription: %w", err)
	}
	return nil
}

// GetSubscription returns a single subscription by id.
func (s *SQLiteSubscriptionStore) GetSubscription(ctx context.Context, id string) (Subscription, error) {
	var sub Subscription
	err := s.db.QueryRowContext(ctx, `
		SELECT id, endpoint, p256dh, auth, created_at
		FROM subscriptions WHERE id = ?`, id).
		Scan(&sub.ID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt)
	if err != nil {
		return Subscription{}, fmt.Errorf("querying subscription %q: %w", id, err)
	}
	return sub, nil
}

// ListSubscriptions returns all subscriptions ordered by creation time.
func (s *SQLiteSubscriptionStore) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint, p256dh, auth, created_at
		FROM subscriptions ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning subscription row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscription rows: %w", err)
	}
	return subs, nil
}

// DeleteSubscription removes a subscription by id.
func (s *SQLiteSubscriptionStore) DeleteSubscription(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting subscription %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}
