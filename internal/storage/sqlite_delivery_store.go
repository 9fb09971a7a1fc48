package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteDeliveryStore implements DeliveryStore backed by SQLite.
type SQLiteDeliveryStore struct {
	db *sql.DB
}

// NewSQLiteDeliveryStore returns a new SQLiteDeliveryStore.
func NewSQLiteDeliveryStore(db *sql.DB) *SQLiteDeliveryStore {
	return &SQLiteDeliveryStore{db: db}
}

// LogDelivery inserts a delivery record into the database.
func (s *SQLiteDeliveryStore) LogDelivery(ctx context.Context, entry DeliveryLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_log (endpoint, service_type, status_code, status, error_msg, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Endpoint, entry.ServiceType, entry.StatusCode,
		entry.Status, entry.ErrorMsg, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting delivery log: %w", err)
	}
	return nil
}

// ListDeliveries returns the most recent entries ordered by created_at
// descending.
func (s *SQLiteDeliveryStore) ListDeliveries(ctx context.Context, limit int) ([]DeliveryLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint, service_type, status_code, status, error_msg, created_at
		FROM delivery_log
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying delivery log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []DeliveryLogEntry
	for rows.Next() {
		var e DeliveryLogEntry
		if err := rows.Scan(&e.ID, &e.Endpoint, &e.ServiceType, &e.StatusCode,
			&e.Status, &e.ErrorMsg, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning delivery log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery log rows: %w", err)
	}
	return entries, nil
}
