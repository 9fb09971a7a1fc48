package storage

import (
	"context"
	"time"
)

// Delivery status values.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// DeliveryLogEntry records a single push delivery attempt.
type DeliveryLogEntry struct {
	ID          int64     `json:"id"`
	Endpoint    string    `json:"endpoint"`
	ServiceType string    `json:"service_type"`
	StatusCode  int       `json:"status_code"`
	Status      string    `json:"status"`
	ErrorMsg    string    `json:"error_msg"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeliveryStore defines the interface for persisting delivery outcomes.
type DeliveryStore interface {
	// LogDelivery records a delivery attempt.
	LogDelivery(ctx context.Context, entry DeliveryLogEntry) error
	// ListDeliveries returns the most recent entries, up to limit.
	ListDeliveries(ctx context.Context, limit int) ([]DeliveryLogEntry, error)
}
