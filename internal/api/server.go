// Package api implements the REST handlers for the push service.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dogma165/push-notification/internal/service"
)

const errInvalidJSONBody = "invalid JSON body"

// Server holds all dependencies for the REST API handlers.
type Server struct {
	pushSvc service.PushService
	logger  *slog.Logger
}

// New creates a new API Server backed by the provided service.
func New(pushSvc service.PushService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{pushSvc: pushSvc, logger: logger}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// Subscriptions CRUD
	r.Get("/subscriptions", s.handleListSubscriptions)
	r.Post("/subscriptions", s.handleCreateSubscription)
	r.Get("/subscriptions/{id}", s.handleGetSubscription)
	r.Delete("/subscriptions/{id}", s.handleDeleteSubscription)

	// Delivery
	r.Post("/notifications", s.handleCreateNotification)
	r.Post("/flush", s.handleFlush)
	r.Get("/deliveries", s.handleListDeliveries)

	// Settings
	r.Get("/settings", s.handleGetSettings)
	r.Put("/settings", s.handleUpdateSettings)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps typed service errors to HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var notFound *service.NotFoundError
	var validation *service.ValidationError
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
