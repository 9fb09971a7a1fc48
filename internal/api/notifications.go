package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dogma165/push-notification/internal/service"
	"github.com/dogma165/push-notification/internal/storage"
)

// notificationRequest queues a payload for one subscription, or for all of
// them when Broadcast is set. An empty payload queues a tickle push.
type notificationRequest struct {
	SubscriptionID string `json:"subscription_id"`
	Broadcast      bool   `json:"broadcast"`
	Payload        string `json:"payload"`
}

func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	var payload []byte
	if req.Payload != "" {
		payload = []byte(req.Payload)
	}

	switch {
	case req.Broadcast:
		queued, err := s.pushSvc.NotifyAll(r.Context(), payload)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"queued": queued})

	case req.SubscriptionID != "":
		if err := s.pushSvc.Notify(r.Context(), req.SubscriptionID, payload); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"queued": 1})

	default:
		writeError(w, http.StatusBadRequest, "subscription_id or broadcast required")
	}
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	report, err := s.pushSvc.Flush(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if report == nil {
		writeJSON(w, http.StatusOK, map[string]any{"sent": 0, "failed": 0})
		return
	}

	type resultView struct {
		Endpoint    string `json:"endpoint"`
		ServiceType string `json:"service_type"`
		StatusCode  int    `json:"status_code,omitempty"`
		Error       string `json:"error,omitempty"`
	}
	results := make([]resultView, 0, len(report.Results))
	for _, res := range report.Results {
		v := resultView{
			Endpoint:    res.Endpoint,
			ServiceType: string(res.ServiceType),
			StatusCode:  res.StatusCode,
		}
		if res.Err != nil {
			v.Error = res.Err.Error()
		}
		results = append(results, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sent":    len(report.Results) - report.Failed(),
		"failed":  report.Failed(),
		"results": results,
	})
}

// handleListDeliveries returns recent delivery log entries.
// Accepts an optional ?limit=N query parameter (default 50).
func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.pushSvc.ListDeliveries(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []storage.DeliveryLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pushSvc.GetSettings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var incoming service.Settings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	if err := s.pushSvc.UpdateSettings(incoming); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pushSvc.GetSettings())
}
