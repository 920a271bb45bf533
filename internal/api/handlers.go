package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"seclog/internal/logger"
	"seclog/internal/store"
	"seclog/pkg/models"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil && status >= http.StatusInternalServerError {
		logger.Errorf("%s: %v", message, err)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func intParam(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func timeParam(r *http.Request, name string) *time.Time {
	if v := r.URL.Query().Get(name); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return &t
		}
	}
	return nil
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(); err != nil {
			respondError(w, http.StatusServiceUnavailable, "UNHEALTHY", err.Error(), nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListEvents handles GET /api/v1/events.
func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.EventFilter{
		EventType: q.Get("type"),
		Limit:     intParam(r, "limit", 100),
		Offset:    intParam(r, "offset", 0),
	}
	if v := q.Get("severity"); v != "" {
		sev, ok := models.LookupSeverity(v)
		if !ok {
			respondError(w, http.StatusBadRequest, "INVALID_FILTER", "severity must be Info, Warning or Critical", nil)
			return
		}
		filter.Severity = sev
	}
	if t := timeParam(r, "start"); t != nil {
		filter.Start = *t
	}
	if t := timeParam(r, "end"); t != nil {
		filter.End = *t
	}

	events, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list events", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetEvent handles GET /api/v1/events/{id}.
func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Event ID must be a positive integer", nil)
		return
	}
	event, err := s.store.GetEvent(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Event not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to fetch event", err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// RecentEvents handles GET /api/v1/events/recent.
func (s *Server) RecentEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.RecentEvents(r.Context(), intParam(r, "minutes", 60), intParam(r, "limit", 100))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to fetch recent events", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// SearchEvents handles GET /api/v1/events/search?q=.
func (s *Server) SearchEvents(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		respondError(w, http.StatusBadRequest, "MISSING_QUERY", "Query parameter q is required", nil)
		return
	}
	events, err := s.store.SearchEvents(r.Context(), keyword, intParam(r, "limit", 100))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to search events", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// ListAlerts handles GET /api/v1/alerts.
func (s *Server) ListAlerts(w http.ResponseWriter, r *http.Request) {
	var acknowledged *bool
	if v := r.URL.Query().Get("acknowledged"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_FILTER", "acknowledged must be true or false", nil)
			return
		}
		acknowledged = &b
	}
	alerts, err := s.store.ListAlerts(r.Context(), acknowledged, intParam(r, "limit", 50))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

// AcknowledgeAlert handles POST /api/v1/alerts/{id}/acknowledge.
func (s *Server) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Alert ID must be a positive integer", nil)
		return
	}
	err := s.store.AcknowledgeAlert(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Alert not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to acknowledge alert", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "acknowledged": true})
}

// Summary handles GET /api/v1/stats/summary.
func (s *Server) Summary(w http.ResponseWriter, r *http.Request) {
	total, err := s.store.CountEvents(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to count events", err)
		return
	}
	critical, err := s.store.CountCriticalEvents(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to count critical events", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"total_events": total, "critical_events": critical})
}

// SeverityCounts handles GET /api/v1/stats/severity.
func (s *Server) SeverityCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountBySeverity(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to count by severity", err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// TypeCounts handles GET /api/v1/stats/types.
func (s *Server) TypeCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByType(r.Context(), intParam(r, "limit", 10))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to count by type", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"types": counts})
}

// Timeline handles GET /api/v1/stats/timeline?hours=24&bucket_minutes=60.
func (s *Server) Timeline(w http.ResponseWriter, r *http.Request) {
	hours := intParam(r, "hours", 24)
	bucket := intParam(r, "bucket_minutes", 60)
	if hours <= 0 || bucket <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_RANGE", "hours and bucket_minutes must be positive", nil)
		return
	}
	buckets, err := s.store.Timeline(r.Context(), time.Duration(hours)*time.Hour, time.Duration(bucket)*time.Minute)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to build timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"buckets": buckets})
}

// SystemStats handles GET /api/v1/system.
func (s *Server) SystemStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.LatestSystemStats(r.Context(), intParam(r, "limit", 100))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to fetch system statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}
