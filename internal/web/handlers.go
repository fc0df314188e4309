package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/strata/internal/core"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Extractions core.LimiterStatus `json:"extractions"`
	Sessions    int                `json:"sessions"`
	Collection  string             `json:"collection"`
}

// handleHealth pings the store. 503 means the store is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Store.Ping(ctx); err != nil {
		s.logger.Warn("health: store ping failed", "error", err)
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleStatus reports extraction slots and open review sessions.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Sessions:   s.deps.Sessions.Count(),
		Collection: s.deps.Persister.Collection(),
	}
	if s.deps.Limiter != nil {
		resp.Extractions = s.deps.Limiter.Status()
	}
	writeJSON(w, resp)
}

// handleListRecords returns saved records, newest first.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.fail(w, r, badRequest("limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := s.deps.Store.List(r.Context(), s.deps.Persister.Collection(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if records == nil {
		records = []core.PersistedRecord{}
	}
	writeJSON(w, records)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Store.Get(r.Context(), s.deps.Persister.Collection(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, rec)
}
