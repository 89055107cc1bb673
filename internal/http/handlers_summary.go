package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yabolb/familyflow/internal/budget"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	target, ok := monthFromQuery(r, time.Now())
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid year or month")
		return
	}

	familyID := familyIDOf(r)
	key := summaryCacheKey(familyID, target)
	if familyID != "" {
		if cached, hit := s.summaryCache.Get(key); hit {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	summary, err := s.summaries.Summarize(r.Context(), familyID, target)
	if errors.Is(err, budget.ErrUpstream) {
		slog.ErrorContext(r.Context(), "Summary upstream failure", "error", err, "family_id", familyID)
		writeError(w, http.StatusBadGateway, "could not load this month's summary")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary failed", "error", err, "family_id", familyID)
		writeError(w, http.StatusInternalServerError, "could not load this month's summary")
		return
	}

	if familyID != "" {
		s.summaryCache.Set(key, summary)
	}
	writeJSON(w, http.StatusOK, summary)
}
