package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yabolb/familyflow/internal/budget"
)

func (s *Server) handleFeedbackEligibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := userIDOf(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing "+userHeader+" header")
		return
	}
	dismissed := r.URL.Query().Get("dismissed") == "true"

	eligibility, err := s.gate.Check(r.Context(), userID, dismissed)
	if err != nil {
		if errors.Is(err, budget.ErrUpstream) {
			slog.ErrorContext(r.Context(), "Feedback gate upstream failure", "error", err)
			writeError(w, http.StatusBadGateway, "could not check feedback eligibility")
			return
		}
		slog.ErrorContext(r.Context(), "Feedback gate failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not check feedback eligibility")
		return
	}

	writeJSON(w, http.StatusOK, eligibility)
}

func (s *Server) handleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := userIDOf(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing "+userHeader+" header")
		return
	}

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	if err := s.stores.Feedback.CreateFeedback(r.Context(), userID, req.Rating, strings.TrimSpace(req.Comment)); err != nil {
		slog.ErrorContext(r.Context(), "Create feedback failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not save feedback")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
