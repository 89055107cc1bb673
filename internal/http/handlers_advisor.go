package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yabolb/familyflow/internal/advisor"
)

func (s *Server) handleAdvisorChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.advisor == nil {
		writeError(w, http.StatusServiceUnavailable, "advisor is not configured")
		return
	}

	familyID := familyIDOf(r)
	if familyID == "" {
		writeError(w, http.StatusBadRequest, "missing "+familyHeader+" header")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.advisor.Chat(r.Context(), familyID, userIDOf(r), req.Message)
	if err != nil {
		if errors.Is(err, advisor.ErrEmptyPrompt) {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}
		slog.ErrorContext(r.Context(), "Advisor chat failed", "error", err)
		writeError(w, http.StatusBadGateway, "the advisor is unavailable right now")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
