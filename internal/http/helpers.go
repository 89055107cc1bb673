package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yabolb/familyflow/internal/core"
)

const (
	familyHeader = "X-Family-ID"
	userHeader   = "X-User-ID"
)

func familyIDOf(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(familyHeader))
}

func userIDOf(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userHeader))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// monthFromQuery reads year and month query params, defaulting to the
// current calendar month.
func monthFromQuery(r *http.Request, now time.Time) (core.Month, bool) {
	target := core.MonthOf(now)

	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1970 || y > 9999 {
			return core.Month{}, false
		}
		target.Year = y
	}
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return core.Month{}, false
		}
		target.Month = time.Month(m)
	}
	return target, true
}

// pathID extracts the trailing id from routes like /api/transactions/{id}.
func pathID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	return strings.Trim(id, "/")
}
