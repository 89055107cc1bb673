package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yabolb/familyflow/internal/core"
	"github.com/yabolb/familyflow/internal/storage"
)

type familyResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	InviteCode string `json:"inviteCode"`
}

func toFamilyResponse(f core.Family) familyResponse {
	return familyResponse{ID: f.ID, Name: f.Name, InviteCode: f.InviteCode}
}

func (s *Server) handleFamilies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "family name is required")
		return
	}

	family, err := s.stores.Families.CreateFamily(r.Context(), req.Name)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create family failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create family")
		return
	}

	writeJSON(w, http.StatusCreated, toFamilyResponse(family))
}

func (s *Server) handleJoinFamily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		InviteCode string `json:"inviteCode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.InviteCode))
	if code == "" {
		writeError(w, http.StatusBadRequest, "invite code is required")
		return
	}

	family, err := s.stores.Families.GetFamilyByInvite(r.Context(), code)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown invite code")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Join family failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not join family")
		return
	}

	writeJSON(w, http.StatusOK, toFamilyResponse(family))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	categories, err := s.stores.Categories.ListCategories(r.Context(), familyIDOf(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load categories")
		return
	}

	type categoryResponse struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Icon string `json:"icon,omitempty"`
		Type string `json:"type"`
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{ID: c.ID, Name: c.Name, Icon: c.Icon, Type: string(c.Type)})
	}
	writeJSON(w, http.StatusOK, out)
}
