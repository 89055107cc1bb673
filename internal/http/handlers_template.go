package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yabolb/familyflow/internal/core"
	"github.com/yabolb/familyflow/internal/storage"
)

type templateResponse struct {
	ID          string `json:"id"`
	CategoryID  string `json:"categoryId,omitempty"`
	Amount      string `json:"amount"`
	Frequency   string `json:"frequency"`
	DueDay      int    `json:"dueDay"`
	DueMonth    int    `json:"dueMonth,omitempty"`
	Description string `json:"description"`
}

func toTemplateResponse(tpl core.ExpenseTemplate) templateResponse {
	return templateResponse{
		ID:          tpl.ID,
		CategoryID:  tpl.CategoryID,
		Amount:      core.Round2(tpl.Amount).StringFixed(2),
		Frequency:   string(tpl.Frequency),
		DueDay:      tpl.DueDay,
		DueMonth:    tpl.DueMonth,
		Description: tpl.Description,
	}
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateTemplate(w, r)
	case http.MethodGet:
		s.handleListTemplates(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	familyID := familyIDOf(r)
	if familyID == "" {
		writeError(w, http.StatusBadRequest, "missing "+familyHeader+" header")
		return
	}

	var req struct {
		Amount      string `json:"amount"`
		CategoryID  string `json:"categoryId"`
		Frequency   string `json:"frequency"`
		DueDay      int    `json:"dueDay"`
		DueMonth    int    `json:"dueMonth"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	tpl := core.ExpenseTemplate{
		FamilyID:    familyID,
		CategoryID:  strings.TrimSpace(req.CategoryID),
		Amount:      amount,
		Frequency:   core.Frequency(req.Frequency),
		DueDay:      req.DueDay,
		DueMonth:    req.DueMonth,
		Active:      true,
		Description: strings.TrimSpace(req.Description),
	}
	if err := tpl.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.stores.Templates.CreateTemplate(r.Context(), tpl)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create template failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create template")
		return
	}

	// Templates shape projections for every current and future month.
	s.summaryCache.Purge()
	writeJSON(w, http.StatusCreated, toTemplateResponse(created))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	familyID := familyIDOf(r)
	if familyID == "" {
		writeError(w, http.StatusBadRequest, "missing "+familyHeader+" header")
		return
	}

	templates, err := s.stores.Templates.ListActiveTemplates(r.Context(), familyID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List templates failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load templates")
		return
	}

	out := make([]templateResponse, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, toTemplateResponse(tpl))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTemplateByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", "DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	familyID := familyIDOf(r)
	if familyID == "" {
		writeError(w, http.StatusBadRequest, "missing "+familyHeader+" header")
		return
	}
	id := pathID(r.URL.Path, "/api/templates/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing template id")
		return
	}

	if err := s.stores.Templates.DeactivateTemplate(r.Context(), familyID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "template not found")
			return
		}
		slog.ErrorContext(r.Context(), "Deactivate template failed", "error", err, "template_id", id)
		writeError(w, http.StatusInternalServerError, "could not deactivate template")
		return
	}

	s.summaryCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}
