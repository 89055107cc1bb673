package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yabolb/familyflow/internal/core"
	"github.com/yabolb/familyflow/internal/storage"
)

type transactionResponse struct {
	ID          string `json:"id"`
	CategoryID  string `json:"categoryId,omitempty"`
	Category    string `json:"category,omitempty"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:          tx.ID,
		CategoryID:  tx.CategoryID,
		Amount:      core.Round2(tx.Amount).StringFixed(2),
		Date:        tx.Date.Format("2006-01-02"),
		Status:      string(tx.Status),
		Description: tx.Description,
	}
	if tx.Category != nil {
		resp.Category = tx.Category.Name
	}
	return resp
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateTransaction(w, r)
	case http.MethodGet:
		s.handleListTransactions(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	familyID := familyIDOf(r)
	if familyID == "" {
		writeError(w, http.StatusBadRequest, "missing "+familyHeader+" header")
		return
	}

	var req struct {
		Amount      string `json:"amount"`
		CategoryID  string `json:"categoryId"`
		Date        string `json:"date"`
		Status      string `json:"status"`
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

	date := time.Now().UTC()
	if req.Date != "" {
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
	}

	status := core.StatusPaid
	if req.Status != "" {
		status = core.TransactionStatus(req.Status)
	}

	tx := core.Transaction{
		FamilyID:    familyID,
		CategoryID:  strings.TrimSpace(req.CategoryID),
		Amount:      amount,
		Date:        date,
		Status:      status,
		Description: strings.TrimSpace(req.Description),
	}
	if err := tx.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := storage.WithUserID(r.Context(), userIDOf(r))
	created, err := s.recorder.Record(ctx, tx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Record transaction failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not record transaction")
		return
	}

	s.invalidateSummaries(familyID, core.MonthOf(created.Date))
	writeJSON(w, http.StatusCreated, toTransactionResponse(created))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	familyID := familyIDOf(r)
	if familyID == "" {
		writeError(w, http.StatusBadRequest, "missing "+familyHeader+" header")
		return
	}

	target, ok := monthFromQuery(r, time.Now())
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid year or month")
		return
	}

	txs, err := s.stores.Transactions.ListTransactions(r.Context(), familyID, target.Start(), target.End())
	if err != nil {
		slog.ErrorContext(r.Context(), "List transactions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
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
	id := pathID(r.URL.Path, "/api/transactions/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id")
		return
	}

	if err := s.recorder.Delete(r.Context(), familyID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		slog.ErrorContext(r.Context(), "Delete transaction failed", "error", err, "transaction_id", id)
		writeError(w, http.StatusInternalServerError, "could not delete transaction")
		return
	}

	// The deleted row's month is unknown here; drop all cached summaries
	// for safety.
	s.summaryCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}
