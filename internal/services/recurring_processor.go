package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yabolb/familyflow/internal/core"
	"github.com/yabolb/familyflow/internal/storage"
)

// RecurringProcessor materializes due expense templates into real
// transactions, so the current month's fixed costs show up as recorded
// rows rather than projections.
type RecurringProcessor struct {
	storage      *storage.Repository
	transactions *TransactionService
}

func NewRecurringProcessor(storage *storage.Repository, transactions *TransactionService) *RecurringProcessor {
	return &RecurringProcessor{
		storage:      storage,
		transactions: transactions,
	}
}

// ProcessDueTemplates walks every active template across all families and
// records a transaction for each one that is due. Returns how many were
// materialized.
func (p *RecurringProcessor) ProcessDueTemplates(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil || p.transactions == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	templates, err := p.storage.ListAllActiveTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active templates: %w", err)
	}

	slog.InfoContext(ctx, "Processing expense templates",
		"total_active", len(templates),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, tpl := range templates {
		checker, err := GetDuenessChecker(tpl.Frequency)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping template with unknown frequency",
				"id", tpl.ID, "frequency", string(tpl.Frequency))
			continue
		}
		if !checker.IsDue(tpl, now) {
			continue
		}

		tx := core.Transaction{
			FamilyID:    tpl.FamilyID,
			CategoryID:  tpl.CategoryID,
			Amount:      tpl.Amount,
			Date:        now.UTC(),
			Status:      core.StatusPending,
			Description: tpl.Description,
		}
		if _, err := p.transactions.Record(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to materialize template",
				"template_id", tpl.ID,
				"description", tpl.Description,
				"error", err)
			continue
		}

		if err := p.storage.MarkTemplateRun(ctx, tpl.ID, now); err != nil {
			// The transaction exists; a stale last_run_at only risks a
			// duplicate on the next pass, which the month guard prevents.
			slog.ErrorContext(ctx, "Failed to update template last run",
				"template_id", tpl.ID, "error", err)
		}

		processed++
		slog.InfoContext(ctx, "Materialized template into transaction",
			"template_id", tpl.ID,
			"description", tpl.Description,
			"amount", tpl.Amount.String(),
			"frequency", string(tpl.Frequency))
	}

	slog.InfoContext(ctx, "Template processing complete",
		"processed", processed,
		"total_checked", len(templates))
	return processed, nil
}
