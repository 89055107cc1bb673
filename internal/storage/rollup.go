package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/yabolb/familyflow/internal/core"
)

// MonthlyRollup is a small query-friendly aggregate per family and month.
// It is derived data: the rollup worker maintains it from transaction
// events and RebuildRollup can always reconstruct it from the ledger.
type MonthlyRollup struct {
	FamilyID      string
	Year          int
	Month         int
	TotalFixed    decimal.Decimal
	TotalVariable decimal.Decimal
	TxCount       int
}

// ApplyToRollup folds one recorded transaction into its month's rollup.
func (r *Repository) ApplyToRollup(ctx context.Context, tx core.Transaction) error {
	fixed := decimal.Zero
	variable := decimal.Zero
	if tx.BucketType() == core.CategoryFixed {
		fixed = tx.Amount
	} else {
		variable = tx.Amount
	}

	const q = `INSERT INTO monthly_rollups (family_id, year, month, total_fixed, total_variable, tx_count, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (family_id, year, month) DO UPDATE SET
			total_fixed    = CAST(CAST(total_fixed AS REAL) + CAST(excluded.total_fixed AS REAL) AS TEXT),
			total_variable = CAST(CAST(total_variable AS REAL) + CAST(excluded.total_variable AS REAL) AS TEXT),
			tx_count       = tx_count + 1,
			updated_at     = CURRENT_TIMESTAMP`
	_, err := r.db.ExecContext(ctx, q,
		tx.FamilyID, tx.Date.Year(), int(tx.Date.Month()),
		fixed.String(), variable.String())
	if err != nil {
		return fmt.Errorf("apply rollup: %w", err)
	}
	return nil
}

// RebuildRollup recomputes one month's rollup from the transactions table.
// Used after deletions, when incremental upkeep would drift.
func (r *Repository) RebuildRollup(ctx context.Context, familyID string, month core.Month) error {
	txs, err := r.ListTransactions(ctx, familyID, month.Start(), month.End())
	if err != nil {
		return fmt.Errorf("rebuild rollup: %w", err)
	}

	var fixed, variable decimal.Decimal
	for _, tx := range txs {
		if tx.BucketType() == core.CategoryFixed {
			fixed = fixed.Add(tx.Amount)
		} else {
			variable = variable.Add(tx.Amount)
		}
	}

	const q = `INSERT INTO monthly_rollups (family_id, year, month, total_fixed, total_variable, tx_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (family_id, year, month) DO UPDATE SET
			total_fixed    = excluded.total_fixed,
			total_variable = excluded.total_variable,
			tx_count       = excluded.tx_count,
			updated_at     = CURRENT_TIMESTAMP`
	_, err = r.db.ExecContext(ctx, q,
		familyID, month.Year, int(month.Month),
		fixed.String(), variable.String(), len(txs))
	if err != nil {
		return fmt.Errorf("store rollup: %w", err)
	}

	slog.InfoContext(ctx, "Monthly rollup rebuilt",
		"family_id", familyID,
		"month", month.String(),
		"tx_count", len(txs))
	return nil
}

// GetRollup reads one month's rollup.
func (r *Repository) GetRollup(ctx context.Context, familyID string, month core.Month) (MonthlyRollup, error) {
	const q = `SELECT family_id, year, month, total_fixed, total_variable, tx_count
		FROM monthly_rollups WHERE family_id = ? AND year = ? AND month = ?`
	var (
		ru          MonthlyRollup
		rawFixed    string
		rawVariable string
	)
	err := r.db.QueryRowContext(ctx, q, familyID, month.Year, int(month.Month)).
		Scan(&ru.FamilyID, &ru.Year, &ru.Month, &rawFixed, &rawVariable, &ru.TxCount)
	if err != nil {
		return MonthlyRollup{}, fmt.Errorf("get rollup: %w", err)
	}
	ru.TotalFixed = scanAmount(ctx, rawFixed, "monthly_rollups", familyID)
	ru.TotalVariable = scanAmount(ctx, rawVariable, "monthly_rollups", familyID)
	return ru, nil
}
