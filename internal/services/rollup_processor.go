package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yabolb/familyflow/internal/amqp"
	"github.com/yabolb/familyflow/internal/core"
	"github.com/yabolb/familyflow/internal/storage"
)

// RollupProcessor keeps the derived monthly_rollups table in step with the
// transaction event stream: recorded transactions are folded in
// incrementally, deletions trigger a full rebuild of the affected month.
type RollupProcessor struct {
	storage *storage.Repository
}

func NewRollupProcessor(storage *storage.Repository) *RollupProcessor {
	return &RollupProcessor{storage: storage}
}

// HandleEvent is the AMQP consumer callback. Returning an error requeues
// the delivery.
func (p *RollupProcessor) HandleEvent(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	month := core.NewMonth(msg.Year, time.Month(msg.Month))

	if msg.Deleted {
		if err := p.storage.RebuildRollup(ctx, msg.FamilyID, month); err != nil {
			return fmt.Errorf("rebuild rollup after delete: %w", err)
		}
		return nil
	}

	tx, err := p.storage.GetTransaction(ctx, msg.FamilyID, msg.TransactionID)
	if errors.Is(err, storage.ErrNotFound) {
		// Row deleted between publish and consume; rebuild instead.
		slog.WarnContext(ctx, "Transaction gone before rollup, rebuilding month",
			"transaction_id", msg.TransactionID)
		return p.storage.RebuildRollup(ctx, msg.FamilyID, month)
	}
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", msg.TransactionID, err)
	}

	if err := p.storage.ApplyToRollup(ctx, tx); err != nil {
		return fmt.Errorf("apply rollup: %w", err)
	}

	slog.DebugContext(ctx, "Rollup updated",
		"family_id", msg.FamilyID,
		"month", month.String())
	return nil
}
