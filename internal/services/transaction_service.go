package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yabolb/familyflow/internal/amqp"
	"github.com/yabolb/familyflow/internal/core"
	"github.com/yabolb/familyflow/internal/storage"
)

// TransactionService orchestrates transaction writes across SQLite and the
// event queue. The database write is authoritative; a failed publish is
// logged and the rollup catches up on the next rebuild.
type TransactionService struct {
	storage    *storage.Repository
	amqpClient *amqp.Client
}

func NewTransactionService(storage *storage.Repository, amqpClient *amqp.Client) *TransactionService {
	return &TransactionService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// Record validates and saves a transaction, then publishes the event.
func (s *TransactionService) Record(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, err := s.storage.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publish(ctx, amqp.NewTransactionRecorded(saved.ID, saved.FamilyID, saved.Date.Year(), int(saved.Date.Month())))
	return saved, nil
}

// Delete soft deletes a transaction and publishes a delete event so the
// affected month's rollup gets rebuilt.
func (s *TransactionService) Delete(ctx context.Context, familyID, id string) error {
	tx, err := s.storage.GetTransaction(ctx, familyID, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteTransaction(ctx, familyID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publish(ctx, amqp.NewTransactionDeleted(id, familyID, tx.Date.Year(), int(tx.Date.Month())))
	return nil
}

func (s *TransactionService) publish(ctx context.Context, msg *amqp.TransactionRecordedMessage) {
	if s.amqpClient == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping event publish")
		return
	}
	if err := s.amqpClient.PublishTransactionEvent(ctx, msg); err != nil {
		// Don't fail the request: the row is saved locally.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", msg.TransactionID, "error", err)
	}
}

// Close closes both storage and AMQP connections.
func (s *TransactionService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %v", errs)
	}
	return nil
}
