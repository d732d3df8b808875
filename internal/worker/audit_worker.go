package worker

import (
	"context"
	"fmt"
	"log/slog"

	"inoff/internal/amqp"
	"inoff/internal/storage"
)

// AuditWorker consumes ledger events and records them in the audit log.
type AuditWorker struct {
	storage *storage.SQLiteRepository
}

func NewAuditWorker(storage *storage.SQLiteRepository) *AuditWorker {
	return &AuditWorker{storage: storage}
}

// HandleEvent processes a single ledger event from AMQP.
func (w *AuditWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"type", ev.Type,
		"expense_id", ev.ExpenseID,
		"amount_cents", ev.AmountCents)

	if err := w.storage.InsertAuditEvent(ctx, ev.Type, ev.ExpenseID, ev.AmountCents, ev.Timestamp); err != nil {
		return fmt.Errorf("record ledger event: %w", err)
	}

	return nil
}
