package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"inoff/internal/amqp"
	"inoff/internal/core"
)

// Store is the persistence boundary the ledger mutates through. Writes
// that carry a non-nil budget delta or supplier must apply every part
// in one transaction: a failed write leaves neither side applied.
// Budget deltas are applied relative to the stored value, never as a
// computed total, so writers in other processes cannot lose an update.
type Store interface {
	GetBudget(ctx context.Context) (core.Budget, error) // core.ErrNotFound when missing
	CreateBudget(ctx context.Context, b core.Budget) error
	// ApplyTopUp adds amountCents once per UTC calendar day, guarding
	// the last-top-up check and the write in a single statement.
	// Reports whether the top-up was applied.
	ApplyTopUp(ctx context.Context, amountCents int64, now time.Time) (bool, error)

	GetSupplier(ctx context.Context, id uuid.UUID) (core.Supplier, error)
	SupplierByName(ctx context.Context, name string) (core.Supplier, error) // case-insensitive
	SearchSuppliers(ctx context.Context, prefix string, limit int) ([]core.Supplier, error)
	DeleteSupplier(ctx context.Context, id uuid.UUID) error // nullifies expense references

	GetExpense(ctx context.Context, id uuid.UUID) (core.Expense, error)
	InsertExpense(ctx context.Context, e core.Expense, newSupplier *core.Supplier, budgetDeltaCents *int64) error
	UpdateExpense(ctx context.Context, e core.Expense, budgetDeltaCents *int64) error
	DeleteExpense(ctx context.Context, id uuid.UUID, budgetDeltaCents *int64) error
	// RestoreExpense re-inserts a deleted expense, overwriting the
	// budget with the carried snapshot when non-nil.
	RestoreExpense(ctx context.Context, e core.Expense, budget *core.Budget) error
	ListExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error)
}

// EventPublisher publishes ledger lifecycle events. Implemented by
// amqp.Client; nil-able in the service for broker-less deployments.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}
