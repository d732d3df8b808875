// Package services holds the ledger engine: the single-writer
// orchestration layer that keeps the budget balance consistent with the
// expense collection across create, edit, pay, delete, undo, and the
// daily top-up.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"inoff/internal/amqp"
	"inoff/internal/core"
)

// Defaults match the original deployment: a fresh ledger starts at
// 1,000,000.00 and the same amount is added once per calendar day.
const (
	DefaultBudgetCents     int64 = 100_000_000
	DefaultDailyTopUpCents int64 = 100_000_000
)

// deletedExpense is one undo-stack entry: the full snapshot plus the
// budget value captured before the delete's refund was applied.
type deletedExpense struct {
	expense      core.Expense
	wasPaid      bool
	budgetBefore core.Money
}

// LedgerService funnels every budget-affecting mutation through one
// mutex so the budget and the expense set can never be observed
// mid-transition. Budget writes ride in the same storage transaction as
// the expense write, so a persistence failure rolls both back. Budget
// movements are expressed as relative deltas, so a second process
// writing the same budget row (the top-up worker) cannot lose them.
type LedgerService struct {
	mu     sync.Mutex
	store  Store
	events EventPublisher

	defaultBudget core.Money
	dailyTopUp    core.Money

	undo []deletedExpense
}

type CreateExpenseInput struct {
	Details      string
	Date         time.Time
	Amount       core.Money
	Paid         bool
	Category     core.Category
	Currency     string
	SupplierName string
	Photo        []byte
}

type UpdateExpenseInput struct {
	ID       uuid.UUID
	Details  string
	Date     time.Time
	Amount   core.Money
	Category core.Category
	Currency string
	Photo    []byte
}

func NewLedgerService(store Store, events EventPublisher) *LedgerService {
	return &LedgerService{
		store:         store,
		events:        events,
		defaultBudget: core.Money{Cents: DefaultBudgetCents},
		dailyTopUp:    core.Money{Cents: DefaultDailyTopUpCents},
	}
}

// SetAmounts overrides the default budget seed and daily top-up,
// typically from configuration.
func (s *LedgerService) SetAmounts(defaultBudget, dailyTopUp core.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if defaultBudget.Cents > 0 {
		s.defaultBudget = defaultBudget
	}
	if dailyTopUp.Cents > 0 {
		s.dailyTopUp = dailyTopUp
	}
}

// EnsureBudget creates the singleton budget with the default amount if
// none exists yet. Called once at startup; "no budget" is never a fatal
// state anywhere else.
func (s *LedgerService) EnsureBudget(ctx context.Context) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureBudgetLocked(ctx)
}

func (s *LedgerService) ensureBudgetLocked(ctx context.Context) (core.Budget, error) {
	b, err := s.store.GetBudget(ctx)
	if errors.Is(err, core.ErrNotFound) {
		b = core.Budget{Current: s.defaultBudget}
		if err := s.store.CreateBudget(ctx, b); err != nil {
			return core.Budget{}, fmt.Errorf("create default budget: %w", err)
		}
		slog.InfoContext(ctx, "Created default budget", "amount_cents", b.Current.Cents)
		return b, nil
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// Budget returns the current budget.
func (s *LedgerService) Budget(ctx context.Context) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureBudgetLocked(ctx)
}

// CreateExpense validates input, resolves the supplier name against
// existing suppliers case-insensitively (creating one on demand), and
// persists the expense. A paid expense debits the budget in the same
// transaction.
func (s *LedgerService) CreateExpense(ctx context.Context, in CreateExpenseInput) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := core.ValidateSupplierName(in.SupplierName); err != nil {
		return core.Expense{}, err
	}
	name := core.NormalizeSupplierName(in.SupplierName)

	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	currency := in.Currency
	if currency == "" {
		currency = core.DefaultCurrency
	}
	category := in.Category
	if category == "" {
		category = core.CategoryOther
	}

	e := core.Expense{
		ID:       uuid.New(),
		Details:  strings.TrimSpace(in.Details),
		Date:     date,
		Amount:   in.Amount,
		Paid:     in.Paid,
		Category: category,
		Currency: currency,
		Photo:    in.Photo,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	var newSupplier *core.Supplier
	supplier, err := s.store.SupplierByName(ctx, name)
	switch {
	case errors.Is(err, core.ErrNotFound):
		supplier = core.Supplier{ID: uuid.New(), Name: name}
		newSupplier = &supplier
	case err != nil:
		return core.Expense{}, fmt.Errorf("resolve supplier: %w", err)
	}
	e.SupplierID = supplier.ID
	e.SupplierName = supplier.Name

	var budgetDelta *int64
	if e.Paid {
		if _, err := s.ensureBudgetLocked(ctx); err != nil {
			return core.Expense{}, err
		}
		d := -e.Amount.Cents
		budgetDelta = &d
	}

	if err := s.store.InsertExpense(ctx, e, newSupplier, budgetDelta); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	s.publish(ctx, amqp.EventExpenseCreated, e.ID.String(), e.Amount.Cents)
	slog.InfoContext(ctx, "Expense created",
		"id", e.ID,
		"amount_cents", e.Amount.Cents,
		"paid", e.Paid,
		"category", e.Category,
		"supplier", e.SupplierName)
	return e, nil
}

// UpdateExpense edits an expense's fields. Zero-valued input fields
// keep their current value; an update cannot clear a field. The budget
// moves by the amount delta only when the expense is paid: editing an
// unpaid expense never touches the budget.
func (s *LedgerService) UpdateExpense(ctx context.Context, in UpdateExpenseInput) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.store.GetExpense(ctx, in.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}

	updated := cur
	if d := strings.TrimSpace(in.Details); d != "" {
		updated.Details = d
	}
	if !in.Date.IsZero() {
		updated.Date = in.Date
	}
	if in.Amount.Cents != 0 {
		updated.Amount = in.Amount
	}
	if in.Category != "" {
		updated.Category = in.Category
	}
	if in.Currency != "" {
		updated.Currency = in.Currency
	}
	if in.Photo != nil {
		updated.Photo = in.Photo
	}
	if err := updated.Validate(); err != nil {
		return core.Expense{}, err
	}

	var budgetDelta *int64
	if delta := updated.Amount.Cents - cur.Amount.Cents; cur.Paid && delta != 0 {
		if _, err := s.ensureBudgetLocked(ctx); err != nil {
			return core.Expense{}, err
		}
		d := -delta
		budgetDelta = &d
	}

	if err := s.store.UpdateExpense(ctx, updated, budgetDelta); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.publish(ctx, amqp.EventExpenseUpdated, updated.ID.String(), updated.Amount.Cents)
	return updated, nil
}

// MarkAsPaid transitions an expense from unpaid to paid and debits the
// budget. Idempotent: an already-paid expense is returned unchanged and
// the budget is never debited twice.
func (s *LedgerService) MarkAsPaid(ctx context.Context, id uuid.UUID) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	if e.Paid {
		return e, nil
	}

	if _, err := s.ensureBudgetLocked(ctx); err != nil {
		return core.Expense{}, err
	}
	e.Paid = true
	d := -e.Amount.Cents

	if err := s.store.UpdateExpense(ctx, e, &d); err != nil {
		return core.Expense{}, fmt.Errorf("mark paid: %w", err)
	}

	s.publish(ctx, amqp.EventExpensePaid, e.ID.String(), e.Amount.Cents)
	slog.InfoContext(ctx, "Expense marked paid", "id", e.ID, "amount_cents", e.Amount.Cents)
	return e, nil
}

// DeleteExpense removes an expense, refunding the budget when the
// expense was paid, and pushes an undo record. The record captures the
// budget value from before the refund.
func (s *LedgerService) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	b, err := s.ensureBudgetLocked(ctx)
	if err != nil {
		return err
	}
	before := b.Current

	var budgetDelta *int64
	if e.Paid {
		d := e.Amount.Cents
		budgetDelta = &d
	}

	if err := s.store.DeleteExpense(ctx, id, budgetDelta); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.undo = append(s.undo, deletedExpense{expense: e, wasPaid: e.Paid, budgetBefore: before})
	s.publish(ctx, amqp.EventExpenseDeleted, e.ID.String(), e.Amount.Cents)
	slog.InfoContext(ctx, "Expense deleted", "id", e.ID, "was_paid", e.Paid)
	return nil
}

// UndoAvailable reports whether an undo record is pending. Single-level
// LIFO, in-memory only: restarts clear it.
func (s *LedgerService) UndoAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

// UndoLastDelete restores the most recently deleted expense. A paid
// expense's budget is restored to its exact pre-delete value, an
// absolute overwrite: top-ups or other mutations applied between the
// delete and the undo are discarded. A supplier deleted in the
// meantime is not resurrected; the restored expense carries a nil
// reference instead. Returns (nil, nil) when the stack is empty.
func (s *LedgerService) UndoLastDelete(ctx context.Context) (*core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undo) == 0 {
		return nil, nil
	}
	rec := s.undo[len(s.undo)-1]
	e := rec.expense

	if e.SupplierID != uuid.Nil {
		_, err := s.store.GetSupplier(ctx, e.SupplierID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			e.SupplierID = uuid.Nil
			e.SupplierName = ""
		case err != nil:
			return nil, fmt.Errorf("check supplier: %w", err)
		}
	}

	var budget *core.Budget
	if rec.wasPaid {
		b, err := s.ensureBudgetLocked(ctx)
		if err != nil {
			return nil, err
		}
		b.Current = rec.budgetBefore
		budget = &b
	}

	if err := s.store.RestoreExpense(ctx, e, budget); err != nil {
		return nil, fmt.Errorf("restore expense: %w", err)
	}
	s.undo = s.undo[:len(s.undo)-1]

	s.publish(ctx, amqp.EventExpenseRestored, e.ID.String(), e.Amount.Cents)
	slog.InfoContext(ctx, "Expense restored", "id", e.ID, "was_paid", rec.wasPaid)
	return &e, nil
}

// TopUpDaily adds the fixed daily amount at most once per UTC calendar
// day, keyed on the persisted last top-up timestamp. The day check and
// the write happen in one storage statement, so a second process
// racing on the same day cannot apply the top-up twice. Returns
// whether a top-up was applied.
func (s *LedgerService) TopUpDaily(ctx context.Context, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ensureBudgetLocked(ctx); err != nil {
		return false, err
	}
	applied, err := s.store.ApplyTopUp(ctx, s.dailyTopUp.Cents, now)
	if err != nil {
		return false, fmt.Errorf("top up budget: %w", err)
	}
	if !applied {
		return false, nil
	}

	s.publish(ctx, amqp.EventBudgetTopUp, "", s.dailyTopUp.Cents)
	slog.InfoContext(ctx, "Daily top-up applied", "amount_cents", s.dailyTopUp.Cents)
	return true, nil
}

// DeleteSupplier removes a supplier, nullifying the supplier reference
// on its expenses rather than cascading. Expenses survive with a
// dangling-free nil reference.
func (s *LedgerService) DeleteSupplier(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteSupplier(ctx, id); err != nil {
		return fmt.Errorf("delete supplier: %w", err)
	}
	slog.InfoContext(ctx, "Supplier deleted", "id", id)
	return nil
}

// Expenses returns expenses matching the filter.
func (s *LedgerService) Expenses(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, f)
}

// SuggestSuppliers returns suppliers whose names start with the typed
// prefix, for form autocomplete.
func (s *LedgerService) SuggestSuppliers(ctx context.Context, prefix string) ([]core.Supplier, error) {
	prefix = core.NormalizeSupplierName(prefix)
	if prefix == "" {
		return nil, nil
	}
	return s.store.SearchSuppliers(ctx, prefix, 10)
}

func (s *LedgerService) publish(ctx context.Context, eventType, expenseID string, amountCents int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(eventType, expenseID, amountCents)); err != nil {
		// The mutation already committed; never fail the user action
		// over a broker problem.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", eventType,
			"expense_id", expenseID,
			"error", err)
	}
}
