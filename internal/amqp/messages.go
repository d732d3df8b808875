package amqp

import (
	"encoding/json"
	"time"
)

// Ledger event types published on every successful mutation.
const (
	EventExpenseCreated  = "expense.created"
	EventExpenseUpdated  = "expense.updated"
	EventExpensePaid     = "expense.paid"
	EventExpenseDeleted  = "expense.deleted"
	EventExpenseRestored = "expense.restored"
	EventBudgetTopUp     = "budget.topup"
)

// LedgerEvent is a lightweight notification of a ledger mutation. The
// audit worker records these; consumers needing full expense data fetch
// it from storage by ID.
type LedgerEvent struct {
	Type        string    `json:"type"`
	ExpenseID   string    `json:"expense_id,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(eventType, expenseID string, amountCents int64) *LedgerEvent {
	return &LedgerEvent{
		Type:        eventType,
		ExpenseID:   expenseID,
		AmountCents: amountCents,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON parses an event from JSON bytes.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
