package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"inoff/internal/core"
	"inoff/internal/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// parseDate parses a date string in YYYY-MM-DD format.
func parseDate(dateStr string) (time.Time, error) {
	return time.Parse("2006-01-02", dateStr)
}

// parseDateRange extracts an optional from/to range from query parameters.
// The to bound is exclusive; a bare date is widened to the end of that day.
func parseDateRange(r *http.Request) (from, to time.Time, err error) {
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		from, err = parseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q", v)
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		to, err = parseDate(v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q", v)
		}
		to = to.AddDate(0, 0, 1)
	}
	return from, to, nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrEmptySupplierName),
		errors.Is(err, core.ErrInvalidSupplierName):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
			log.FieldPath, r.URL.Path)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	w.WriteHeader(http.StatusMethodNotAllowed)
}

type expenseJSON struct {
	ID           string `json:"id"`
	Details      string `json:"details"`
	Date         string `json:"date"`
	AmountCents  int64  `json:"amount_cents"`
	Amount       string `json:"amount"`
	Paid         bool   `json:"paid"`
	Category     string `json:"category"`
	Currency     string `json:"currency"`
	SupplierID   string `json:"supplier_id,omitempty"`
	SupplierName string `json:"supplier_name,omitempty"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	out := expenseJSON{
		ID:           e.ID.String(),
		Details:      e.Details,
		Date:         e.Date.Format("2006-01-02"),
		AmountCents:  e.Amount.Cents,
		Amount:       e.Amount.String(),
		Paid:         e.Paid,
		Category:     string(e.Category),
		Currency:     e.Currency,
		SupplierName: e.SupplierName,
	}
	if e.SupplierID != uuid.Nil {
		out.SupplierID = e.SupplierID.String()
	}
	return out
}

func toExpenseListJSON(items []core.Expense) []expenseJSON {
	out := make([]expenseJSON, len(items))
	for i, e := range items {
		out[i] = toExpenseJSON(e)
	}
	return out
}

type budgetJSON struct {
	CurrentCents int64  `json:"current_cents"`
	Current      string `json:"current"`
	LastTopUp    string `json:"last_top_up,omitempty"`
}

func toBudgetJSON(b core.Budget) budgetJSON {
	out := budgetJSON{
		CurrentCents: b.Current.Cents,
		Current:      b.Current.String(),
	}
	if !b.LastTopUp.IsZero() {
		out.LastTopUp = b.LastTopUp.Format(time.RFC3339)
	}
	return out
}
