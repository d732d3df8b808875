package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"inoff/internal/core"
	"inoff/internal/log"
	"inoff/internal/services"
)

type createExpenseRequest struct {
	Details  string `json:"details"`
	Date     string `json:"date"`
	Amount   string `json:"amount"`
	Paid     bool   `json:"paid"`
	Category string `json:"category"`
	Currency string `json:"currency"`
	Supplier string `json:"supplier"`
	Photo    []byte `json:"photo,omitempty"`
}

type updateExpenseRequest struct {
	ID       string `json:"id"`
	Details  string `json:"details"`
	Date     string `json:"date"`
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Currency string `json:"currency"`
	Photo    []byte `json:"photo,omitempty"`
}

type expenseIDRequest struct {
	ID string `json:"id"`
}

// handleExpenses routes GET to listing and POST to creation.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListExpenses(w, r)
	case http.MethodPost:
		s.handleCreateExpense(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Decode create request failed", log.FieldError, err.Error())
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	date := time.Now()
	if v := strings.TrimSpace(req.Date); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(req.Amount))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid amount"})
		return
	}

	in := services.CreateExpenseInput{
		Details:      sanitizeInput(req.Details),
		Date:         date,
		Amount:       core.Money{Cents: cents},
		Paid:         req.Paid,
		Category:     core.Category(sanitizeInput(req.Category)),
		Currency:     sanitizeInput(req.Currency),
		SupplierName: sanitizeInput(req.Supplier),
		Photo:        req.Photo,
	}

	e, err := s.ledger.CreateExpense(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.structured.LogExpenseCreated(r.Context(), e.ID.String(), e.Amount.Cents, string(e.Category), e.Paid)
	s.purgeStatsCaches()
	writeJSON(w, http.StatusCreated, toExpenseJSON(e))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	f := core.ExpenseFilter{
		From:     from,
		To:       to,
		Category: core.Category(strings.TrimSpace(r.URL.Query().Get("category"))),
		Search:   sanitizeInput(r.URL.Query().Get("q")),
	}
	if v := strings.TrimSpace(r.URL.Query().Get("paid")); v != "" {
		paid := v == "true" || v == "1"
		f.Paid = &paid
	}
	if v := strings.TrimSpace(r.URL.Query().Get("supplier_id")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid supplier_id"})
			return
		}
		f.SupplierID = id
	}
	if f.Category != "" {
		if err := f.Category.Validate(); err != nil {
			writeError(w, r, err)
			return
		}
	}

	items, err := s.ledger.Expenses(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseListJSON(items))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req updateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(req.ID))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expense id"})
		return
	}

	var date time.Time
	if v := strings.TrimSpace(req.Date); v != "" {
		date, err = parseDate(v)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
	}

	// Omitted fields keep their stored value.
	var amount core.Money
	if v := strings.TrimSpace(req.Amount); v != "" {
		cents, err := core.ParseDecimalToCents(v)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid amount"})
			return
		}
		amount = core.Money{Cents: cents}
	}

	in := services.UpdateExpenseInput{
		ID:       id,
		Details:  sanitizeInput(req.Details),
		Date:     date,
		Amount:   amount,
		Category: core.Category(sanitizeInput(req.Category)),
		Currency: sanitizeInput(req.Currency),
		Photo:    req.Photo,
	}

	e, err := s.ledger.UpdateExpense(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.purgeStatsCaches()
	writeJSON(w, http.StatusOK, toExpenseJSON(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	id, ok := decodeIDRequest(w, r)
	if !ok {
		return
	}

	if err := s.ledger.DeleteExpense(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	s.purgeStatsCaches()
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":        id.String(),
		"undo_available": s.ledger.UndoAvailable(),
	})
}

func (s *Server) handleUndoDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	restored, err := s.ledger.UndoLastDelete(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if restored == nil {
		writeJSON(w, http.StatusOK, map[string]any{"restored": nil})
		return
	}

	s.purgeStatsCaches()
	writeJSON(w, http.StatusOK, map[string]any{"restored": toExpenseJSON(*restored)})
}

func (s *Server) handleMarkAsPaid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	id, ok := decodeIDRequest(w, r)
	if !ok {
		return
	}

	e, err := s.ledger.MarkAsPaid(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.purgeStatsCaches()
	writeJSON(w, http.StatusOK, toExpenseJSON(e))
}

func (s *Server) handleSuggestSuppliers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	suppliers, err := s.ledger.SuggestSuppliers(r.Context(), sanitizeInput(r.URL.Query().Get("q")))
	if err != nil {
		writeError(w, r, err)
		return
	}

	type supplierJSON struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	out := make([]supplierJSON, len(suppliers))
	for i, sup := range suppliers {
		out[i] = supplierJSON{ID: sup.ID.String(), Name: sup.Name}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	id, ok := decodeIDRequest(w, r)
	if !ok {
		return
	}

	if err := s.ledger.DeleteSupplier(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	s.purgeStatsCaches()
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id.String()})
}

func decodeIDRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req expenseIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(req.ID))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}
