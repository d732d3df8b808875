package http

import (
	"net/http"
	"time"
)

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	b, err := s.ledger.Budget(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetJSON(b))
}

// handleTopUp applies the daily top-up on demand. The ledger enforces
// the once-per-day rule, so repeated calls are harmless.
func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	applied, err := s.ledger.TopUpDaily(r.Context(), time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	b, err := s.ledger.Budget(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
		"budget":  toBudgetJSON(b),
	})
}
