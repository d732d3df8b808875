package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"inoff/internal/core"
)

type dailyTotalJSON struct {
	Day        string `json:"day"`
	TotalCents int64  `json:"total_cents"`
	Total      string `json:"total"`
}

type categoryTotalJSON struct {
	Category   string  `json:"category"`
	TotalCents int64   `json:"total_cents"`
	Total      string  `json:"total"`
	Percentage float64 `json:"percentage"`
}

type supplierDebtJSON struct {
	SupplierID   string `json:"supplier_id"`
	SupplierName string `json:"supplier_name"`
	TotalCents   int64  `json:"total_cents"`
	Total        string `json:"total"`
}

func toDailyJSON(totals []core.DailyTotal) []dailyTotalJSON {
	out := make([]dailyTotalJSON, len(totals))
	for i, t := range totals {
		out[i] = dailyTotalJSON{
			Day:        t.Day.Format("2006-01-02"),
			TotalCents: t.Total.Cents,
			Total:      t.Total.String(),
		}
	}
	return out
}

// statsRange parses from/to, defaulting to the last 30 days.
func statsRange(r *http.Request) (from, to time.Time, err error) {
	from, to, err = parseDateRange(r)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	now := time.Now()
	if to.IsZero() {
		to = now.AddDate(0, 0, 1)
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -31)
	}
	return from, to, nil
}

func rangeKey(from, to time.Time) string {
	return from.Format("2006-01-02") + "|" + to.Format("2006-01-02")
}

func (s *Server) handleDailyTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	from, to, err := statsRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	key := rangeKey(from, to)
	totals, found := s.dailyCache.Get(key)
	if !found {
		expenses, err := s.ledger.Expenses(r.Context(), core.ExpenseFilter{From: from, To: to})
		if err != nil {
			writeError(w, r, err)
			return
		}
		totals = core.DailyTotals(expenses, from, to)
		s.dailyCache.Set(key, totals)
	}

	writeJSON(w, http.StatusOK, toDailyJSON(totals))
}

func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	from, to, err := statsRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	key := rangeKey(from, to)
	totals, found := s.categoryCache.Get(key)
	if !found {
		expenses, err := s.ledger.Expenses(r.Context(), core.ExpenseFilter{From: from, To: to})
		if err != nil {
			writeError(w, r, err)
			return
		}
		totals = core.CategoryTotals(expenses)
		s.categoryCache.Set(key, totals)
	}

	out := make([]categoryTotalJSON, len(totals))
	for i, t := range totals {
		out[i] = categoryTotalJSON{
			Category:   string(t.Category),
			TotalCents: t.Total.Cents,
			Total:      t.Total.String(),
			Percentage: t.Percentage,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWeeklySeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	offset := 0
	if v := strings.TrimSpace(r.URL.Query().Get("offset")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "offset must be zero or negative"})
			return
		}
		offset = parsed
	}

	now := time.Now()
	key := now.Format("2006-01-02") + "|" + strconv.Itoa(offset)
	series, found := s.weeklyCache.Get(key)
	if !found {
		// Fetch the full Monday-to-Sunday span of the requested week,
		// including days of the current week that are still ahead.
		wd := (int(now.Weekday()) + 6) % 7
		weekStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
			AddDate(0, 0, -wd+offset*7)
		from := weekStart
		to := weekStart.AddDate(0, 0, 7)
		expenses, err := s.ledger.Expenses(r.Context(), core.ExpenseFilter{From: from, To: to})
		if err != nil {
			writeError(w, r, err)
			return
		}
		series = core.WeeklySeries(expenses, now, offset)
		s.weeklyCache.Set(key, series)
	}

	writeJSON(w, http.StatusOK, toDailyJSON(series))
}

func (s *Server) handleSupplierDebts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	const key = "all"
	debts, found := s.debtCache.Get(key)
	if !found {
		unpaid := false
		expenses, err := s.ledger.Expenses(r.Context(), core.ExpenseFilter{Paid: &unpaid})
		if err != nil {
			writeError(w, r, err)
			return
		}
		debts = core.SupplierDebts(expenses)
		s.debtCache.Set(key, debts)
	}

	out := make([]supplierDebtJSON, len(debts))
	for i, d := range debts {
		out[i] = supplierDebtJSON{
			SupplierID:   d.SupplierID.String(),
			SupplierName: d.SupplierName,
			TotalCents:   d.Total.Cents,
			Total:        d.Total.String(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}
