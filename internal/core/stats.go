package core

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DailyTotal is one calendar day's spend.
type DailyTotal struct {
	Day   time.Time
	Total Money
}

// CategoryTotal is a category's spend and its share of the grand total.
type CategoryTotal struct {
	Category   Category
	Total      Money
	Percentage float64
}

// SupplierDebt is the outstanding unpaid amount owed to one supplier.
type SupplierDebt struct {
	SupplierID   uuid.UUID
	SupplierName string
	Total        Money
}

// dayOf truncates t to midnight in loc. All grouping in this file keys
// on the caller's location so results are deterministic for a given
// input.
func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DailyTotals groups expenses by calendar day within [from, to],
// ascending by day. Days without expenses are omitted; use WeeklySeries
// for a zero-filled fixed window.
func DailyTotals(expenses []Expense, from, to time.Time) []DailyTotal {
	loc := from.Location()
	totals := make(map[time.Time]int64)
	for _, e := range expenses {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		totals[dayOf(e.Date, loc)] += e.Amount.Cents
	}
	out := make([]DailyTotal, 0, len(totals))
	for day, cents := range totals {
		out = append(out, DailyTotal{Day: day, Total: Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// CategoryTotals sums expenses per category, descending by total.
// Percentages are of the grand total and are all zero when the grand
// total is zero.
func CategoryTotals(expenses []Expense) []CategoryTotal {
	totals := make(map[Category]int64)
	var grand int64
	for _, e := range expenses {
		totals[e.Category] += e.Amount.Cents
		grand += e.Amount.Cents
	}
	out := make([]CategoryTotal, 0, len(totals))
	for cat, cents := range totals {
		pct := 0.0
		if grand > 0 {
			pct = 100 * float64(cents) / float64(grand)
		}
		out = append(out, CategoryTotal{Category: cat, Total: Money{Cents: cents}, Percentage: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// WeeklySeries returns exactly 7 entries, Monday first, for the week
// containing reference shifted by weekOffset weeks. The week starts at
// the Monday on-or-before the shifted reference day. Days without
// expenses carry a zero total.
func WeeklySeries(expenses []Expense, reference time.Time, weekOffset int) []DailyTotal {
	loc := reference.Location()
	ref := dayOf(reference, loc).AddDate(0, 0, 7*weekOffset)

	// time.Weekday puts Sunday at 0; rotate so Monday is 0.
	back := (int(ref.Weekday()) + 6) % 7
	monday := ref.AddDate(0, 0, -back)

	series := make([]DailyTotal, 7)
	index := make(map[time.Time]int, 7)
	for i := range series {
		day := monday.AddDate(0, 0, i)
		series[i] = DailyTotal{Day: day}
		index[day] = i
	}
	for _, e := range expenses {
		if i, ok := index[dayOf(e.Date, loc)]; ok {
			series[i].Total.Cents += e.Amount.Cents
		}
	}
	return series
}

// SupplierDebts sums unpaid expenses per supplier, descending by total.
// Suppliers with no unpaid expenses do not appear, and expenses whose
// supplier reference has been nullified are excluded.
func SupplierDebts(expenses []Expense) []SupplierDebt {
	totals := make(map[uuid.UUID]*SupplierDebt)
	for _, e := range expenses {
		if e.Paid || e.SupplierID == uuid.Nil {
			continue
		}
		d, ok := totals[e.SupplierID]
		if !ok {
			d = &SupplierDebt{SupplierID: e.SupplierID, SupplierName: e.SupplierName}
			totals[e.SupplierID] = d
		}
		d.Total.Cents += e.Amount.Cents
	}
	out := make([]SupplierDebt, 0, len(totals))
	for _, d := range totals {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].SupplierName < out[j].SupplierName
	})
	return out
}
