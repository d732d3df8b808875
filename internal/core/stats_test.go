package core

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func expOn(day time.Time, cents int64, cat Category, paid bool) Expense {
	return Expense{
		ID:       uuid.New(),
		Date:     day,
		Amount:   Money{Cents: cents},
		Paid:     paid,
		Category: cat,
		Currency: DefaultCurrency,
	}
}

func TestDailyTotals(t *testing.T) {
	mon := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	wed := time.Date(2026, 3, 4, 18, 30, 0, 0, time.UTC)
	expenses := []Expense{
		expOn(mon, 1000, CategoryFood, true),
		expOn(mon.Add(4*time.Hour), 500, CategorySupplies, false),
		expOn(wed, 2000, CategoryFood, true),
		expOn(wed.AddDate(0, 0, 30), 9999, CategoryOther, true), // outside range
	}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 7, 23, 59, 59, 0, time.UTC)
	got := DailyTotals(expenses, from, to)

	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %d", len(got))
	}
	if !got[0].Day.Before(got[1].Day) {
		t.Fatal("days not ascending")
	}
	if got[0].Total.Cents != 1500 || got[1].Total.Cents != 2000 {
		t.Fatalf("unexpected totals: %d, %d", got[0].Total.Cents, got[1].Total.Cents)
	}
}

func TestDailyTotalsEmpty(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := DailyTotals(nil, from, from.AddDate(0, 0, 7)); len(got) != 0 {
		t.Fatalf("expected empty, got %d entries", len(got))
	}
}

func TestCategoryTotals(t *testing.T) {
	day := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	expenses := []Expense{
		expOn(day, 2000000, CategoryFood, false),      // 20000.00
		expOn(day, 3000000, CategoryUtilities, false), // 30000.00
	}
	got := CategoryTotals(expenses)

	if len(got) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(got))
	}
	if got[0].Category != CategoryUtilities || got[0].Total.Cents != 3000000 {
		t.Fatalf("expected utilities first with 3000000, got %+v", got[0])
	}
	if math.Abs(got[0].Percentage-60) > 1e-9 || math.Abs(got[1].Percentage-40) > 1e-9 {
		t.Fatalf("expected 60/40 split, got %f/%f", got[0].Percentage, got[1].Percentage)
	}
}

func TestCategoryTotalsPercentagesSumTo100(t *testing.T) {
	day := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	expenses := []Expense{
		expOn(day, 333, CategoryFood, true),
		expOn(day, 777, CategorySupplies, true),
		expOn(day, 111, CategorySalary, false),
		expOn(day, 999, CategoryOther, false),
	}
	got := CategoryTotals(expenses)
	var sum float64
	for _, ct := range got {
		sum += ct.Percentage
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Fatalf("percentages sum to %f, expected 100", sum)
	}
}

func TestCategoryTotalsZeroTotal(t *testing.T) {
	got := CategoryTotals(nil)
	if len(got) != 0 {
		t.Fatalf("expected no categories, got %d", len(got))
	}
}

func TestWeeklySeriesShape(t *testing.T) {
	// 2026-03-04 is a Wednesday; the containing week starts Monday 03-02.
	ref := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	expenses := []Expense{
		expOn(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), 100, CategoryFood, true),
		expOn(time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC), 200, CategoryFood, true), // Sunday
		expOn(time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC), 400, CategoryFood, true),  // next Monday
	}
	got := WeeklySeries(expenses, ref, 0)

	if len(got) != 7 {
		t.Fatalf("expected 7 entries, got %d", len(got))
	}
	if got[0].Day.Weekday() != time.Monday {
		t.Fatalf("expected Monday first, got %v", got[0].Day.Weekday())
	}
	if !got[0].Day.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected week start %v", got[0].Day)
	}
	if got[0].Total.Cents != 100 || got[6].Total.Cents != 200 {
		t.Fatalf("unexpected edge totals %d, %d", got[0].Total.Cents, got[6].Total.Cents)
	}
	var sum int64
	for _, d := range got {
		sum += d.Total.Cents
	}
	if sum != 300 {
		t.Fatalf("expected week total 300, got %d", sum)
	}
}

func TestWeeklySeriesMatchesRangeFilter(t *testing.T) {
	ref := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	var expenses []Expense
	for i := 0; i < 40; i++ {
		expenses = append(expenses, expOn(ref.AddDate(0, 0, i-20), int64(100+i), CategoryOther, i%2 == 0))
	}
	series := WeeklySeries(expenses, ref, -1)

	var seriesTotal int64
	for _, d := range series {
		seriesTotal += d.Total.Cents
	}
	from := series[0].Day
	to := series[6].Day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	var rangeTotal int64
	for _, d := range DailyTotals(expenses, from, to) {
		rangeTotal += d.Total.Cents
	}
	if seriesTotal != rangeTotal {
		t.Fatalf("series total %d != range total %d", seriesTotal, rangeTotal)
	}
}

func TestWeeklySeriesMondayReference(t *testing.T) {
	mon := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	got := WeeklySeries(nil, mon, 0)
	if !got[0].Day.Equal(mon) {
		t.Fatalf("Monday reference should start its own week, got %v", got[0].Day)
	}
	if got[6].Day.Weekday() != time.Sunday {
		t.Fatalf("expected Sunday last, got %v", got[6].Day.Weekday())
	}
}

func TestSupplierDebts(t *testing.T) {
	day := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	alpha, beta := uuid.New(), uuid.New()

	withSupplier := func(e Expense, id uuid.UUID, name string) Expense {
		e.SupplierID = id
		e.SupplierName = name
		return e
	}
	expenses := []Expense{
		withSupplier(expOn(day, 1000, CategoryFood, false), alpha, "Alpha"),
		withSupplier(expOn(day, 2500, CategoryFood, false), alpha, "Alpha"),
		withSupplier(expOn(day, 9000, CategoryFood, true), alpha, "Alpha"), // paid, excluded
		withSupplier(expOn(day, 500, CategorySupplies, false), beta, "Beta"),
		expOn(day, 700, CategoryOther, false), // dangling reference, excluded
	}
	got := SupplierDebts(expenses)

	if len(got) != 2 {
		t.Fatalf("expected 2 suppliers, got %d", len(got))
	}
	if got[0].SupplierID != alpha || got[0].Total.Cents != 3500 {
		t.Fatalf("expected Alpha first with 3500, got %+v", got[0])
	}
	if got[1].SupplierID != beta || got[1].Total.Cents != 500 {
		t.Fatalf("expected Beta with 500, got %+v", got[1])
	}
}

func TestSupplierDebtsAllPaid(t *testing.T) {
	day := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	e := expOn(day, 1000, CategoryFood, true)
	e.SupplierID = uuid.New()
	e.SupplierName = "Gamma"
	if got := SupplierDebts([]Expense{e}); len(got) != 0 {
		t.Fatalf("expected no debt entries, got %d", len(got))
	}
}
