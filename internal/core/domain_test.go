package core

import (
	"errors"
	"testing"
	"time"
)

func TestCategoryValidate(t *testing.T) {
	for _, c := range Categories() {
		if err := c.Validate(); err != nil {
			t.Fatalf("%q expected valid, got %v", c, err)
		}
	}
	if err := Category("gadgets").Validate(); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatal("expected error for zero")
	}
	if err := (Money{Cents: -100}).Validate(); err == nil {
		t.Fatal("expected error for negative")
	}
}

func TestValidateSupplierName(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"Al Rafidain Traders", nil},
		{"  Baghdad Market  ", nil},
		{"", ErrEmptySupplierName},
		{"   ", ErrEmptySupplierName},
		{"ACME 99", ErrInvalidSupplierName},
		{"Foo-Bar", ErrInvalidSupplierName},
	}
	for _, tc := range cases {
		if err := ValidateSupplierName(tc.name); !errors.Is(err, tc.err) {
			t.Fatalf("%q expected %v, got %v", tc.name, tc.err, err)
		}
	}
}

func TestNormalizeSupplierName(t *testing.T) {
	cases := []struct{ in, out string }{
		{"  Baghdad   Market ", "Baghdad Market"},
		{"Noor", "Noor"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeSupplierName(tc.in); got != tc.out {
			t.Fatalf("%q expected %q, got %q", tc.in, tc.out, got)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Date:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Amount:   Money{Cents: 5000},
		Category: CategoryFood,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Amount: Money{Cents: 5000}, Category: CategoryFood}, // zero date
		{Date: good.Date, Amount: Money{Cents: 0}, Category: CategoryFood},
		{Date: good.Date, Amount: Money{Cents: -1}, Category: CategoryFood},
		{Date: good.Date, Amount: Money{Cents: 5000}, Category: "misc"},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
