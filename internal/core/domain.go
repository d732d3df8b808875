package core

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	CategoryFood      Category = "food"
	CategorySupplies  Category = "supplies"
	CategoryUtilities Category = "utilities"
	CategorySalary    Category = "salary"
	CategoryOther     Category = "other"

	DefaultCurrency = "IQD"
)

type (
	Category string

	Money struct {
		Cents int64
	}

	Supplier struct {
		ID   uuid.UUID
		Name string
	}

	Expense struct {
		ID       uuid.UUID
		Details  string
		Date     time.Time
		Amount   Money
		Paid     bool
		Category Category
		Currency string
		Photo    []byte

		// SupplierID is a weak reference: uuid.Nil after the supplier
		// has been deleted. SupplierName is denormalized on reads.
		SupplierID   uuid.UUID
		SupplierName string
	}

	Budget struct {
		Current   Money
		LastTopUp time.Time
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("date cannot be zero")
	ErrInvalidCategory     = errors.New("unknown category")
	ErrEmptySupplierName   = errors.New("empty supplier name")
	ErrInvalidSupplierName = errors.New("supplier name must contain only letters and spaces")
	ErrNotFound            = errors.New("not found")
)

// Categories lists the supported expense categories in display order.
func Categories() []Category {
	return []Category{CategoryFood, CategorySupplies, CategoryUtilities, CategorySalary, CategoryOther}
}

func (c Category) Validate() error {
	switch c {
	case CategoryFood, CategorySupplies, CategoryUtilities, CategorySalary, CategoryOther:
		return nil
	}
	return ErrInvalidCategory
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// NormalizeSupplierName trims surrounding whitespace and collapses
// internal runs of whitespace to single spaces.
func NormalizeSupplierName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// ValidateSupplierName checks the normalized name: non-empty, letters
// and spaces only.
func ValidateSupplierName(name string) error {
	name = NormalizeSupplierName(name)
	if name == "" {
		return ErrEmptySupplierName
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return ErrInvalidSupplierName
		}
	}
	return nil
}

func (s Supplier) Validate() error {
	return ValidateSupplierName(s.Name)
}

func (e Expense) Validate() error {
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Category.Validate(); err != nil {
		return err
	}
	if len(e.Details) > 200 {
		return errors.New("details too long (max 200 characters)")
	}
	return nil
}

// ExpenseFilter narrows expense reads. Zero values mean "no constraint".
type ExpenseFilter struct {
	From       time.Time
	To         time.Time
	Category   Category
	Paid       *bool
	SupplierID uuid.UUID
	Search     string // case-insensitive substring on details and supplier name
}
