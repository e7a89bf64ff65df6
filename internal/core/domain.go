package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Expense TxType = "expense"
	Income  TxType = "income"
)

// Expense categories.
const (
	CategoryMeal          Category = "meal"
	CategoryHR            Category = "hr"
	CategoryPurchase      Category = "purchase"
	CategoryDeliveryGiven Category = "delivery_given"
	CategoryOther         Category = "other"
)

// Income categories.
const (
	CategoryService          Category = "service"
	CategoryDeliveryReceived Category = "delivery_received"
)

type (
	TxType string

	Category string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID          string
		Date        Date
		RawDate     string // stored date text that could not be parsed; kept verbatim
		Type        TxType
		Category    Category
		Description string
		Amount      Money
		Owner       string
	}

	// Identity is the already-authenticated caller.
	Identity struct {
		User    string
		IsAdmin bool
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrUnknownType      = errors.New("unknown transaction type")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrCategoryMismatch = errors.New("category does not belong to transaction type")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidPeriod    = errors.New("invalid period")
)

var categoryTypes = map[Category]TxType{
	CategoryMeal:             Expense,
	CategoryHR:               Expense,
	CategoryPurchase:         Expense,
	CategoryDeliveryGiven:    Expense,
	CategoryOther:            Expense,
	CategoryService:          Income,
	CategoryDeliveryReceived: Income,
}

var categoryLabels = map[Category]string{
	CategoryMeal:             "Meal",
	CategoryHR:               "HR",
	CategoryPurchase:         "Purchase",
	CategoryDeliveryGiven:    "Delivery",
	CategoryOther:            "Other",
	CategoryService:          "Service",
	CategoryDeliveryReceived: "Delivery",
}

// ExpenseCategories and IncomeCategories list categories in display order.
var (
	ExpenseCategories = []Category{CategoryMeal, CategoryHR, CategoryPurchase, CategoryDeliveryGiven, CategoryOther}
	IncomeCategories  = []Category{CategoryService, CategoryDeliveryReceived}
)

func (t TxType) IsValid() bool {
	return t == Expense || t == Income
}

func (t TxType) Label() string {
	switch t {
	case Expense:
		return "Expense"
	case Income:
		return "Income"
	}
	return string(t)
}

func (c Category) IsValid() bool {
	_, ok := categoryTypes[c]
	return ok
}

// Type returns the transaction type a category belongs to.
func (c Category) Type() (TxType, error) {
	t, ok := categoryTypes[c]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, string(c))
	}
	return t, nil
}

func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Categories returns the categories that belong to t.
func Categories(t TxType) []Category {
	switch t {
	case Expense:
		return ExpenseCategories
	case Income:
		return IncomeCategories
	}
	return nil
}

func (tx Transaction) Validate() error {
	if !tx.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, string(tx.Type))
	}
	owner, err := tx.Category.Type()
	if err != nil {
		return err
	}
	if owner != tx.Type {
		return fmt.Errorf("%w: %s/%s", ErrCategoryMismatch, tx.Type, tx.Category)
	}
	if tx.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(tx.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// HasDate reports whether the transaction carries a usable date.
func (tx Transaction) HasDate() bool {
	return !tx.Date.IsZero()
}
