// Package rules turns category-specific form input into a transaction
// amount and description.
//
// Every category has exactly one Form implementation. Checks run in the
// order the form declares its fields and stop at the first failure.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"carteira/internal/core"
)

// MealAllowancePerPerson caps what a meal can be reimbursed for, per head.
var MealAllowancePerPerson = core.Euro(12)

// MealType distinguishes lunch from dinner on meal expenses.
type MealType string

const (
	Lunch  MealType = "lunch"
	Dinner MealType = "dinner"
)

var MealTypes = []MealType{Lunch, Dinner}

func (m MealType) Label() string {
	switch m {
	case Lunch:
		return "Lunch"
	case Dinner:
		return "Dinner"
	}
	return string(m)
}

var (
	ErrRequired       = errors.New("required")
	ErrNotPositive    = errors.New("must be greater than zero")
	ErrPeopleCount    = errors.New("must be at least one person")
	ErrNamesMismatch  = errors.New("one name per person is required")
	ErrInvalidMeal    = errors.New("invalid meal type")
	ErrInvalidFlow    = errors.New("delivery must be an expense or an income")
	ErrUnhandledInput = errors.New("no rule for category")
)

// FieldError is a problem with a single form field.
type FieldError struct {
	Field string `json:"field"`
	Err   error  `json:"-"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e FieldError) Unwrap() error { return e.Err }

// FieldErrors is the validation result of a form. Rules only ever report
// the first failing check.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, e := range fe {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func (fe FieldErrors) Unwrap() []error {
	errs := make([]error, len(fe))
	for i, e := range fe {
		errs[i] = e
	}
	return errs
}

func fieldErr(field string, err error) FieldErrors {
	return FieldErrors{{Field: field, Err: err}}
}

// Form is implemented by every category input. It is sealed: only this
// package defines forms.
type Form interface {
	Category() core.Category
	check() FieldErrors
	compute() (core.Money, string, error)
}

// Outcome is what a valid form produces.
type Outcome struct {
	Type        core.TxType
	Category    core.Category
	Amount      core.Money
	Description string
}

// Evaluate validates f and computes its amount and description. A
// validation failure is returned as FieldErrors.
func Evaluate(f Form) (Outcome, error) {
	if f == nil {
		return Outcome{}, ErrUnhandledInput
	}
	if errs := f.check(); len(errs) > 0 {
		return Outcome{}, errs
	}
	amount, desc, err := f.compute()
	if err != nil {
		return Outcome{}, err
	}
	cat := f.Category()
	typ, err := cat.Type()
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Type: typ, Category: cat, Amount: amount, Description: desc}, nil
}

// FormFor returns an empty form for a category, ready to be decoded into.
func FormFor(c core.Category) (Form, error) {
	switch c {
	case core.CategoryMeal:
		return &MealForm{}, nil
	case core.CategoryHR:
		return &HRForm{}, nil
	case core.CategoryPurchase:
		return &PurchaseForm{}, nil
	case core.CategoryDeliveryGiven:
		return &DeliveryForm{Flow: core.Expense}, nil
	case core.CategoryOther:
		return &OtherForm{}, nil
	case core.CategoryService:
		return &ServiceForm{}, nil
	case core.CategoryDeliveryReceived:
		return &DeliveryForm{Flow: core.Income}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnhandledInput, string(c))
}

// CalculateMeal clamps the invoice to the per-person allowance.
func CalculateMeal(invoice core.Money, people int) core.Money {
	return core.MinMoney(invoice, MealAllowancePerPerson.Mul(int64(people)))
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// MealForm records a team meal.
type MealForm struct {
	InvoiceTotal  core.Money `json:"invoice_total"`
	NumPeople     int        `json:"num_people"`
	MealType      MealType   `json:"meal_type"`
	Collaborators []string   `json:"collaborators"`
}

func (MealForm) Category() core.Category { return core.CategoryMeal }

func (f MealForm) check() FieldErrors {
	if !f.InvoiceTotal.IsPositive() {
		return fieldErr("invoice_total", ErrNotPositive)
	}
	if f.NumPeople < 1 {
		return fieldErr("num_people", ErrPeopleCount)
	}
	switch f.MealType {
	case "", Lunch, Dinner:
	default:
		return fieldErr("meal_type", ErrInvalidMeal)
	}
	if len(f.Collaborators) != f.NumPeople {
		return fieldErr("collaborators", ErrNamesMismatch)
	}
	for i, name := range f.Collaborators {
		if blank(name) {
			return fieldErr(fmt.Sprintf("collaborators[%d]", i), ErrRequired)
		}
	}
	return nil
}

func (f MealForm) compute() (core.Money, string, error) {
	mt := f.MealType
	if mt == "" {
		mt = Lunch
	}
	names := make([]string, len(f.Collaborators))
	for i, n := range f.Collaborators {
		names[i] = strings.TrimSpace(n)
	}
	desc := fmt.Sprintf("%s with %s (invoice %s)", mt.Label(), strings.Join(names, ", "), f.InvoiceTotal)
	return CalculateMeal(f.InvoiceTotal, f.NumPeople), desc, nil
}

// HRForm bills a collaborator's engagement at the role's flat rate.
type HRForm struct {
	Collaborator string `json:"collaborator"`
	Role         string `json:"role"`
}

func (HRForm) Category() core.Category { return core.CategoryHR }

func (f HRForm) check() FieldErrors {
	if blank(f.Collaborator) {
		return fieldErr("collaborator", ErrRequired)
	}
	if blank(f.Role) {
		return fieldErr("role", ErrRequired)
	}
	if _, err := CalculateHR(f.Role); err != nil {
		return fieldErr("role", ErrInvalidRole)
	}
	return nil
}

func (f HRForm) compute() (core.Money, string, error) {
	role, err := ParseRole(f.Role)
	if err != nil {
		return core.Money{}, "", err
	}
	rate, err := CalculateHR(f.Role)
	if err != nil {
		return core.Money{}, "", err
	}
	desc := fmt.Sprintf("%s - %s (rate %s)", strings.TrimSpace(f.Collaborator), role.Label(), rate)
	return rate, desc, nil
}

// PurchaseForm records something bought on the organization's behalf.
type PurchaseForm struct {
	What          string     `json:"what"`
	Amount        core.Money `json:"amount"`
	Justification string     `json:"justification"`
}

func (PurchaseForm) Category() core.Category { return core.CategoryPurchase }

func (f PurchaseForm) check() FieldErrors {
	if blank(f.What) {
		return fieldErr("what", ErrRequired)
	}
	if !f.Amount.IsPositive() {
		return fieldErr("amount", ErrNotPositive)
	}
	if blank(f.Justification) {
		return fieldErr("justification", ErrRequired)
	}
	return nil
}

func (f PurchaseForm) compute() (core.Money, string, error) {
	desc := fmt.Sprintf("%s - %s", strings.TrimSpace(f.What), strings.TrimSpace(f.Justification))
	return f.Amount, desc, nil
}

// DeliveryForm moves cash between the user and a collaborator. Flow is
// Expense when the user handed money over and Income when they got some.
type DeliveryForm struct {
	Flow         core.TxType `json:"-"`
	Collaborator string      `json:"collaborator"`
	Amount       core.Money  `json:"amount"`
}

func (f DeliveryForm) Category() core.Category {
	if f.Flow == core.Income {
		return core.CategoryDeliveryReceived
	}
	return core.CategoryDeliveryGiven
}

func (f DeliveryForm) check() FieldErrors {
	if !f.Flow.IsValid() {
		return fieldErr("flow", ErrInvalidFlow)
	}
	if blank(f.Collaborator) {
		return fieldErr("collaborator", ErrRequired)
	}
	if !f.Amount.IsPositive() {
		return fieldErr("amount", ErrNotPositive)
	}
	return nil
}

func (f DeliveryForm) compute() (core.Money, string, error) {
	who := strings.TrimSpace(f.Collaborator)
	if f.Flow == core.Income {
		return f.Amount, "Received from " + who, nil
	}
	return f.Amount, "Delivered to " + who, nil
}

// ServiceForm records income from a numbered service.
type ServiceForm struct {
	Reference string     `json:"reference"`
	Amount    core.Money `json:"amount"`
}

func (ServiceForm) Category() core.Category { return core.CategoryService }

func (f ServiceForm) check() FieldErrors {
	if blank(f.Reference) {
		return fieldErr("reference", ErrRequired)
	}
	if !f.Amount.IsPositive() {
		return fieldErr("amount", ErrNotPositive)
	}
	return nil
}

func (f ServiceForm) compute() (core.Money, string, error) {
	return f.Amount, "Service #" + strings.TrimSpace(f.Reference), nil
}

// OtherForm is a free-text expense.
type OtherForm struct {
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
}

func (OtherForm) Category() core.Category { return core.CategoryOther }

func (f OtherForm) check() FieldErrors {
	if blank(f.Description) {
		return fieldErr("description", ErrRequired)
	}
	if !f.Amount.IsPositive() {
		return fieldErr("amount", ErrNotPositive)
	}
	return nil
}

func (f OtherForm) compute() (core.Money, string, error) {
	return f.Amount, strings.TrimSpace(f.Description), nil
}
