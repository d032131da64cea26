package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Template is a recurring-expense definition. It is the sole mutable source
// of truth for future generation; generated expenses are snapshots and refer
// back to it only by ID.
type Template struct {
	ID            string
	Merchant      string
	Amount        decimal.Decimal
	Currency      string
	Notes         string
	PaymentMethod string
	CategoryID    string
	Tags          []string
	Active        bool

	Pattern     Pattern
	StartDate   time.Time
	NextDueDate time.Time
	EndDate     *time.Time

	ReminderDaysBefore *int
	AutoCreateNext     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expense is one concrete expense record. TemplateID is empty for expenses
// that were never generated from a template, or that have been detached.
type Expense struct {
	ID            string
	TemplateID    string
	Merchant      string
	Amount        decimal.Decimal
	Currency      string
	Notes         string
	PaymentMethod string
	CategoryID    string
	Tags          []string
	Date          time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Detached reports whether the expense has no template back-reference.
func (e *Expense) Detached() bool {
	return e.TemplateID == ""
}

// ReceiptData is the opaque output of the receipt-capture pipeline, consumed
// only as input to expense creation.
type ReceiptData struct {
	Merchant string
	Amount   decimal.Decimal
	Currency string
	Date     time.Time
	Notes    string
}

// NewTemplate builds a validated template. The pattern is validated once
// here; the pattern calculator assumes valid input from then on.
func NewTemplate(merchant string, amount decimal.Decimal, currency string, p Pattern, startDate time.Time) (*Template, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(merchant) == "" {
		return nil, &ValidationError{Field: "merchant", Reason: "must not be empty"}
	}
	if amount.Sign() <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	now := time.Now().UTC()
	start := DateOnly(startDate)
	return &Template{
		ID:          uuid.New().String(),
		Merchant:    strings.TrimSpace(merchant),
		Amount:      amount,
		Currency:    currency,
		Active:      true,
		Pattern:     p,
		StartDate:   start,
		NextDueDate: start,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Snapshot materializes one expense from the template's current field values,
// dated at the given due date. The copy is deep: later template edits never
// reach the instance.
func (t *Template) Snapshot(dueDate time.Time) *Expense {
	now := time.Now().UTC()
	tags := make([]string, len(t.Tags))
	copy(tags, t.Tags)
	return &Expense{
		ID:            uuid.New().String(),
		TemplateID:    t.ID,
		Merchant:      t.Merchant,
		Amount:        t.Amount,
		Currency:      t.Currency,
		Notes:         t.Notes,
		PaymentMethod: t.PaymentMethod,
		CategoryID:    t.CategoryID,
		Tags:          tags,
		Date:          DateOnly(dueDate),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Ended reports whether the given due date falls past the template's end
// date, if one is set.
func (t *Template) Ended(due time.Time) bool {
	return t.EndDate != nil && !t.EndDate.IsZero() && due.After(*t.EndDate)
}

// DateOnly truncates a timestamp to its calendar date at midnight UTC. All
// scheduling arithmetic operates on these values so daylight-saving shifts
// cannot drift a due date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
