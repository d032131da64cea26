package api

import (
	"time"

	"github.com/expensaur/backend/internal/model"
	"github.com/expensaur/backend/internal/service"
)

const dateLayout = "2006-01-02"

type patternRequest struct {
	Frequency  string `json:"frequency"`
	Interval   int    `json:"interval"`
	DayOfMonth *int   `json:"day_of_month,omitempty"`
	DayOfWeek  *int   `json:"day_of_week,omitempty"`
}

type templateRequest struct {
	Merchant           string         `json:"merchant"`
	Amount             string         `json:"amount"`
	Currency           string         `json:"currency"`
	Notes              string         `json:"notes"`
	PaymentMethod      string         `json:"payment_method"`
	CategoryID         string         `json:"category_id"`
	Tags               []string       `json:"tags"`
	Pattern            patternRequest `json:"pattern"`
	StartDate          string         `json:"start_date"`
	EndDate            string         `json:"end_date,omitempty"`
	ReminderDaysBefore *int           `json:"reminder_days_before,omitempty"`
	AutoCreateNext     bool           `json:"auto_create_next"`
}

func (r *templateRequest) toTemplate() (*model.Template, error) {
	amount, err := service.ParseAmount(r.Amount)
	if err != nil {
		return nil, err
	}
	freq, err := model.ParseFrequency(r.Pattern.Frequency)
	if err != nil {
		return nil, err
	}
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return nil, &model.ValidationError{Field: "start_date", Reason: "must be YYYY-MM-DD"}
	}

	pattern := model.Pattern{
		Frequency:  freq,
		Interval:   r.Pattern.Interval,
		DayOfMonth: r.Pattern.DayOfMonth,
	}
	if r.Pattern.DayOfWeek != nil {
		wd := time.Weekday(*r.Pattern.DayOfWeek)
		pattern.DayOfWeek = &wd
	}

	tpl, err := model.NewTemplate(r.Merchant, amount, r.Currency, pattern, start)
	if err != nil {
		return nil, err
	}
	tpl.Notes = r.Notes
	tpl.PaymentMethod = r.PaymentMethod
	tpl.CategoryID = r.CategoryID
	tpl.Tags = r.Tags
	tpl.ReminderDaysBefore = r.ReminderDaysBefore
	tpl.AutoCreateNext = r.AutoCreateNext
	if r.EndDate != "" {
		end, err := time.Parse(dateLayout, r.EndDate)
		if err != nil {
			return nil, &model.ValidationError{Field: "end_date", Reason: "must be YYYY-MM-DD"}
		}
		end = model.DateOnly(end)
		if end.Before(tpl.StartDate) {
			return nil, &model.ValidationError{Field: "end_date", Reason: "must not precede start_date"}
		}
		tpl.EndDate = &end
	}
	return tpl, nil
}

type templateResponse struct {
	ID                 string         `json:"id"`
	Merchant           string         `json:"merchant"`
	Amount             string         `json:"amount"`
	Currency           string         `json:"currency"`
	Notes              string         `json:"notes,omitempty"`
	PaymentMethod      string         `json:"payment_method,omitempty"`
	CategoryID         string         `json:"category_id,omitempty"`
	Tags               []string       `json:"tags,omitempty"`
	Active             bool           `json:"active"`
	Pattern            patternRequest `json:"pattern"`
	StartDate          string         `json:"start_date"`
	NextDueDate        string         `json:"next_due_date"`
	EndDate            string         `json:"end_date,omitempty"`
	ReminderDaysBefore *int           `json:"reminder_days_before,omitempty"`
	AutoCreateNext     bool           `json:"auto_create_next"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func toTemplateResponse(t *model.Template) *templateResponse {
	resp := &templateResponse{
		ID:            t.ID,
		Merchant:      t.Merchant,
		Amount:        t.Amount.String(),
		Currency:      t.Currency,
		Notes:         t.Notes,
		PaymentMethod: t.PaymentMethod,
		CategoryID:    t.CategoryID,
		Tags:          t.Tags,
		Active:        t.Active,
		Pattern: patternRequest{
			Frequency:  string(t.Pattern.Frequency),
			Interval:   t.Pattern.Interval,
			DayOfMonth: t.Pattern.DayOfMonth,
		},
		StartDate:          t.StartDate.Format(dateLayout),
		NextDueDate:        t.NextDueDate.Format(dateLayout),
		ReminderDaysBefore: t.ReminderDaysBefore,
		AutoCreateNext:     t.AutoCreateNext,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
	if t.Pattern.DayOfWeek != nil {
		wd := int(*t.Pattern.DayOfWeek)
		resp.Pattern.DayOfWeek = &wd
	}
	if t.EndDate != nil {
		resp.EndDate = t.EndDate.Format(dateLayout)
	}
	return resp
}

type expenseResponse struct {
	ID            string    `json:"id"`
	TemplateID    string    `json:"template_id,omitempty"`
	Merchant      string    `json:"merchant"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Notes         string    `json:"notes,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	CategoryID    string    `json:"category_id,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Date          string    `json:"date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toExpenseResponse(e *model.Expense) *expenseResponse {
	return &expenseResponse{
		ID:            e.ID,
		TemplateID:    e.TemplateID,
		Merchant:      e.Merchant,
		Amount:        e.Amount.String(),
		Currency:      e.Currency,
		Notes:         e.Notes,
		PaymentMethod: e.PaymentMethod,
		CategoryID:    e.CategoryID,
		Tags:          e.Tags,
		Date:          e.Date.Format(dateLayout),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// reconcileRequest carries the edited field values plus the caller's choice.
// Only fields present in the JSON body are applied; absent fields keep the
// stored expense values.
type reconcileRequest struct {
	Merchant      *string   `json:"merchant,omitempty"`
	Amount        *string   `json:"amount,omitempty"`
	Currency      *string   `json:"currency,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	PaymentMethod *string   `json:"payment_method,omitempty"`
	CategoryID    *string   `json:"category_id,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`

	Choice         string `json:"choice,omitempty"`
	RememberChoice bool   `json:"remember_choice,omitempty"`
}

func (r *reconcileRequest) applyEdits(e *model.Expense) error {
	if r.Merchant != nil {
		e.Merchant = *r.Merchant
	}
	if r.Amount != nil {
		amount, err := service.ParseAmount(*r.Amount)
		if err != nil {
			return err
		}
		e.Amount = amount
	}
	if r.Currency != nil {
		e.Currency = *r.Currency
	}
	if r.Notes != nil {
		e.Notes = *r.Notes
	}
	if r.PaymentMethod != nil {
		e.PaymentMethod = *r.PaymentMethod
	}
	if r.CategoryID != nil {
		e.CategoryID = *r.CategoryID
	}
	if r.Tags != nil {
		e.Tags = *r.Tags
	}
	return nil
}

type fieldChangeResponse struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

type reconcileResponse struct {
	Outcome string                `json:"outcome"`
	Changes []fieldChangeResponse `json:"changes,omitempty"`
	Expense *expenseResponse      `json:"expense,omitempty"`
}

func toReconcileResponse(o *service.Outcome) *reconcileResponse {
	resp := &reconcileResponse{Outcome: string(o.Kind)}
	for _, c := range o.Changes {
		resp.Changes = append(resp.Changes, fieldChangeResponse{
			Field: string(c.Field),
			From:  c.From,
			To:    c.To,
		})
	}
	if o.Expense != nil {
		resp.Expense = toExpenseResponse(o.Expense)
	}
	return resp
}

type reminderResponse struct {
	TemplateID string `json:"template_id"`
	Merchant   string `json:"merchant"`
	Amount     string `json:"amount"`
	DueDate    string `json:"due_date"`
	FireDate   string `json:"fire_date"`
}

type receiptRequest struct {
	Merchant string `json:"merchant"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Date     string `json:"date"`
	Notes    string `json:"notes,omitempty"`
}

func (r *receiptRequest) toReceiptData() (model.ReceiptData, error) {
	amount, err := service.ParseAmount(r.Amount)
	if err != nil {
		return model.ReceiptData{}, err
	}
	date := time.Now()
	if r.Date != "" {
		parsed, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			return model.ReceiptData{}, &model.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
		}
		date = parsed
	}
	return model.ReceiptData{
		Merchant: r.Merchant,
		Amount:   amount,
		Currency: r.Currency,
		Date:     date,
		Notes:    r.Notes,
	}, nil
}
