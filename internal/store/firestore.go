package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/expensaur/backend/internal/model"
)

const (
	templatesCollection = "recurringTemplates"
	expensesCollection  = "expenses"
	settingsCollection  = "settings"
	preferenceDocID     = "updatePreference"
)

// FirestoreStore implements the Store interface using Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store.
func NewFirestoreStore(client *firestore.Client) Store {
	return &FirestoreStore{
		client: client,
	}
}

// templateDoc is the Firestore representation of a template. Amounts are
// stored as decimal strings so they round-trip without float drift.
type templateDoc struct {
	ID            string     `firestore:"id"`
	Merchant      string     `firestore:"merchant"`
	Amount        string     `firestore:"amount"`
	Currency      string     `firestore:"currency"`
	Notes         string     `firestore:"notes"`
	PaymentMethod string     `firestore:"paymentMethod"`
	CategoryID    string     `firestore:"categoryId"`
	Tags          []string   `firestore:"tags"`
	Active        bool       `firestore:"active"`
	Frequency     string     `firestore:"frequency"`
	Interval      int        `firestore:"interval"`
	DayOfMonth    int        `firestore:"dayOfMonth"` // 0 = unset
	DayOfWeek     int        `firestore:"dayOfWeek"`  // -1 = unset
	StartDate     time.Time  `firestore:"startDate"`
	NextDueDate   time.Time  `firestore:"nextDueDate"`
	EndDate       *time.Time `firestore:"endDate"`
	ReminderDays  int        `firestore:"reminderDaysBefore"` // -1 = unset
	AutoCreate    bool       `firestore:"autoCreateNext"`
	CreatedAt     time.Time  `firestore:"createdAt"`
	UpdatedAt     time.Time  `firestore:"updatedAt"`
}

type expenseDoc struct {
	ID            string    `firestore:"id"`
	TemplateID    string    `firestore:"templateId"`
	Merchant      string    `firestore:"merchant"`
	Amount        string    `firestore:"amount"`
	Currency      string    `firestore:"currency"`
	Notes         string    `firestore:"notes"`
	PaymentMethod string    `firestore:"paymentMethod"`
	CategoryID    string    `firestore:"categoryId"`
	Tags          []string  `firestore:"tags"`
	Date          time.Time `firestore:"date"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func toTemplateDoc(t *model.Template) *templateDoc {
	doc := &templateDoc{
		ID:            t.ID,
		Merchant:      t.Merchant,
		Amount:        t.Amount.String(),
		Currency:      t.Currency,
		Notes:         t.Notes,
		PaymentMethod: t.PaymentMethod,
		CategoryID:    t.CategoryID,
		Tags:          t.Tags,
		Active:        t.Active,
		Frequency:     string(t.Pattern.Frequency),
		Interval:      t.Pattern.Interval,
		DayOfMonth:    0,
		DayOfWeek:     -1,
		StartDate:     t.StartDate,
		NextDueDate:   t.NextDueDate,
		EndDate:       t.EndDate,
		ReminderDays:  -1,
		AutoCreate:    t.AutoCreateNext,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	if t.Pattern.DayOfMonth != nil {
		doc.DayOfMonth = *t.Pattern.DayOfMonth
	}
	if t.Pattern.DayOfWeek != nil {
		doc.DayOfWeek = int(*t.Pattern.DayOfWeek)
	}
	if t.ReminderDaysBefore != nil {
		doc.ReminderDays = *t.ReminderDaysBefore
	}
	return doc
}

func fromTemplateDoc(doc *templateDoc) (*model.Template, error) {
	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template amount %q: %w", doc.Amount, err)
	}
	tpl := &model.Template{
		ID:            doc.ID,
		Merchant:      doc.Merchant,
		Amount:        amount,
		Currency:      doc.Currency,
		Notes:         doc.Notes,
		PaymentMethod: doc.PaymentMethod,
		CategoryID:    doc.CategoryID,
		Tags:          doc.Tags,
		Active:        doc.Active,
		Pattern: model.Pattern{
			Frequency: model.Frequency(doc.Frequency),
			Interval:  doc.Interval,
		},
		StartDate:      doc.StartDate,
		NextDueDate:    doc.NextDueDate,
		EndDate:        doc.EndDate,
		AutoCreateNext: doc.AutoCreate,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
	if doc.DayOfMonth > 0 {
		d := doc.DayOfMonth
		tpl.Pattern.DayOfMonth = &d
	}
	if doc.DayOfWeek >= 0 {
		w := time.Weekday(doc.DayOfWeek)
		tpl.Pattern.DayOfWeek = &w
	}
	if doc.ReminderDays >= 0 {
		d := doc.ReminderDays
		tpl.ReminderDaysBefore = &d
	}
	return tpl, nil
}

func toExpenseDoc(e *model.Expense) *expenseDoc {
	return &expenseDoc{
		ID:            e.ID,
		TemplateID:    e.TemplateID,
		Merchant:      e.Merchant,
		Amount:        e.Amount.String(),
		Currency:      e.Currency,
		Notes:         e.Notes,
		PaymentMethod: e.PaymentMethod,
		CategoryID:    e.CategoryID,
		Tags:          e.Tags,
		Date:          e.Date,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func fromExpenseDoc(doc *expenseDoc) (*model.Expense, error) {
	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expense amount %q: %w", doc.Amount, err)
	}
	return &model.Expense{
		ID:            doc.ID,
		TemplateID:    doc.TemplateID,
		Merchant:      doc.Merchant,
		Amount:        amount,
		Currency:      doc.Currency,
		Notes:         doc.Notes,
		PaymentMethod: doc.PaymentMethod,
		CategoryID:    doc.CategoryID,
		Tags:          doc.Tags,
		Date:          doc.Date,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}

// applyCursorPagination adds OrderBy + StartAfter + Limit to a query for
// cursor-based pagination. It fetches pageSize+1 docs so the caller can
// detect whether a next page exists.
func applyCursorPagination(query firestore.Query, pageSize int32, pageToken string) (firestore.Query, error) {
	query = query.OrderBy(firestore.DocumentID, firestore.Asc)

	if pageToken != "" {
		docID, err := DecodePageToken(pageToken)
		if err != nil {
			return query, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.StartAfter(docID)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	query = query.Limit(int(pageSize) + 1) // +1 to detect next page
	return query, nil
}

// Template operations

func (s *FirestoreStore) CreateTemplate(ctx context.Context, tpl *model.Template) error {
	_, err := s.client.Collection(templatesCollection).Doc(tpl.ID).Set(ctx, toTemplateDoc(tpl))
	return err
}

func (s *FirestoreStore) GetTemplate(ctx context.Context, templateID string) (*model.Template, error) {
	doc, err := s.client.Collection(templatesCollection).Doc(templateID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	var td templateDoc
	if err := doc.DataTo(&td); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return fromTemplateDoc(&td)
}

func (s *FirestoreStore) UpdateTemplate(ctx context.Context, tpl *model.Template) error {
	_, err := s.client.Collection(templatesCollection).Doc(tpl.ID).Set(ctx, toTemplateDoc(tpl))
	return err
}

func (s *FirestoreStore) DeleteTemplate(ctx context.Context, templateID string) error {
	_, err := s.client.Collection(templatesCollection).Doc(templateID).Delete(ctx)
	return err
}

func (s *FirestoreStore) ListTemplates(ctx context.Context, activeOnly bool, pageSize int32, pageToken string) ([]*model.Template, string, error) {
	query := s.client.Collection(templatesCollection).Query
	if activeOnly {
		query = query.Where("active", "==", true)
	}

	query, err := applyCursorPagination(query, pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list templates: %w", err)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	var nextToken string
	if int32(len(docs)) > pageSize {
		docs = docs[:pageSize]
		nextToken = EncodePageToken(docs[len(docs)-1].Ref.ID)
	}

	templates := make([]*model.Template, 0, len(docs))
	for _, doc := range docs {
		var td templateDoc
		if err := doc.DataTo(&td); err != nil {
			return nil, "", fmt.Errorf("failed to parse template: %w", err)
		}
		tpl, err := fromTemplateDoc(&td)
		if err != nil {
			return nil, "", err
		}
		templates = append(templates, tpl)
	}
	return templates, nextToken, nil
}

// Expense operations

func (s *FirestoreStore) CreateExpense(ctx context.Context, expense *model.Expense) error {
	_, err := s.client.Collection(expensesCollection).Doc(expense.ID).Set(ctx, toExpenseDoc(expense))
	return err
}

func (s *FirestoreStore) GetExpense(ctx context.Context, expenseID string) (*model.Expense, error) {
	doc, err := s.client.Collection(expensesCollection).Doc(expenseID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrExpenseNotFound, expenseID)
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	var ed expenseDoc
	if err := doc.DataTo(&ed); err != nil {
		return nil, fmt.Errorf("failed to parse expense: %w", err)
	}
	return fromExpenseDoc(&ed)
}

func (s *FirestoreStore) UpdateExpense(ctx context.Context, expense *model.Expense) error {
	_, err := s.client.Collection(expensesCollection).Doc(expense.ID).Set(ctx, toExpenseDoc(expense))
	return err
}

func (s *FirestoreStore) DeleteExpense(ctx context.Context, expenseID string) error {
	_, err := s.client.Collection(expensesCollection).Doc(expenseID).Delete(ctx)
	return err
}

func (s *FirestoreStore) ListExpenses(ctx context.Context, templateID string, pageSize int32, pageToken string) ([]*model.Expense, string, error) {
	query := s.client.Collection(expensesCollection).Query
	if templateID != "" {
		query = query.Where("templateId", "==", templateID)
	}

	query, err := applyCursorPagination(query, pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list expenses: %w", err)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	var nextToken string
	if int32(len(docs)) > pageSize {
		docs = docs[:pageSize]
		nextToken = EncodePageToken(docs[len(docs)-1].Ref.ID)
	}

	expenses := make([]*model.Expense, 0, len(docs))
	for _, doc := range docs {
		var ed expenseDoc
		if err := doc.DataTo(&ed); err != nil {
			return nil, "", fmt.Errorf("failed to parse expense: %w", err)
		}
		expense, err := fromExpenseDoc(&ed)
		if err != nil {
			return nil, "", err
		}
		expenses = append(expenses, expense)
	}
	return expenses, nextToken, nil
}

// ApplyGeneration runs the template advance and instance creation in a
// single Firestore transaction.
func (s *FirestoreStore) ApplyGeneration(ctx context.Context, tpl *model.Template, instances []*model.Expense) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		tplRef := s.client.Collection(templatesCollection).Doc(tpl.ID)
		if _, err := tx.Get(tplRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: %s", ErrTemplateNotFound, tpl.ID)
			}
			return fmt.Errorf("failed to get template: %w", err)
		}

		if err := tx.Set(tplRef, toTemplateDoc(tpl)); err != nil {
			return err
		}
		for _, e := range instances {
			ref := s.client.Collection(expensesCollection).Doc(e.ID)
			if err := tx.Create(ref, toExpenseDoc(e)); err != nil {
				return err
			}
		}
		return nil
	})
	if status.Code(err) == codes.AlreadyExists {
		return &model.ConflictError{TemplateID: tpl.ID, Reason: "generated expense already exists"}
	}
	return err
}

// ApplyReconciliation writes the reconciled template and the edited expense
// in a single Firestore transaction.
func (s *FirestoreStore) ApplyReconciliation(ctx context.Context, tpl *model.Template, expense *model.Expense) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		tplRef := s.client.Collection(templatesCollection).Doc(tpl.ID)
		if _, err := tx.Get(tplRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: %s", ErrTemplateNotFound, tpl.ID)
			}
			return fmt.Errorf("failed to get template: %w", err)
		}
		expRef := s.client.Collection(expensesCollection).Doc(expense.ID)
		if _, err := tx.Get(expRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: %s", ErrExpenseNotFound, expense.ID)
			}
			return fmt.Errorf("failed to get expense: %w", err)
		}

		if err := tx.Set(tplRef, toTemplateDoc(tpl)); err != nil {
			return err
		}
		return tx.Set(expRef, toExpenseDoc(expense))
	})
}

// Preference slot

func (s *FirestoreStore) GetUpdatePreference(ctx context.Context) (model.UpdatePreference, error) {
	doc, err := s.client.Collection(settingsCollection).Doc(preferenceDocID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return model.PreferenceAlwaysAsk, nil
		}
		return "", fmt.Errorf("failed to get update preference: %w", err)
	}

	var slot struct {
		Value string `firestore:"value"`
	}
	if err := doc.DataTo(&slot); err != nil {
		return "", fmt.Errorf("failed to parse update preference: %w", err)
	}
	pref := model.UpdatePreference(slot.Value)
	if !pref.Valid() {
		return model.PreferenceAlwaysAsk, nil
	}
	return pref, nil
}

func (s *FirestoreStore) SetUpdatePreference(ctx context.Context, pref model.UpdatePreference) error {
	_, err := s.client.Collection(settingsCollection).Doc(preferenceDocID).Set(ctx, map[string]interface{}{
		"value": string(pref),
	})
	return err
}
