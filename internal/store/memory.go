package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/expensaur/backend/internal/model"
	"github.com/google/uuid"
)

// MemoryStore implements Store with in-memory maps. Used for tests and local
// development.
type MemoryStore struct {
	mu sync.RWMutex

	templates map[string]*model.Template
	expenses  map[string]*model.Expense

	preference model.UpdatePreference
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[string]*model.Template),
		expenses:  make(map[string]*model.Expense),
	}
}

// paginateIDs applies cursor-based pagination to a slice of IDs.
// Returns the paginated IDs and the next page token (empty if no more pages).
func paginateIDs(ids []string, pageSize int32, pageToken string) ([]string, string) {
	if pageSize <= 0 {
		pageSize = 100
	}

	sort.Strings(ids)

	startIdx := 0
	if pageToken != "" {
		cursorID, err := DecodePageToken(pageToken)
		if err == nil {
			for i, id := range ids {
				if id > cursorID {
					startIdx = i
					break
				}
				if i == len(ids)-1 {
					return nil, ""
				}
			}
		}
	}

	ids = ids[startIdx:]

	var nextToken string
	if int32(len(ids)) > pageSize {
		nextToken = EncodePageToken(ids[pageSize-1])
		ids = ids[:pageSize]
	}

	return ids, nextToken
}

func cloneTemplate(t *model.Template) *model.Template {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	if t.EndDate != nil {
		end := *t.EndDate
		c.EndDate = &end
	}
	if t.ReminderDaysBefore != nil {
		d := *t.ReminderDaysBefore
		c.ReminderDaysBefore = &d
	}
	if t.Pattern.DayOfMonth != nil {
		d := *t.Pattern.DayOfMonth
		c.Pattern.DayOfMonth = &d
	}
	if t.Pattern.DayOfWeek != nil {
		w := *t.Pattern.DayOfWeek
		c.Pattern.DayOfWeek = &w
	}
	return &c
}

func cloneExpense(e *model.Expense) *model.Expense {
	c := *e
	c.Tags = append([]string(nil), e.Tags...)
	return &c
}

// Template operations

func (m *MemoryStore) CreateTemplate(ctx context.Context, tpl *model.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}

	m.templates[tpl.ID] = cloneTemplate(tpl)
	return nil
}

func (m *MemoryStore) GetTemplate(ctx context.Context, templateID string) (*model.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tpl, ok := m.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
	}

	return cloneTemplate(tpl), nil
}

func (m *MemoryStore) UpdateTemplate(ctx context.Context, tpl *model.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[tpl.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, tpl.ID)
	}

	m.templates[tpl.ID] = cloneTemplate(tpl)
	return nil
}

func (m *MemoryStore) DeleteTemplate(ctx context.Context, templateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.templates, templateID)
	return nil
}

func (m *MemoryStore) ListTemplates(ctx context.Context, activeOnly bool, pageSize int32, pageToken string) ([]*model.Template, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matchingIDs []string
	for id, tpl := range m.templates {
		if activeOnly && !tpl.Active {
			continue
		}
		matchingIDs = append(matchingIDs, id)
	}

	paginatedIDs, nextToken := paginateIDs(matchingIDs, pageSize, pageToken)
	result := make([]*model.Template, 0, len(paginatedIDs))
	for _, id := range paginatedIDs {
		result = append(result, cloneTemplate(m.templates[id]))
	}
	return result, nextToken, nil
}

// Expense operations

func (m *MemoryStore) CreateExpense(ctx context.Context, expense *model.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}

	m.expenses[expense.ID] = cloneExpense(expense)
	return nil
}

func (m *MemoryStore) GetExpense(ctx context.Context, expenseID string) (*model.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expense, ok := m.expenses[expenseID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExpenseNotFound, expenseID)
	}

	return cloneExpense(expense), nil
}

func (m *MemoryStore) UpdateExpense(ctx context.Context, expense *model.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.expenses[expense.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrExpenseNotFound, expense.ID)
	}

	m.expenses[expense.ID] = cloneExpense(expense)
	return nil
}

func (m *MemoryStore) DeleteExpense(ctx context.Context, expenseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.expenses, expenseID)
	return nil
}

func (m *MemoryStore) ListExpenses(ctx context.Context, templateID string, pageSize int32, pageToken string) ([]*model.Expense, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matchingIDs []string
	for id, expense := range m.expenses {
		if templateID != "" && expense.TemplateID != templateID {
			continue
		}
		matchingIDs = append(matchingIDs, id)
	}

	paginatedIDs, nextToken := paginateIDs(matchingIDs, pageSize, pageToken)
	result := make([]*model.Expense, 0, len(paginatedIDs))
	for _, id := range paginatedIDs {
		result = append(result, cloneExpense(m.expenses[id]))
	}
	return result, nextToken, nil
}

// ApplyGeneration writes the advanced template and its generated expenses
// under one lock acquisition; nothing is written unless every check passes.
func (m *MemoryStore) ApplyGeneration(ctx context.Context, tpl *model.Template, instances []*model.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[tpl.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, tpl.ID)
	}
	for _, e := range instances {
		if e.ID == "" {
			return fmt.Errorf("expense for template %s has no ID", tpl.ID)
		}
		if _, exists := m.expenses[e.ID]; exists {
			return &model.ConflictError{TemplateID: tpl.ID, Reason: fmt.Sprintf("expense %s already exists", e.ID)}
		}
	}

	m.templates[tpl.ID] = cloneTemplate(tpl)
	for _, e := range instances {
		m.expenses[e.ID] = cloneExpense(e)
	}
	return nil
}

// ApplyReconciliation writes the reconciled template and the edited expense
// under one lock acquisition; both must already exist or nothing is written.
func (m *MemoryStore) ApplyReconciliation(ctx context.Context, tpl *model.Template, expense *model.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[tpl.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, tpl.ID)
	}
	if _, ok := m.expenses[expense.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrExpenseNotFound, expense.ID)
	}

	m.templates[tpl.ID] = cloneTemplate(tpl)
	m.expenses[expense.ID] = cloneExpense(expense)
	return nil
}

// Preference slot

func (m *MemoryStore) GetUpdatePreference(ctx context.Context) (model.UpdatePreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.preference == "" {
		return model.PreferenceAlwaysAsk, nil
	}
	return m.preference, nil
}

func (m *MemoryStore) SetUpdatePreference(ctx context.Context, pref model.UpdatePreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.preference = pref
	return nil
}
