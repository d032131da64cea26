package store

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/expensaur/backend/internal/model"
)

// Sentinel errors shared by all Store implementations.
var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrExpenseNotFound  = errors.New("expense not found")
)

// Store defines the persistence operations the scheduling and reconciliation
// engine depends on. Implementations must make ApplyGeneration and
// ApplyReconciliation atomic: the writes of one unit of work become visible
// together or not at all.
type Store interface {
	// Template operations
	CreateTemplate(ctx context.Context, tpl *model.Template) error
	GetTemplate(ctx context.Context, templateID string) (*model.Template, error)
	UpdateTemplate(ctx context.Context, tpl *model.Template) error
	DeleteTemplate(ctx context.Context, templateID string) error
	ListTemplates(ctx context.Context, activeOnly bool, pageSize int32, pageToken string) ([]*model.Template, string, error)

	// Expense operations
	CreateExpense(ctx context.Context, expense *model.Expense) error
	GetExpense(ctx context.Context, expenseID string) (*model.Expense, error)
	UpdateExpense(ctx context.Context, expense *model.Expense) error
	DeleteExpense(ctx context.Context, expenseID string) error
	ListExpenses(ctx context.Context, templateID string, pageSize int32, pageToken string) ([]*model.Expense, string, error)

	// ApplyGeneration persists one generation unit of work: the template with
	// its advanced next-due date plus every expense generated for it, as a
	// single transaction.
	ApplyGeneration(ctx context.Context, tpl *model.Template, instances []*model.Expense) error

	// ApplyReconciliation persists one reconciliation unit of work: the
	// template with changed fields written back plus the edited expense, as a
	// single transaction. Neither write is visible if either fails.
	ApplyReconciliation(ctx context.Context, tpl *model.Template, expense *model.Expense) error

	// Update-preference slot. A missing slot reads as PreferenceAlwaysAsk.
	GetUpdatePreference(ctx context.Context) (model.UpdatePreference, error)
	SetUpdatePreference(ctx context.Context, pref model.UpdatePreference) error
}

// EncodePageToken encodes a document ID into a page token.
func EncodePageToken(docID string) string {
	if docID == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(docID))
}

// DecodePageToken decodes a page token back to a document ID.
func DecodePageToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
