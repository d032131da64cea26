// Package service implements the recurring-expense engine: due detection and
// generation, instance/template reconciliation, deletion policy and reminder
// computation. All operations go through the store.Store collaborator; the
// engine holds no state of its own and is safe to drive from a single
// execution context.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/expensaur/backend/internal/model"
	"github.com/expensaur/backend/internal/receipt"
	"github.com/expensaur/backend/internal/store"
)

// listPageSize is the page size used when paginating through the store.
const listPageSize = 1000

// Service is the recurring-expense engine.
type Service struct {
	store store.Store
	log   *logrus.Logger
}

// New creates the engine on top of a store. A nil logger falls back to the
// logrus standard logger.
func New(st store.Store, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: st, log: log}
}

// CreateTemplate validates and persists a new recurring template.
func (s *Service) CreateTemplate(ctx context.Context, tpl *model.Template) error {
	if err := tpl.Pattern.Validate(); err != nil {
		return err
	}
	if err := s.store.CreateTemplate(ctx, tpl); err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// GetTemplate fetches one template by ID.
func (s *Service) GetTemplate(ctx context.Context, templateID string) (*model.Template, error) {
	return s.store.GetTemplate(ctx, templateID)
}

// ListTemplates lists templates, optionally restricted to active ones.
func (s *Service) ListTemplates(ctx context.Context, activeOnly bool, pageSize int32, pageToken string) ([]*model.Template, string, error) {
	return s.store.ListTemplates(ctx, activeOnly, pageSize, pageToken)
}

// DeactivateTemplate soft-deletes a template: history and generated expenses
// are preserved, future generation stops.
func (s *Service) DeactivateTemplate(ctx context.Context, templateID string) error {
	tpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	tpl.Active = false
	tpl.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateTemplate(ctx, tpl); err != nil {
		return fmt.Errorf("failed to deactivate template: %w", err)
	}
	return nil
}

// GetExpense fetches one expense by ID.
func (s *Service) GetExpense(ctx context.Context, expenseID string) (*model.Expense, error) {
	return s.store.GetExpense(ctx, expenseID)
}

// ListExpenses lists expenses, optionally restricted to one template's
// generated instances.
func (s *Service) ListExpenses(ctx context.Context, templateID string, pageSize int32, pageToken string) ([]*model.Expense, string, error) {
	return s.store.ListExpenses(ctx, templateID, pageSize, pageToken)
}

// CreateExpenseFromReceipt creates an independent expense from captured
// receipt data. The capture pipeline itself lives outside this service;
// its output is cleaned up here (merchant normalization, category
// recognition) and persisted.
func (s *Service) CreateExpenseFromReceipt(ctx context.Context, rd model.ReceiptData) (*model.Expense, error) {
	if strings.TrimSpace(rd.Merchant) == "" {
		return nil, &model.ValidationError{Field: "merchant", Reason: "must not be empty"}
	}
	if rd.Amount.Sign() <= 0 {
		return nil, &model.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	info := receipt.NormalizeMerchant(rd.Merchant)

	date := rd.Date
	if date.IsZero() {
		date = time.Now()
	}

	now := time.Now().UTC()
	expense := &model.Expense{
		ID:         uuid.New().String(),
		Merchant:   info.Name,
		Amount:     rd.Amount,
		Currency:   rd.Currency,
		Notes:      rd.Notes,
		CategoryID: info.CategoryID,
		Date:       model.DateOnly(date),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	return expense, nil
}

// forEachTemplate pages through stored templates and invokes fn for each.
func (s *Service) forEachTemplate(ctx context.Context, activeOnly bool, fn func(tpl *model.Template)) error {
	pageToken := ""
	for {
		templates, nextToken, err := s.store.ListTemplates(ctx, activeOnly, listPageSize, pageToken)
		if err != nil {
			return fmt.Errorf("failed to list templates: %w", err)
		}
		for _, tpl := range templates {
			fn(tpl)
		}
		if nextToken == "" {
			return nil
		}
		pageToken = nextToken
	}
}

// forEachExpenseOfTemplate pages through a template's generated expenses.
func (s *Service) forEachExpenseOfTemplate(ctx context.Context, templateID string, fn func(e *model.Expense) error) error {
	pageToken := ""
	for {
		expenses, nextToken, err := s.store.ListExpenses(ctx, templateID, listPageSize, pageToken)
		if err != nil {
			return fmt.Errorf("failed to list expenses: %w", err)
		}
		for _, e := range expenses {
			if err := fn(e); err != nil {
				return err
			}
		}
		if nextToken == "" {
			return nil
		}
		pageToken = nextToken
	}
}
