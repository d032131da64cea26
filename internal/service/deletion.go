package service

import (
	"context"
	"fmt"
	"time"

	"github.com/expensaur/backend/internal/model"
)

// BulkDeleteResult reports a best-effort bulk template deletion.
type BulkDeleteResult struct {
	Deleted int
	// Errors maps template ID to the failure that stopped its deletion.
	Errors map[string]error
}

// DeleteTemplate removes a template. With cascade the generated expenses go
// with it; without, they are detached first and survive as independent
// expenses.
func (s *Service) DeleteTemplate(ctx context.Context, templateID string, cascade bool) error {
	err := s.forEachExpenseOfTemplate(ctx, templateID, func(e *model.Expense) error {
		if cascade {
			if err := s.store.DeleteExpense(ctx, e.ID); err != nil {
				return fmt.Errorf("failed to delete expense %s: %w", e.ID, err)
			}
			return nil
		}
		e.TemplateID = ""
		e.UpdatedAt = time.Now().UTC()
		if err := s.store.UpdateExpense(ctx, e); err != nil {
			return fmt.Errorf("failed to detach expense %s: %w", e.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.store.DeleteTemplate(ctx, templateID); err != nil {
		return fmt.Errorf("failed to delete template %s: %w", templateID, err)
	}
	return nil
}

// DeleteTemplates applies the same deletion policy to a set of templates.
// One template's failure is recorded and does not block the rest.
func (s *Service) DeleteTemplates(ctx context.Context, templateIDs []string, cascade bool) (*BulkDeleteResult, error) {
	result := &BulkDeleteResult{Errors: make(map[string]error)}
	for _, id := range templateIDs {
		if err := s.DeleteTemplate(ctx, id, cascade); err != nil {
			s.log.WithField("template_id", id).WithError(err).Error("bulk delete: template failed")
			result.Errors[id] = err
			continue
		}
		result.Deleted++
	}
	return result, nil
}
