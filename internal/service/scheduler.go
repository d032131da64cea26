package service

import (
	"context"
	"fmt"
	"time"

	"github.com/expensaur/backend/internal/model"
	"github.com/expensaur/backend/internal/pattern"
)

// GenerateResult summarizes one generation sweep across all active
// templates.
type GenerateResult struct {
	// Created holds every generated expense, ordered oldest due date first
	// within each template.
	Created []*model.Expense

	Processed int // templates that produced at least one expense
	Skipped   int // templates not yet due
	Ended     int // templates deactivated because their end date passed

	// Errors maps template ID to the failure that aborted its generation.
	// A failed template does not block its siblings.
	Errors map[string]error
}

// GetDue returns all active templates whose next due date is on or before
// asOf.
func (s *Service) GetDue(ctx context.Context, asOf time.Time) ([]*model.Template, error) {
	cutoff := model.DateOnly(asOf)
	var due []*model.Template
	err := s.forEachTemplate(ctx, true, func(tpl *model.Template) {
		if !tpl.NextDueDate.After(cutoff) {
			due = append(due, tpl)
		}
	})
	if err != nil {
		return nil, err
	}
	return due, nil
}

// GenerateDue creates one expense per missed period for every due template
// and advances each template's next due date past asOf. Running it twice
// with the same asOf is a no-op the second time: the first run leaves every
// next due date strictly in the future relative to asOf.
func (s *Service) GenerateDue(ctx context.Context, asOf time.Time) (*GenerateResult, error) {
	result := &GenerateResult{Errors: make(map[string]error)}

	var templates []*model.Template
	if err := s.forEachTemplate(ctx, true, func(tpl *model.Template) {
		templates = append(templates, tpl)
	}); err != nil {
		return nil, err
	}

	for _, tpl := range templates {
		created, ended, err := s.GenerateForTemplate(ctx, tpl, asOf)
		if err != nil {
			s.log.WithField("template_id", tpl.ID).WithError(err).Error("recurring generation failed")
			result.Errors[tpl.ID] = err
			continue
		}
		result.Created = append(result.Created, created...)
		switch {
		case len(created) > 0:
			// A template can both generate and end in one sweep; generation
			// is the primary action for counting purposes.
			result.Processed++
		case ended:
			result.Ended++
		default:
			result.Skipped++
		}
	}

	s.log.WithFields(map[string]interface{}{
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"ended":     result.Ended,
		"errors":    len(result.Errors),
		"created":   len(result.Created),
	}).Info("recurring generation sweep completed")

	return result, nil
}

// GenerateForTemplate runs the backfill loop for a single template: one
// snapshot expense per due date from the template's next due date up to and
// including asOf, oldest first. The advanced template and the new expenses
// are handed to the store as one unit of work, so a failure leaves the
// template's next due date consistent with what was actually persisted.
//
// Returns the created expenses and whether the template was deactivated
// because its end date passed.
func (s *Service) GenerateForTemplate(ctx context.Context, tpl *model.Template, asOf time.Time) ([]*model.Expense, bool, error) {
	cutoff := model.DateOnly(asOf)
	due := model.DateOnly(tpl.NextDueDate)

	// Not yet due: nothing to generate, nothing to persist.
	if due.After(cutoff) {
		return nil, false, nil
	}

	var instances []*model.Expense
	ended := false
	for !due.After(cutoff) {
		if tpl.Ended(due) {
			ended = true
			break
		}
		instances = append(instances, tpl.Snapshot(due))
		due = pattern.NextOccurrence(tpl.Pattern, due)
	}

	tpl.NextDueDate = due
	if ended || tpl.Ended(due) {
		tpl.Active = false
	}
	tpl.UpdatedAt = time.Now().UTC()

	if err := s.store.ApplyGeneration(ctx, tpl, instances); err != nil {
		return nil, false, fmt.Errorf("failed to persist generation for template %s: %w", tpl.ID, err)
	}

	return instances, ended, nil
}
