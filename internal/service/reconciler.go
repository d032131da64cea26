package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/expensaur/backend/internal/model"
	"github.com/expensaur/backend/internal/store"
)

// OutcomeKind is the terminal (or pending) state of one reconciliation.
type OutcomeKind string

const (
	// OutcomeNoop: nothing diverged from the template; the edit was saved
	// without touching the template.
	OutcomeNoop OutcomeKind = "noop"
	// OutcomeAwaitingChoice: the stored preference is always-ask and no
	// explicit choice was supplied; no writes happened. The caller surfaces
	// the changes to the user and calls Reconcile again with a choice.
	OutcomeAwaitingChoice OutcomeKind = "awaiting_choice"
	// OutcomeAppliedToTemplate: changed fields were written back into the
	// template; the instance keeps its back-reference.
	OutcomeAppliedToTemplate OutcomeKind = "applied_to_template"
	// OutcomeDetached: the instance was saved and its template reference
	// cleared; future template edits no longer affect it.
	OutcomeDetached OutcomeKind = "detached"
	// OutcomeCancelled: the edit was discarded; the instance's last-saved
	// state stands.
	OutcomeCancelled OutcomeKind = "cancelled"
)

// ReconcileRequest carries one edit event into the reconciler. Expense is
// the edited (not yet saved) state of an instance. Choice may be empty, in
// which case the stored update preference decides; RememberChoice persists
// an explicit choice as the new standing preference.
type ReconcileRequest struct {
	Expense        *model.Expense
	Choice         model.ReconcileChoice
	RememberChoice bool
}

// Outcome reports what the reconciler did with an edit event.
type Outcome struct {
	Kind    OutcomeKind
	Changes []model.FieldChange

	// Expense is the instance's state after reconciliation (the stored state
	// for cancellations).
	Expense *model.Expense
}

// Reconcile runs the detect -> resolve -> apply state machine for one edited
// instance. A template deleted between classification and apply is treated
// as a conflict resolved by detaching the instance rather than failing.
func (s *Service) Reconcile(ctx context.Context, req ReconcileRequest) (*Outcome, error) {
	edited := req.Expense

	// Instances without a template reference have nothing to reconcile
	// against; the edit is saved unless the caller cancelled it.
	if edited.Detached() {
		if req.Choice == model.ChoiceCancel {
			return s.cancelledOutcome(ctx, edited, nil)
		}
		if err := s.saveExpense(ctx, edited); err != nil {
			return nil, err
		}
		return &Outcome{Kind: OutcomeNoop, Expense: edited}, nil
	}

	tpl, err := s.store.GetTemplate(ctx, edited.TemplateID)
	if err != nil {
		if errors.Is(err, store.ErrTemplateNotFound) {
			return s.detachAfterConflict(ctx, edited)
		}
		return nil, fmt.Errorf("failed to load template for reconciliation: %w", err)
	}

	changes := Classify(edited, tpl)
	if len(changes) == 0 {
		if req.Choice == model.ChoiceCancel {
			return s.cancelledOutcome(ctx, edited, nil)
		}
		if err := s.saveExpense(ctx, edited); err != nil {
			return nil, err
		}
		return &Outcome{Kind: OutcomeNoop, Expense: edited}, nil
	}

	choice := req.Choice
	explicit := choice != model.ChoiceNone
	if !explicit {
		pref, err := s.store.GetUpdatePreference(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read update preference: %w", err)
		}
		switch pref {
		case model.PreferenceAlwaysUpdateTemplate:
			choice = model.ChoiceUpdateTemplate
		case model.PreferenceAlwaysUpdateExpenseOnly:
			choice = model.ChoiceUpdateExpenseOnly
		default:
			return &Outcome{Kind: OutcomeAwaitingChoice, Changes: changes, Expense: edited}, nil
		}
	}

	outcome, err := s.applyChoice(ctx, edited, tpl, changes, choice)
	if err != nil {
		return nil, err
	}

	if explicit && req.RememberChoice {
		var pref model.UpdatePreference
		switch choice {
		case model.ChoiceUpdateTemplate:
			pref = model.PreferenceAlwaysUpdateTemplate
		case model.ChoiceUpdateExpenseOnly:
			pref = model.PreferenceAlwaysUpdateExpenseOnly
		}
		if pref != "" {
			if err := s.store.SetUpdatePreference(ctx, pref); err != nil {
				return nil, fmt.Errorf("failed to persist update preference: %w", err)
			}
		}
	}

	return outcome, nil
}

func (s *Service) applyChoice(ctx context.Context, edited *model.Expense, tpl *model.Template, changes []model.FieldChange, choice model.ReconcileChoice) (*Outcome, error) {
	switch choice {
	case model.ChoiceUpdateTemplate:
		applyChangesToTemplate(tpl, edited, changes)
		now := time.Now().UTC()
		tpl.UpdatedAt = now
		edited.UpdatedAt = now
		// Both writes go through one store transaction so a failure leaves
		// neither the template nor the instance half-updated.
		if err := s.store.ApplyReconciliation(ctx, tpl, edited); err != nil {
			if errors.Is(err, store.ErrTemplateNotFound) {
				return s.detachAfterConflict(ctx, edited)
			}
			return nil, fmt.Errorf("failed to apply reconciliation: %w", err)
		}
		return &Outcome{Kind: OutcomeAppliedToTemplate, Changes: changes, Expense: edited}, nil

	case model.ChoiceUpdateExpenseOnly:
		edited.TemplateID = ""
		if err := s.saveExpense(ctx, edited); err != nil {
			return nil, err
		}
		return &Outcome{Kind: OutcomeDetached, Changes: changes, Expense: edited}, nil

	case model.ChoiceCancel:
		return s.cancelledOutcome(ctx, edited, changes)
	}

	return nil, &model.ValidationError{Field: "choice", Reason: fmt.Sprintf("unknown reconcile choice %q", choice)}
}

// cancelledOutcome discards the edit: no write happens and the stored state
// is returned as the reverted state.
func (s *Service) cancelledOutcome(ctx context.Context, edited *model.Expense, changes []model.FieldChange) (*Outcome, error) {
	stored, err := s.store.GetExpense(ctx, edited.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense for revert: %w", err)
	}
	return &Outcome{Kind: OutcomeCancelled, Changes: changes, Expense: stored}, nil
}

// detachAfterConflict is the conflict fallback: the template vanished under
// the edit, so the instance is saved as an independent expense.
func (s *Service) detachAfterConflict(ctx context.Context, edited *model.Expense) (*Outcome, error) {
	s.log.WithField("expense_id", edited.ID).Warn("template gone during reconciliation; detaching instance")
	edited.TemplateID = ""
	if err := s.saveExpense(ctx, edited); err != nil {
		return nil, err
	}
	return &Outcome{Kind: OutcomeDetached, Expense: edited}, nil
}

func (s *Service) saveExpense(ctx context.Context, e *model.Expense) error {
	e.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return fmt.Errorf("failed to save expense: %w", err)
	}
	return nil
}

// applyChangesToTemplate writes each changed field's edited value into the
// template. Only future generations see the new values; previously generated
// snapshots are untouched.
func applyChangesToTemplate(tpl *model.Template, edited *model.Expense, changes []model.FieldChange) {
	for _, c := range changes {
		switch c.Field {
		case model.ChangeAmount:
			tpl.Amount = edited.Amount
		case model.ChangeMerchant:
			tpl.Merchant = edited.Merchant
		case model.ChangeCategory:
			tpl.CategoryID = edited.CategoryID
		case model.ChangeNotes:
			tpl.Notes = edited.Notes
		case model.ChangePaymentMethod:
			tpl.PaymentMethod = edited.PaymentMethod
		case model.ChangeCurrency:
			tpl.Currency = edited.Currency
		case model.ChangeTags:
			tpl.Tags = append([]string(nil), c.TagsTo...)
		}
	}
}

// ParseAmount is the shared parse path for API layers that accept amounts
// as decimal strings.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &model.ValidationError{Field: "amount", Reason: "not a valid decimal"}
	}
	return d, nil
}
