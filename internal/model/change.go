package model

import "fmt"

// ChangeField identifies which template field an edited expense diverged on.
type ChangeField string

const (
	ChangeAmount        ChangeField = "amount"
	ChangeMerchant      ChangeField = "merchant"
	ChangeCategory      ChangeField = "category"
	ChangeNotes         ChangeField = "notes"
	ChangePaymentMethod ChangeField = "payment_method"
	ChangeCurrency      ChangeField = "currency"
	ChangeTags          ChangeField = "tags"
)

// FieldChange is one detected divergence between an edited expense and its
// template. From/To are string-rendered values; for tags they hold the full
// before and after sets. FieldChanges are ephemeral and never persisted.
type FieldChange struct {
	Field ChangeField
	From  string
	To    string

	// TagsFrom/TagsTo carry the structured sets for ChangeTags.
	TagsFrom []string
	TagsTo   []string
}

// UpdatePreference is the standing answer to "should instance edits flow
// back into the template". A single persisted slot; reads of an unset slot
// default to PreferenceAlwaysAsk.
type UpdatePreference string

const (
	PreferenceAlwaysAsk               UpdatePreference = "always_ask"
	PreferenceAlwaysUpdateTemplate    UpdatePreference = "always_update_template"
	PreferenceAlwaysUpdateExpenseOnly UpdatePreference = "always_update_expense_only"
)

// Valid reports whether p is one of the three known preferences.
func (p UpdatePreference) Valid() bool {
	switch p {
	case PreferenceAlwaysAsk, PreferenceAlwaysUpdateTemplate, PreferenceAlwaysUpdateExpenseOnly:
		return true
	}
	return false
}

// ReconcileChoice is a single reconciliation decision, either made
// explicitly by the user or derived from their stored preference.
type ReconcileChoice string

const (
	ChoiceNone              ReconcileChoice = ""
	ChoiceUpdateTemplate    ReconcileChoice = "update_template"
	ChoiceUpdateExpenseOnly ReconcileChoice = "update_expense_only"
	ChoiceCancel            ReconcileChoice = "cancel"
)

// ParseReconcileChoice validates a choice string. The empty string is valid
// and means "decide from the stored preference".
func ParseReconcileChoice(s string) (ReconcileChoice, error) {
	switch c := ReconcileChoice(s); c {
	case ChoiceNone, ChoiceUpdateTemplate, ChoiceUpdateExpenseOnly, ChoiceCancel:
		return c, nil
	}
	return ChoiceNone, &ValidationError{Field: "choice", Reason: fmt.Sprintf("unknown reconcile choice %q", s)}
}
