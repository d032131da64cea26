package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensaur/backend/internal/model"
	"github.com/expensaur/backend/internal/store"
)

// reconcilerFixture seeds a template and one generated instance.
func reconcilerFixture(t *testing.T) (*Service, *store.MemoryStore, *model.Template, *model.Expense) {
	t.Helper()
	ctx := context.Background()
	svc, st := newTestService(t)

	tpl := mustTemplate(t, "Gym",
		model.Pattern{Frequency: model.FrequencyMonthly, Interval: 1},
		date(2024, time.January, 1))
	tpl.Notes = "membership"
	require.NoError(t, st.CreateTemplate(ctx, tpl))

	e := tpl.Snapshot(tpl.NextDueDate)
	require.NoError(t, st.CreateExpense(ctx, e))
	return svc, st, tpl, e
}

func TestReconcile_NoDivergenceIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, _, _, e := reconcilerFixture(t)

	outcome, err := svc.Reconcile(ctx, ReconcileRequest{Expense: e})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome.Kind)
	assert.Empty(t, outcome.Changes)
}

func TestReconcile_DetachedExpenseSkipsClassification(t *testing.T) {
	ctx := context.Background()
	svc, st, _, e := reconcilerFixture(t)

	e.TemplateID = ""
	e.Notes = "totally different"

	outcome, err := svc.Reconcile(ctx, ReconcileRequest{Expense: e})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome.Kind)

	stored, err := st.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "totally different", stored.Notes)
}

func TestReconcile_AlwaysAskAwaitsChoice(t *testing.T) {
	ctx := context.Background()
	svc, st, tpl, e := reconcilerFixture(t)

	e.Notes = "membership plus towels"

	outcome, err := svc.Reconcile(ctx, ReconcileRequest{Expense: e})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingChoice, outcome.Kind)
	require.Len(t, outcome.Changes, 1)
	assert.Equal(t, model.ChangeNotes, outcome.Changes[0].Field)

	// Nothing was written: neither the edit nor the template.
	storedExpense, err := st.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "membership", storedExpense.Notes)

	storedTpl, err := st.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "membership", storedTpl.Notes)
}

func TestReconcile_UpdateTemplateChoice(t *testing.T) {
	ctx := context.Background()
	svc, st, tpl, e := reconcilerFixture(t)

	e.Amount = decimal.NewFromInt(60)
	e.Notes = "price hike"

	outcome, err := svc.Reconcile(ctx, ReconcileRequest{
		Expense: e,
		Choice:  model.ChoiceUpdateTemplate,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAppliedToTemplate, outcome.Kind)
	assert.Len(t, outcome.Changes, 2)

	storedTpl, err := st.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.True(t, storedTpl.Amount.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, "price hike", storedTpl.Notes)

	// The instance keeps its back-reference.
	storedExpense, err := st.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, storedExpense.TemplateID)
	assert.True(t, storedExpense.Amount.Equal(decimal.NewFromInt(60)))
}

func TestReconcile_TemplateScheduleUntouchedByApply(t *testing.T) {
	ctx := context.Background()
	svc, st, tpl, e := reconcilerFixture(t)

	e.Amount = decimal.NewFromInt(60)
	_, err := svc.Reconcile(ctx, ReconcileRequest{Expense: e, Choice: model.ChoiceUpdateTemplate})
	require.NoError(t, err)

	storedTpl, err := st.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tpl.NextDueDate, storedTpl.NextDueDate)
	assert.Equal(t, tpl.Pattern, storedTpl.Pattern)
}

func TestReconcile_UpdateExpenseOnlyDetaches(t *testing.T) {
	ctx := context.Background()
	svc, st, tpl, e := reconcilerFixture(t)

	e.Merchant = "Different Gym"

	outcome, err := svc.Reconcile(ctx, ReconcileRequest{
		Expense: e,
		Choice:  model.ChoiceUpdateExpenseOnly,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDetached, outcome.Kind)

	storedExpense, err := st.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, storedExpense.Detached())
	assert.Equal(t, "Different Gym", storedExpense.Merchant)

	storedTpl, err := st.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gym", storedTpl.Merchant, "template untouched")
}

func TestReconcile_CancelDiscardsEdit(t *testing.T) {
	ctx := context.Background()
	svc, st, _, e := reconcilerFixture(t)

	e.Notes = "edited away"

	outcome, err := svc.Reconcile(ctx, ReconcileRequest{
		Expense: e,
		Choice:  model.ChoiceCancel,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome.Kind)
	assert.Equal(t, "membership", outcome.Expense.Notes, "stored state is returned")

	stored, err := st.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "membership", stored.Notes)
}

func TestReconcile_StoredPreferenceDecides(t *testing.T) {
	ctx := context.Background()
	svc, st, tpl, e := reconcilerFixture(t)

	require.NoError(t, st.SetUpdatePreference(ctx, model.PreferenceAlwaysUpdateTemplate))
	e.Notes = "auto-applied"

	outcome, err := svc.Reconcile(ctx, ReconcileRequest{Expense: e})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAppliedToTemplate, outcome.Kind)

	storedTpl, err := st.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "auto-applied", storedTpl.Notes)
}

func TestReconcile_StoredPreferenceExpenseOnly(t *testing.T) {
	ctx := context.Background()
	svc, st, _, e := reconcilerFixture(t)

	require.NoError(t, st.SetUpdatePreference(ctx, model.PreferenceAlwaysUpdateExpenseOnly))
	e.Notes = "mine only"

	outcome, err := svc.Reconcile(ctx, ReconcileRequest{Expense: e})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDetached, outcome.Kind)
}

func TestReconcile_ExpenseOnlyPreference_AllChangeKinds(t *testing.T) {
	edits := map[string]func(e *model.Expense){
		"amount":         func(e *model.Expense) { e.Amount = decimal.NewFromInt(99) },
		"merchant":       func(e *model.Expense) { e.Merchant = "Other Gym" },
		"category":       func(e *model.Expense) { e.CategoryID = "misc" },
		"notes":          func(e *model.Expense) { e.Notes = "changed" },
		"payment_method": func(e *model.Expense) { e.PaymentMethod = "mastercard" },
		"currency":       func(e *model.Expense) { e.Currency = "EUR" },
		"tags":           func(e *model.Expense) { e.Tags = []string{"new-tag"} },
	}

	for name, edit := range edits {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, st, tpl, e := reconcilerFixture(t)
			require.NoError(t, st.SetUpdatePreference(ctx, model.PreferenceAlwaysUpdateExpenseOnly))

			before, err := st.GetTemplate(ctx, tpl.ID)
			require.NoError(t, err)

			edit(e)
			outcome, err := svc.Reconcile(ctx, ReconcileRequest{Expense: e})
			require.NoError(t, err)
			assert.Equal(t, OutcomeDetached, outcome.Kind)

			stored, err := st.GetExpense(ctx, e.ID)
			require.NoError(t, err)
			assert.True(t, stored.Detached())

			after, err := st.GetTemplate(ctx, tpl.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after, "template untouched")
		})
	}
}

func TestReconcile_RememberChoicePersists(t *testing.T) {
	ctx := context.Background()
	svc, st, _, e := reconcilerFixture(t)

	e.Notes = "remembered"
	_, err := svc.Reconcile(ctx, ReconcileRequest{
		Expense:        e,
		Choice:         model.ChoiceUpdateExpenseOnly,
		RememberChoice: true,
	})
	require.NoError(t, err)

	pref, err := st.GetUpdatePreference(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PreferenceAlwaysUpdateExpenseOnly, pref)
}

// preferenceCountingStore counts preference writes so tests can tell a
// no-op rewrite from no write at all.
type preferenceCountingStore struct {
	*store.MemoryStore
	sets int
}

func (p *preferenceCountingStore) SetUpdatePreference(ctx context.Context, pref model.UpdatePreference) error {
	p.sets++
	return p.MemoryStore.SetUpdatePreference(ctx, pref)
}

func TestReconcile_RememberIgnoredForDerivedChoice(t *testing.T) {
	ctx := context.Background()

	counting := &preferenceCountingStore{MemoryStore: store.NewMemoryStore()}
	log := logrusQuiet()
	svc := New(counting, log)

	tpl := mustTemplate(t, "Gym",
		model.Pattern{Frequency: model.FrequencyMonthly, Interval: 1},
		date(2024, time.January, 1))
	tpl.Notes = "membership"
	require.NoError(t, counting.CreateTemplate(ctx, tpl))
	e := tpl.Snapshot(tpl.NextDueDate)
	require.NoError(t, counting.CreateExpense(ctx, e))

	require.NoError(t, counting.SetUpdatePreference(ctx, model.PreferenceAlwaysUpdateTemplate))
	setsBefore := counting.sets

	// RememberChoice only applies to explicit choices; a preference-derived
	// choice must not rewrite the slot.
	e.Notes = "derived"
	_, err := svc.Reconcile(ctx, ReconcileRequest{Expense: e, RememberChoice: true})
	require.NoError(t, err)
	assert.Equal(t, setsBefore, counting.sets)
}

func TestReconcile_CancelNeverRemembered(t *testing.T) {
	ctx := context.Background()
	svc, st, _, e := reconcilerFixture(t)

	e.Notes = "cancelled"
	_, err := svc.Reconcile(ctx, ReconcileRequest{
		Expense:        e,
		Choice:         model.ChoiceCancel,
		RememberChoice: true,
	})
	require.NoError(t, err)

	pref, err := st.GetUpdatePreference(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PreferenceAlwaysAsk, pref)
}

func TestReconcile_DeletedTemplateDetaches(t *testing.T) {
	ctx := context.Background()
	svc, st, tpl, e := reconcilerFixture(t)

	require.NoError(t, st.DeleteTemplate(ctx, tpl.ID))
	e.Notes = "orphaned edit"

	outcome, err := svc.Reconcile(ctx, ReconcileRequest{Expense: e})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDetached, outcome.Kind)

	stored, err := st.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, stored.Detached())
	assert.Equal(t, "orphaned edit", stored.Notes)
}

// failingReconcileStore fails the reconciliation unit of work so its
// all-or-nothing guarantee can be observed at the service level.
type failingReconcileStore struct {
	*store.MemoryStore
}

func (f *failingReconcileStore) ApplyReconciliation(ctx context.Context, tpl *model.Template, expense *model.Expense) error {
	return errors.New("simulated store failure")
}

func TestReconcile_ApplyFailureLeavesTemplateUnchanged(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	tpl := mustTemplate(t, "Gym",
		model.Pattern{Frequency: model.FrequencyMonthly, Interval: 1},
		date(2024, time.January, 1))
	require.NoError(t, mem.CreateTemplate(ctx, tpl))
	e := tpl.Snapshot(tpl.NextDueDate)
	require.NoError(t, mem.CreateExpense(ctx, e))

	svc := New(&failingReconcileStore{MemoryStore: mem}, logrusQuiet())

	e.Amount = decimal.NewFromInt(60)
	_, err := svc.Reconcile(ctx, ReconcileRequest{Expense: e, Choice: model.ChoiceUpdateTemplate})
	require.Error(t, err)

	stored, err := mem.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(decimal.NewFromInt(50)),
		"template must be unchanged when the apply unit of work fails; got %s", stored.Amount)

	storedExpense, err := mem.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, storedExpense.Amount.Equal(decimal.NewFromInt(50)))
}

func TestReconcile_CancelOnDetachedDiscardsEdit(t *testing.T) {
	ctx := context.Background()
	svc, st, _, e := reconcilerFixture(t)

	e.TemplateID = ""
	require.NoError(t, st.UpdateExpense(ctx, e))

	e.Notes = "scribbled edit"
	outcome, err := svc.Reconcile(ctx, ReconcileRequest{Expense: e, Choice: model.ChoiceCancel})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome.Kind)
	assert.Equal(t, "membership", outcome.Expense.Notes)

	stored, err := st.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "membership", stored.Notes)
}

func TestReconcile_UnknownChoiceIsValidationError(t *testing.T) {
	ctx := context.Background()
	svc, _, _, e := reconcilerFixture(t)

	e.Notes = "changed"
	_, err := svc.Reconcile(ctx, ReconcileRequest{Expense: e, Choice: model.ReconcileChoice("bogus")})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "choice", verr.Field)
}
