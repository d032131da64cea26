package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensaur/backend/internal/model"
	"github.com/expensaur/backend/internal/store"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func logrusQuiet() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return New(st, logrusQuiet()), st
}

func mustTemplate(t *testing.T, merchant string, p model.Pattern, start time.Time) *model.Template {
	t.Helper()
	tpl, err := model.NewTemplate(merchant, decimal.NewFromInt(50), "USD", p, start)
	require.NoError(t, err)
	return tpl
}

func TestGetDue(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	monthly := model.Pattern{Frequency: model.FrequencyMonthly, Interval: 1}

	due := mustTemplate(t, "Due", monthly, date(2024, time.March, 1))
	require.NoError(t, st.CreateTemplate(ctx, due))

	dueToday := mustTemplate(t, "Due today", monthly, date(2024, time.April, 5))
	require.NoError(t, st.CreateTemplate(ctx, dueToday))

	future := mustTemplate(t, "Future", monthly, date(2024, time.May, 1))
	require.NoError(t, st.CreateTemplate(ctx, future))

	inactive := mustTemplate(t, "Inactive", monthly, date(2024, time.March, 1))
	inactive.Active = false
	require.NoError(t, st.CreateTemplate(ctx, inactive))

	got, err := svc.GetDue(ctx, date(2024, time.April, 5))
	require.NoError(t, err)

	var merchants []string
	for _, tpl := range got {
		merchants = append(merchants, tpl.Merchant)
	}
	sort.Strings(merchants)
	assert.Equal(t, []string{"Due", "Due today"}, merchants)
}

func TestGenerateForTemplate_Backfill(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	tpl := mustTemplate(t, "Gym",
		model.Pattern{Frequency: model.FrequencyMonthly, Interval: 1, DayOfMonth: intPtr(1)},
		date(2024, time.January, 1))
	require.NoError(t, st.CreateTemplate(ctx, tpl))

	created, ended, err := svc.GenerateForTemplate(ctx, tpl, date(2024, time.April, 5))
	require.NoError(t, err)
	assert.False(t, ended)
	require.Len(t, created, 4)

	wantDates := []time.Time{
		date(2024, time.January, 1),
		date(2024, time.February, 1),
		date(2024, time.March, 1),
		date(2024, time.April, 1),
	}
	for i, e := range created {
		assert.Equal(t, wantDates[i], e.Date, "instance %d", i)
		assert.Equal(t, tpl.ID, e.TemplateID)
		assert.Equal(t, "Gym", e.Merchant)
	}

	stored, err := st.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.May, 1), stored.NextDueDate)
	assert.True(t, stored.Active)

	persisted, _, err := st.ListExpenses(ctx, tpl.ID, 100, "")
	require.NoError(t, err)
	assert.Len(t, persisted, 4)
}

func TestGenerateForTemplate_NotYetDue(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	tpl := mustTemplate(t, "Rent",
		model.Pattern{Frequency: model.FrequencyMonthly, Interval: 1},
		date(2024, time.June, 1))
	require.NoError(t, st.CreateTemplate(ctx, tpl))

	created, ended, err := svc.GenerateForTemplate(ctx, tpl, date(2024, time.May, 20))
	require.NoError(t, err)
	assert.False(t, ended)
	assert.Empty(t, created)

	persisted, _, err := st.ListExpenses(ctx, tpl.ID, 100, "")
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestGenerateForTemplate_EndDateStopsGeneration(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	tpl := mustTemplate(t, "Lease",
		model.Pattern{Frequency: model.FrequencyMonthly, Interval: 1},
		date(2024, time.January, 1))
	end := date(2024, time.February, 15)
	tpl.EndDate = &end
	require.NoError(t, st.CreateTemplate(ctx, tpl))

	// Jan 1 and Feb 1 are in range; Mar 1 is past the end date.
	created, ended, err := svc.GenerateForTemplate(ctx, tpl, date(2024, time.April, 1))
	require.NoError(t, err)
	assert.True(t, ended)
	require.Len(t, created, 2)
	assert.Equal(t, date(2024, time.February, 1), created[1].Date)

	stored, err := st.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active, "ended template is deactivated")
}

func TestGenerateDue_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	tpl := mustTemplate(t, "Netflix",
		model.Pattern{Frequency: model.FrequencyMonthly, Interval: 1},
		date(2024, time.January, 15))
	require.NoError(t, st.CreateTemplate(ctx, tpl))

	asOf := date(2024, time.March, 20)

	first, err := svc.GenerateDue(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)
	assert.Len(t, first.Created, 3)

	second, err := svc.GenerateDue(ctx, asOf)
	require.NoError(t, err)
	assert.Empty(t, second.Created, "second sweep at the same cutoff creates nothing")
	assert.Equal(t, 1, second.Skipped)

	persisted, _, err := st.ListExpenses(ctx, tpl.ID, 100, "")
	require.NoError(t, err)
	assert.Len(t, persisted, 3)
}

func TestGenerateDue_NextDueDateMonotonic(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	tpl := mustTemplate(t, "Rent",
		model.Pattern{Frequency: model.FrequencyMonthly, Interval: 1},
		date(2024, time.January, 10))
	require.NoError(t, st.CreateTemplate(ctx, tpl))

	prev := time.Time{}
	cutoffs := []time.Time{
		date(2024, time.February, 1),
		date(2024, time.February, 1), // repeated cutoff must not move it back
		date(2024, time.March, 15),
		date(2024, time.June, 30),
	}
	for _, asOf := range cutoffs {
		_, err := svc.GenerateDue(ctx, asOf)
		require.NoError(t, err)

		stored, err := st.GetTemplate(ctx, tpl.ID)
		require.NoError(t, err)
		assert.True(t, stored.NextDueDate.After(asOf), "next due date %s not past cutoff %s", stored.NextDueDate, asOf)
		assert.False(t, stored.NextDueDate.Before(prev), "next due date moved backward")
		prev = stored.NextDueDate
	}
}

func TestGenerateDue_Counters(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	monthly := model.Pattern{Frequency: model.FrequencyMonthly, Interval: 1}

	due := mustTemplate(t, "Due", monthly, date(2024, time.March, 1))
	require.NoError(t, st.CreateTemplate(ctx, due))

	notDue := mustTemplate(t, "Not due", monthly, date(2024, time.June, 1))
	require.NoError(t, st.CreateTemplate(ctx, notDue))

	expired := mustTemplate(t, "Expired", monthly, date(2024, time.March, 1))
	end := date(2024, time.February, 1)
	expired.EndDate = &end
	require.NoError(t, st.CreateTemplate(ctx, expired))

	result, err := svc.GenerateDue(ctx, date(2024, time.April, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Ended)
	assert.Empty(t, result.Errors)
}

// failingGenerationStore fails ApplyGeneration for one template ID so error
// isolation across siblings can be observed.
type failingGenerationStore struct {
	*store.MemoryStore
	failID string
}

func (f *failingGenerationStore) ApplyGeneration(ctx context.Context, tpl *model.Template, instances []*model.Expense) error {
	if tpl.ID == f.failID {
		return errors.New("simulated store failure")
	}
	return f.MemoryStore.ApplyGeneration(ctx, tpl, instances)
}

func TestGenerateDue_ErrorIsolation(t *testing.T) {
	ctx := context.Background()

	monthly := model.Pattern{Frequency: model.FrequencyMonthly, Interval: 1}
	mem := store.NewMemoryStore()

	broken := mustTemplate(t, "Broken", monthly, date(2024, time.March, 1))
	require.NoError(t, mem.CreateTemplate(ctx, broken))

	healthy := mustTemplate(t, "Healthy", monthly, date(2024, time.March, 1))
	require.NoError(t, mem.CreateTemplate(ctx, healthy))

	svc := New(&failingGenerationStore{MemoryStore: mem, failID: broken.ID}, logrusQuiet())

	result, err := svc.GenerateDue(ctx, date(2024, time.March, 10))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed, "healthy sibling still processed")
	require.Contains(t, result.Errors, broken.ID)

	persisted, _, err := mem.ListExpenses(ctx, healthy.ID, 100, "")
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestGenerateDue_SnapshotsAreFrozen(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	tpl := mustTemplate(t, "Gym",
		model.Pattern{Frequency: model.FrequencyMonthly, Interval: 1},
		date(2024, time.January, 1))
	require.NoError(t, st.CreateTemplate(ctx, tpl))

	first, err := svc.GenerateDue(ctx, date(2024, time.January, 1))
	require.NoError(t, err)
	require.Len(t, first.Created, 1)

	// Raise the template's amount; already-generated instances keep theirs.
	stored, err := st.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	stored.Amount = decimal.NewFromInt(75)
	require.NoError(t, st.UpdateTemplate(ctx, stored))

	second, err := svc.GenerateDue(ctx, date(2024, time.February, 1))
	require.NoError(t, err)
	require.Len(t, second.Created, 1)
	assert.True(t, second.Created[0].Amount.Equal(decimal.NewFromInt(75)))

	old, err := st.GetExpense(ctx, first.Created[0].ID)
	require.NoError(t, err)
	assert.True(t, old.Amount.Equal(decimal.NewFromInt(50)))
}
