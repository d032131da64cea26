package service

import (
	"context"
	"sort"
	"time"

	"github.com/expensaur/backend/internal/model"
)

// Reminder is a computed reminder for an upcoming due date. The engine only
// computes when a reminder should fire; delivery belongs to a collaborator.
type Reminder struct {
	TemplateID string
	Merchant   string
	Amount     string
	DueDate    time.Time
	FireDate   time.Time
}

// UpcomingReminders computes the reminders that fire within [asOf,
// asOf+window] for active templates carrying a reminder lead time, sorted by
// fire date.
func (s *Service) UpcomingReminders(ctx context.Context, asOf time.Time, window time.Duration) ([]Reminder, error) {
	from := model.DateOnly(asOf)
	until := from.Add(window)

	var reminders []Reminder
	err := s.forEachTemplate(ctx, true, func(tpl *model.Template) {
		if tpl.ReminderDaysBefore == nil {
			return
		}
		fire := tpl.NextDueDate.AddDate(0, 0, -*tpl.ReminderDaysBefore)
		if fire.Before(from) || fire.After(until) {
			return
		}
		reminders = append(reminders, Reminder{
			TemplateID: tpl.ID,
			Merchant:   tpl.Merchant,
			Amount:     tpl.Amount.String(),
			DueDate:    tpl.NextDueDate,
			FireDate:   fire,
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(reminders, func(i, j int) bool {
		if reminders[i].FireDate.Equal(reminders[j].FireDate) {
			return reminders[i].TemplateID < reminders[j].TemplateID
		}
		return reminders[i].FireDate.Before(reminders[j].FireDate)
	})
	return reminders, nil
}
