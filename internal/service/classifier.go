package service

import (
	"sort"
	"strings"

	"github.com/expensaur/backend/internal/model"
)

// Classify diffs an edited expense against its originating template and
// returns one FieldChange per diverging field, in a fixed field order.
// Unchanged fields are omitted; an unedited instance yields an empty slice.
//
// Comparison rules: amounts compare as exact decimals, strings compare after
// trimming (so empty vs whitespace is not a change), tags compare as sets
// with one change carrying the full before/after sets.
func Classify(edited *model.Expense, tpl *model.Template) []model.FieldChange {
	var changes []model.FieldChange

	if !edited.Amount.Equal(tpl.Amount) {
		changes = append(changes, model.FieldChange{
			Field: model.ChangeAmount,
			From:  tpl.Amount.String(),
			To:    edited.Amount.String(),
		})
	}

	if c, ok := stringChange(model.ChangeMerchant, tpl.Merchant, edited.Merchant); ok {
		changes = append(changes, c)
	}
	if tpl.CategoryID != edited.CategoryID {
		changes = append(changes, model.FieldChange{
			Field: model.ChangeCategory,
			From:  tpl.CategoryID,
			To:    edited.CategoryID,
		})
	}
	if c, ok := stringChange(model.ChangeNotes, tpl.Notes, edited.Notes); ok {
		changes = append(changes, c)
	}
	if c, ok := stringChange(model.ChangePaymentMethod, tpl.PaymentMethod, edited.PaymentMethod); ok {
		changes = append(changes, c)
	}
	if c, ok := stringChange(model.ChangeCurrency, tpl.Currency, edited.Currency); ok {
		changes = append(changes, c)
	}

	if !sameTagSet(tpl.Tags, edited.Tags) {
		from := normalizeTags(tpl.Tags)
		to := normalizeTags(edited.Tags)
		changes = append(changes, model.FieldChange{
			Field:    model.ChangeTags,
			From:     strings.Join(from, ","),
			To:       strings.Join(to, ","),
			TagsFrom: from,
			TagsTo:   to,
		})
	}

	return changes
}

func stringChange(field model.ChangeField, from, to string) (model.FieldChange, bool) {
	f := strings.TrimSpace(from)
	t := strings.TrimSpace(to)
	if f == t {
		return model.FieldChange{}, false
	}
	return model.FieldChange{Field: field, From: f, To: t}, true
}

// normalizeTags trims, dedupes and sorts a tag list into canonical set form.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func sameTagSet(a, b []string) bool {
	na, nb := normalizeTags(a), normalizeTags(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}
