package reminder

import (
	"strings"
	"time"

	"backoffice/internal/dates"
	"backoffice/internal/model"
)

// Seeder plans the tracking-ledger rows for upcoming events.
type Seeder struct {
	settings Settings
}

func NewSeeder(settings Settings) *Seeder {
	return &Seeder{settings: settings}
}

// Plan returns one new entry per (event, tier, channel) that has no ledger
// row yet. Existing rows are never touched, so running Plan against its own
// output yields nothing.
func (s *Seeder) Plan(events []model.Event, existing []model.ReminderEntry, now time.Time) []model.ReminderEntry {
	have := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		have[ledgerKey(strings.TrimSpace(e.TargetID), strings.TrimSpace(e.ReminderType))] = struct{}{}
	}

	checked := now
	var out []model.ReminderEntry
	for _, ae := range upcoming(events, now, s.settings.location()) {
		for _, slot := range Slots(ae.event, ae.anchor, s.settings.Tiers, s.settings.Channels) {
			key := ledgerKey(slot.EventID, slot.ReminderType)
			if _, ok := have[key]; ok {
				continue
			}
			have[key] = struct{}{}
			out = append(out, model.ReminderEntry{
				ReminderType: slot.ReminderType,
				TargetID:     slot.EventID,
				TargetDate:   dates.FormatISO(slot.Anchor),
				Status:       string(timeStatus(slot.DueAt, now)),
				Notes:        "due " + dates.FormatISO(slot.DueAt) + " for " + slot.EventTitle,
				CreatedBy:    s.settings.CreatedBy,
				LastChecked:  &checked,
				CreatedAt:    now,
			})
		}
	}
	return out
}
