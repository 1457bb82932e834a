// Package reminder schedules lead-time reminders for events: it computes
// tier due times, derives reminder status from ledger and content evidence,
// and plans the ledger rows that track each reminder.
package reminder

import (
	"sort"
	"strings"
	"time"

	"backoffice/internal/dates"
	"backoffice/internal/model"
)

// Channel is the medium a reminder goes out on.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelSocial Channel = "social"
	ChannelWeekly Channel = "weekly"
)

// Tier is a lead time before an event at which a reminder fires.
type Tier struct {
	Key  string
	Lead time.Duration
}

// DefaultTiers are the one week, one day and one hour reminders.
var DefaultTiers = []Tier{
	{Key: "1week", Lead: 7 * 24 * time.Hour},
	{Key: "1day", Lead: 24 * time.Hour},
	{Key: "1hour", Lead: time.Hour},
}

// Settings configure which reminders exist for an event.
type Settings struct {
	Tiers      []Tier
	Channels   []Channel
	WeeklyDays []time.Weekday
	Location   *time.Location
	CreatedBy  string
}

// DefaultSettings covers email and social reminders for every default tier
// plus Monday, Wednesday and Friday weekly content.
func DefaultSettings() Settings {
	return Settings{
		Tiers:      DefaultTiers,
		Channels:   []Channel{ChannelEmail, ChannelSocial},
		WeeklyDays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		Location:   time.UTC,
		CreatedBy:  "reminder-seeder",
	}
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// DueTimes returns anchor minus each tier's lead, in tier order.
func DueTimes(anchor time.Time, tiers []Tier) []time.Time {
	out := make([]time.Time, len(tiers))
	for i, tier := range tiers {
		out[i] = anchor.Add(-tier.Lead)
	}
	return out
}

// ReminderType is the ledger key for one tier and channel, e.g.
// "webinar-1week" or "webinar-social-1day".
func ReminderType(kind, tier string, ch Channel) string {
	if ch == ChannelSocial {
		return kind + "-social-" + tier
	}
	return kind + "-" + tier
}

// ContentPurpose is the purpose tag social posts carry for a tier.
func ContentPurpose(kind, tier string) string {
	return kind + "-" + tier
}

// WeeklyPurpose is the purpose tag for weekly content, e.g. "weekly-monday".
func WeeklyPurpose(day time.Weekday) string {
	return "weekly-" + strings.ToLower(day.String())
}

func eventKind(ev model.Event) string {
	if k := strings.TrimSpace(ev.Kind); k != "" {
		return strings.ToLower(k)
	}
	return "webinar"
}

var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3:04 pm", "3:04pm", "3 PM", "3PM", "3pm"}

// Anchor combines an event's date and clock time in loc. A date that
// already carries a time of day wins over the Time field and, without an
// explicit zone, is read in loc too; a missing or unreadable Time anchors at
// midnight.
func Anchor(ev model.Event, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	day, ok := dates.ParseDateIn(ev.Date, loc)
	if !ok {
		return time.Time{}, false
	}
	if !dates.LooksDateOnly(ev.Date) {
		return day, true
	}

	hour, minute := 0, 0
	if raw := strings.TrimSpace(ev.Time); raw != "" {
		for _, layout := range clockLayouts {
			if c, err := time.Parse(layout, raw); err == nil {
				hour, minute = c.Hour(), c.Minute()
				break
			}
		}
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc), true
}

// Slot is one (event, tier, channel) reminder.
type Slot struct {
	EventID      string
	EventTitle   string
	Kind         string
	Tier         string
	Channel      Channel
	ReminderType string
	Anchor       time.Time
	DueAt        time.Time
}

// Slots expands an anchored event into its tier × channel reminders.
func Slots(ev model.Event, anchor time.Time, tiers []Tier, channels []Channel) []Slot {
	kind := eventKind(ev)
	due := DueTimes(anchor, tiers)
	out := make([]Slot, 0, len(tiers)*len(channels))
	for i, tier := range tiers {
		for _, ch := range channels {
			out = append(out, Slot{
				EventID:      strings.TrimSpace(ev.ID),
				EventTitle:   ev.Title,
				Kind:         kind,
				Tier:         tier.Key,
				Channel:      ch,
				ReminderType: ReminderType(kind, tier.Key, ch),
				Anchor:       anchor,
				DueAt:        due[i],
			})
		}
	}
	return out
}

type anchoredEvent struct {
	event  model.Event
	anchor time.Time
}

// upcoming keeps events that anchor after now and are not cancelled or
// completed, sorted by anchor.
func upcoming(events []model.Event, now time.Time, loc *time.Location) []anchoredEvent {
	var out []anchoredEvent
	for _, ev := range events {
		if strings.TrimSpace(ev.ID) == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(ev.Status)) {
		case "cancelled", "canceled", "completed":
			continue
		}
		anchor, ok := Anchor(ev, loc)
		if !ok || !anchor.After(now) {
			continue
		}
		out = append(out, anchoredEvent{event: ev, anchor: anchor})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].anchor.Before(out[j].anchor) })
	return out
}
