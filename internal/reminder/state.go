package reminder

import (
	"fmt"
	"strings"
	"time"

	"backoffice/internal/dates"
	"backoffice/internal/model"
)

// Status is derived on every read from evidence and the current time.
type Status string

const (
	StatusPending      Status = "pending"
	StatusOverdue      Status = "overdue"
	StatusPosted       Status = "posted"
	StatusDraftCreated Status = "draft-created"
)

// Terminal reports whether evidence for the reminder was found.
// Placeholder values match case-insensitively.
func (s Status) Terminal() bool {
	v := strings.TrimSpace(string(s))
	return v != "" && !strings.EqualFold(v, string(StatusPending)) && !strings.EqualFold(v, string(StatusOverdue))
}

// SlotState is the derived status of one event reminder.
type SlotState struct {
	Slot
	Status   Status
	Evidence string
}

// EventState groups the reminders of one upcoming event.
type EventState struct {
	Event  model.Event
	Anchor time.Time
	Slots  []SlotState
}

// WeeklyState is the status of one weekday content slot of the current week.
type WeeklyState struct {
	Label    string
	Weekday  time.Weekday
	Date     time.Time
	DueAt    time.Time
	Status   Status
	Evidence string
}

// Summary aggregates a snapshot.
type Summary struct {
	Pending          int
	Overdue          int
	Done             int
	OverdueByChannel map[Channel]int
	MissingWeekdays  []string
	UpcomingWeekdays []string
}

// Snapshot is the full derived reminder view at one instant.
type Snapshot struct {
	Now     time.Time
	Events  []EventState
	Weekly  []WeeklyState
	Summary Summary
}

// Computer derives reminder status. It never writes.
type Computer struct {
	settings Settings
}

func NewComputer(settings Settings) *Computer {
	return &Computer{settings: settings}
}

// Compute joins upcoming events with the tracking ledger and content rows.
func (c *Computer) Compute(events []model.Event, ledger []model.ReminderEntry, content []model.ContentPost, now time.Time) Snapshot {
	loc := c.settings.location()
	snap := Snapshot{
		Now:     now,
		Summary: Summary{OverdueByChannel: make(map[Channel]int)},
	}

	entries := indexLedger(ledger)
	for _, ae := range upcoming(events, now, loc) {
		state := EventState{Event: ae.event, Anchor: ae.anchor}
		for _, slot := range Slots(ae.event, ae.anchor, c.settings.Tiers, c.settings.Channels) {
			st := SlotState{Slot: slot}
			switch slot.Channel {
			case ChannelSocial:
				st.Status, st.Evidence = socialStatus(slot, content, now)
			default:
				st.Status, st.Evidence = emailStatus(slot, entries, now)
			}
			snap.Summary.count(slot.Channel, st.Status)
			state.Slots = append(state.Slots, st)
		}
		snap.Events = append(snap.Events, state)
	}

	for _, ws := range c.weekly(content, now, loc) {
		snap.Summary.count(ChannelWeekly, ws.Status)
		switch ws.Status {
		case StatusOverdue:
			snap.Summary.MissingWeekdays = append(snap.Summary.MissingWeekdays, ws.Label)
		case StatusPending:
			snap.Summary.UpcomingWeekdays = append(snap.Summary.UpcomingWeekdays, ws.Label)
		}
		snap.Weekly = append(snap.Weekly, ws)
	}
	return snap
}

func (s *Summary) count(ch Channel, st Status) {
	switch st {
	case StatusPending:
		s.Pending++
	case StatusOverdue:
		s.Overdue++
		s.OverdueByChannel[ch]++
	default:
		s.Done++
	}
}

func timeStatus(due, now time.Time) Status {
	if now.After(due) {
		return StatusOverdue
	}
	return StatusPending
}

func ledgerKey(targetID, reminderType string) string {
	return targetID + "\x00" + reminderType
}

func indexLedger(ledger []model.ReminderEntry) map[string]model.ReminderEntry {
	out := make(map[string]model.ReminderEntry, len(ledger))
	for _, e := range ledger {
		key := ledgerKey(strings.TrimSpace(e.TargetID), strings.TrimSpace(e.ReminderType))
		if _, dup := out[key]; !dup {
			out[key] = e
		}
	}
	return out
}

// emailStatus copies the ledger status verbatim once it records real work.
// The pending and overdue values the seeder writes are placeholders, so they
// are recomputed from the clock instead.
func emailStatus(slot Slot, entries map[string]model.ReminderEntry, now time.Time) (Status, string) {
	e, ok := entries[ledgerKey(slot.EventID, slot.ReminderType)]
	if ok {
		st := Status(strings.TrimSpace(e.Status))
		if st.Terminal() {
			return st, firstNonEmpty(e.CampaignID, e.DashboardLink, e.PostID)
		}
	}
	return timeStatus(slot.DueAt, now), ""
}

func socialStatus(slot Slot, content []model.ContentPost, now time.Time) (Status, string) {
	purpose := ContentPurpose(slot.Kind, slot.Tier)
	for _, post := range content {
		if !isLive(post) || strings.TrimSpace(post.Purpose) != purpose || strings.TrimSpace(post.TargetID) != slot.EventID {
			continue
		}
		return StatusPosted, fmt.Sprintf("content#%d", post.ID)
	}
	return timeStatus(slot.DueAt, now), ""
}

// weekly evaluates this week's weekday content slots. A post counts for a
// slot when it lands anywhere in the same ISO week, so Monday content posted
// on Tuesday still satisfies Monday.
func (c *Computer) weekly(content []model.ContentPost, now time.Time, loc *time.Location) []WeeklyState {
	weekStart := dates.StartOfWeek(now, loc)
	out := make([]WeeklyState, 0, len(c.settings.WeeklyDays))
	for _, day := range c.settings.WeeklyDays {
		date := weekStart.AddDate(0, 0, (int(day)+6)%7)
		ws := WeeklyState{
			Label:   strings.ToLower(day.String()),
			Weekday: day,
			Date:    date,
			DueAt:   date.AddDate(0, 0, 1),
		}
		purpose := WeeklyPurpose(day)
		for _, post := range content {
			if !isLive(post) || strings.TrimSpace(post.Purpose) != purpose {
				continue
			}
			when, ok := contentDate(post, loc)
			if ok && dates.SameISOWeek(when, date) {
				ws.Status = StatusPosted
				ws.Evidence = fmt.Sprintf("content#%d", post.ID)
				break
			}
		}
		if ws.Status == "" {
			ws.Status = timeStatus(ws.DueAt, now)
		}
		out = append(out, ws)
	}
	return out
}

func isLive(post model.ContentPost) bool {
	switch strings.ToLower(strings.TrimSpace(post.Status)) {
	case strings.ToLower(model.ContentPublished), strings.ToLower(model.ContentScheduled):
		return true
	}
	return false
}

// contentDate is when a post went (or goes) out, as a calendar time in loc.
func contentDate(post model.ContentPost, loc *time.Location) (time.Time, bool) {
	if post.PublishedDate != nil && !post.PublishedDate.IsZero() {
		return post.PublishedDate.In(loc), true
	}
	t, ok := dates.ParseDate(post.ScheduleDate)
	if !ok {
		return time.Time{}, false
	}
	if dates.LooksDateOnly(post.ScheduleDate) {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), true
	}
	return t.In(loc), true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
