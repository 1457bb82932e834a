package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"backoffice/internal/dates"
	"backoffice/internal/model"
	"backoffice/internal/reminder"
)

func priorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityRed:
		return iconRed
	case model.PriorityYellow:
		return iconYellow
	case model.PriorityGreen:
		return iconGreen
	default:
		return iconWhite
	}
}

func formatTask(task model.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>%s</b>\n   <code>%s</code>\n", priorityIcon(task.Priority), escape(task.Title), escape(task.ID)))
	if due, ok := dates.ParseDate(task.DueAt); ok {
		if now.After(due) {
			b.WriteString(fmt.Sprintf("   %s due %s, <b>overdue</b>\n", iconOverdue, due.Format("2006-01-02")))
		} else {
			b.WriteString(fmt.Sprintf("   ⏰ due %s, %s\n", due.Format("2006-01-02"), daysLeft(dates.DaysUntil(task.DueAt, now))))
		}
	}
	b.WriteByte('\n')
	return b.String()
}

func daysLeft(n int) string {
	switch n {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", n)
	}
}

func formatAlert(task model.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>%s</b>\n", priorityIcon(task.Priority), escape(task.RawText)))
	if due, ok := dates.ParseDate(task.DueAt); ok {
		b.WriteString(fmt.Sprintf("⏰ due %s (%s)\n", due.Format("2006-01-02"), daysLeft(dates.DaysUntil(task.DueAt, now))))
	}
	if notes := strings.TrimSpace(task.Notes); notes != "" {
		b.WriteString("\n" + escape(notes) + "\n")
	}
	b.WriteString(fmt.Sprintf("\n/done %s", escape(task.ID)))
	return b.String()
}

func formatStatus(snap reminder.Snapshot) string {
	var b strings.Builder
	s := snap.Summary
	b.WriteString(fmt.Sprintf("📊 <b>Reminders</b>: %d done, %d pending, %d overdue\n", s.Done, s.Pending, s.Overdue))
	if s.Overdue > 0 {
		channels := make([]string, 0, len(s.OverdueByChannel))
		for ch, n := range s.OverdueByChannel {
			channels = append(channels, fmt.Sprintf("%s %d", ch, n))
		}
		sort.Strings(channels)
		b.WriteString(fmt.Sprintf("%s overdue by channel: %s\n", iconOverdue, strings.Join(channels, ", ")))
	}

	for _, ev := range snap.Events {
		b.WriteString(fmt.Sprintf("\n<b>%s</b> · %s\n", escape(ev.Event.Title), ev.Anchor.Format("Mon Jan 2 15:04")))
		for _, st := range ev.Slots {
			b.WriteString(fmt.Sprintf("   %s %s %s\n", statusIcon(st.Status), escape(string(st.Channel)), escape(st.Tier)))
		}
	}

	if len(snap.Weekly) > 0 {
		b.WriteString("\n<b>This week</b>\n")
		for _, ws := range snap.Weekly {
			b.WriteString(fmt.Sprintf("   %s %s\n", statusIcon(ws.Status), ws.Label))
		}
	}
	return strings.TrimSpace(b.String())
}

func statusIcon(st reminder.Status) string {
	switch st {
	case reminder.StatusPending:
		return "⏳"
	case reminder.StatusOverdue:
		return iconOverdue
	default:
		return "✅"
	}
}

func shortTitle(title string, maxLen int) string {
	r := []rune(strings.TrimSpace(title))
	if len(r) <= maxLen {
		return string(r)
	}
	return string(r[:maxLen-1]) + "…"
}
