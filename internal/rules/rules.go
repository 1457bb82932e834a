// Package rules turns bid records into notification tasks. Every function
// here is pure: records and the current instant in, tasks out.
package rules

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"backoffice/internal/dates"
	"backoffice/internal/model"
)

// Rule kinds double as the middle segment of task IDs.
const (
	KindCodeRed   = "codered"
	KindSubmitted = "submitted"
	KindOpening   = "opening"
)

const maxTitleLen = 95

// Options holds the thresholds the rules compare against.
type Options struct {
	ScoreThreshold    float64
	DueWithinDays     int
	AddedWithinDays   int
	OpeningWithinDays int
	OpeningUrgentDays int
	CreatedBy         string
	TZ                string
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		ScoreThreshold:    12.0,
		DueWithinDays:     10,
		AddedWithinDays:   30,
		OpeningWithinDays: 5,
		OpeningUrgentDays: 1,
		CreatedBy:         "bid-rules",
		TZ:                "UTC",
	}
}

// TaskID builds the deterministic ID for a rule firing on a source email.
func TaskID(kind, sourceEmailID string) string {
	return "bid-" + kind + ":" + sourceEmailID
}

var reScoreNoise = regexp.MustCompile(`[^0-9.\-]`)

// ParseScore extracts a number from strings like "Score: 15.2" or "7 pts". It returns
// NaN when nothing numeric is left, which fails every comparison.
func ParseScore(raw string) float64 {
	cleaned := reScoreNoise.ReplaceAllString(raw, "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// IsCodeRed reports whether a bid meets every code-red condition.
func IsCodeRed(b model.BidRecord, now time.Time, opts Options) bool {
	return strings.TrimSpace(b.Recommendation) == "Respond" &&
		ParseScore(b.Score) > opts.ScoreThreshold &&
		strings.TrimSpace(b.Relevance) == "High" &&
		dates.DaysUntil(b.DueDate, now) < opts.DueWithinDays &&
		dates.DaysSince(b.DateAdded, now) <= opts.AddedWithinDays
}

// CodeRed evaluates an active bid. Bids already past due or already worked
// (any status other than New) are suppressed.
func CodeRed(b model.BidRecord, now time.Time, opts Options) (model.Task, bool) {
	id := strings.TrimSpace(b.SourceEmailID)
	if id == "" {
		return model.Task{}, false
	}
	if status := strings.TrimSpace(b.Status); status != "" && status != "New" {
		return model.Task{}, false
	}
	if dates.DaysUntil(b.DueDate, now) < 0 {
		return model.Task{}, false
	}
	if !IsCodeRed(b, now, opts) {
		return model.Task{}, false
	}

	title := truncate(agencyName(b), maxTitleLen)
	return model.Task{
		ID:        TaskID(KindCodeRed, id),
		Title:     title,
		Priority:  model.PriorityRed,
		DueAt:     dates.DueAt(b.DueDate),
		RawText:   "CODE RED bid: " + title,
		Notes:     auditNotes(b),
		CreatedBy: opts.CreatedBy,
		TZ:        opts.TZ,
	}, true
}

// SubmissionConfirmed fires once per submitted bid; known holds source email
// IDs that were already confirmed.
func SubmissionConfirmed(b model.BidRecord, known IDSet, opts Options) (model.Task, bool) {
	id := strings.TrimSpace(b.SourceEmailID)
	if id == "" || known.Has(id) {
		return model.Task{}, false
	}
	title := truncate("Bid submitted: "+agencyName(b), maxTitleLen)
	notes := auditNotes(b)
	if sd := strings.TrimSpace(b.SubmittedDate); sd != "" {
		notes += "\nSubmitted: " + sd
	}
	return model.Task{
		ID:        TaskID(KindSubmitted, id),
		Title:     title,
		Priority:  model.PriorityWhite,
		RawText:   title,
		Notes:     notes,
		CreatedBy: opts.CreatedBy,
		TZ:        opts.TZ,
	}, true
}

// OpeningPressure fires when the formal bid opening is 0 to OpeningWithinDays
// days out, escalating to code red inside OpeningUrgentDays.
func OpeningPressure(b model.BidRecord, now time.Time, opts Options) (model.Task, bool) {
	id := strings.TrimSpace(b.SourceEmailID)
	if id == "" {
		return model.Task{}, false
	}
	raw := strings.TrimSpace(b.FormalBidOpeningDate)
	if _, ok := dates.ParseDate(raw); !ok {
		return model.Task{}, false
	}
	days := dates.DaysUntil(raw, now)
	if days < 0 || days > opts.OpeningWithinDays {
		return model.Task{}, false
	}

	priority := model.PriorityYellow
	if days <= opts.OpeningUrgentDays {
		priority = model.PriorityRed
	}
	title := truncate(fmt.Sprintf("Bid opening in %d %s: %s", days, plural(days, "day"), agencyName(b)), maxTitleLen)
	return model.Task{
		ID:        TaskID(KindOpening, id),
		Title:     title,
		Priority:  priority,
		DueAt:     dates.DueAt(raw),
		RawText:   title,
		Notes:     auditNotes(b) + "\nFormal Bid Opening: " + raw,
		CreatedBy: opts.CreatedBy,
		TZ:        opts.TZ,
	}, true
}

func agencyName(b model.BidRecord) string {
	if v := strings.TrimSpace(b.Agency); v != "" {
		return v
	}
	if v := strings.TrimSpace(b.EmailSubject); v != "" {
		return v
	}
	return "Unknown Agency"
}

func auditNotes(b model.BidRecord) string {
	lines := []string{
		"Agency: " + b.Agency,
		"Score: " + b.Score,
		"Relevance: " + b.Relevance,
		"Due Date: " + b.DueDate,
		"Bid System: " + b.BidSystem,
		"Country: " + b.Country,
		"URL: " + b.URL,
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max-3])) + "..."
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
