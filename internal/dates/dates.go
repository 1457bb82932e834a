// Package dates normalizes the loosely formatted date strings found in bid,
// event and content rows. Nothing in this package returns an error for bad
// input: unparseable values degrade to false, "" or Unknown so a single
// malformed row cannot abort a batch.
package dates

import (
	"math"
	"regexp"
	"strings"
	"time"

	jnow "github.com/jinzhu/now"
)

// Unknown is returned by DaysUntil and DaysSince for unparseable input.
// Comparisons such as "< 10", "< 0" and "<= 30" are all false for it.
const Unknown = math.MaxInt

// ISOLayout matches the millisecond UTC timestamps written to the ledger.
const ISOLayout = "2006-01-02T15:04:05.000Z"

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 3:04 PM",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"1-2-2006",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
}

var fallback = &jnow.Config{
	WeekStartDay: time.Monday,
	TimeLocation: time.UTC,
}

var (
	reClockTime = regexp.MustCompile(`[T ]\d{1,2}:\d{2}`)
	reZoneToken = regexp.MustCompile(`(?i)(\d\s*(am|pm)\b|\b(am|pm|utc|gmt)\b)`)
	reDateOnly  = []*regexp.Regexp{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`),
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		regexp.MustCompile(`^[A-Za-z]+\.? \d{1,2}, \d{4}$`),
	}
)

// ParseDate accepts strings, time.Time and *time.Time. Strings without a zone
// are read as UTC; numeric dates are month-first.
func ParseDate(value any) (time.Time, bool) {
	return ParseDateIn(value, time.UTC)
}

// ParseDateIn is ParseDate with strings that carry no zone read in loc.
func ParseDateIn(value any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case string:
		return parseString(v, loc)
	default:
		return time.Time{}, false
	}
}

func parseString(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	cfg := fallback
	if loc != time.UTC {
		cfg = &jnow.Config{WeekStartDay: fallback.WeekStartDay, TimeLocation: loc}
	}
	t, err := cfg.Parse(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// LooksDateOnly reports whether raw carries no time of day. Formats it does
// not recognise are treated as date-only; this is a conservative default, not
// a verified rule.
func LooksDateOnly(raw string) bool {
	s := strings.TrimSpace(raw)
	if reClockTime.MatchString(s) {
		return false
	}
	if reZoneToken.MatchString(s) {
		return false
	}
	for _, re := range reDateOnly {
		if re.MatchString(s) {
			return true
		}
	}
	return true
}

// EndOfDayUTC returns 23:59:00 UTC on the calendar date of raw, or "".
func EndOfDayUTC(raw any) string {
	t, ok := ParseDate(raw)
	if !ok {
		return ""
	}
	return FormatISO(StartOfDayUTC(t).Add(23*time.Hour + 59*time.Minute))
}

// DueAt is the deadline written on tasks: end of day for date-only strings,
// the parsed instant otherwise.
func DueAt(raw string) string {
	t, ok := ParseDate(raw)
	if !ok {
		return ""
	}
	if LooksDateOnly(raw) {
		return EndOfDayUTC(t)
	}
	return FormatISO(t)
}

// FormatISO renders t in UTC with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// StartOfDayUTC truncates t to midnight of its UTC calendar date.
func StartOfDayUTC(t time.Time) time.Time {
	return fallback.With(t.UTC()).BeginningOfDay()
}

// StartOfWeek returns Monday 00:00 of the ISO week containing t in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return fallback.With(t.In(loc)).BeginningOfWeek()
}

// DaysUntil counts whole days from today (UTC) to raw's date.
func DaysUntil(raw any, now time.Time) int {
	t, ok := ParseDate(raw)
	if !ok {
		return Unknown
	}
	return dayDiff(StartOfDayUTC(now), StartOfDayUTC(t))
}

// DaysSince counts whole days from raw's date to today (UTC).
func DaysSince(raw any, now time.Time) int {
	t, ok := ParseDate(raw)
	if !ok {
		return Unknown
	}
	return dayDiff(StartOfDayUTC(t), StartOfDayUTC(now))
}

func dayDiff(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// IsDue is the shared "due now" predicate: at is not after now.
func IsDue(at, now time.Time) bool {
	return !at.After(now)
}

// SameISOWeek reports whether a and b fall in the same ISO week and year.
func SameISOWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}
