package nlu

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	relativeOffset = regexp.MustCompile(`(?i)\b(?:in|dalam)\s*(\d+)\s*(days?|hari|hours?|hrs?|jam|minutes?|mins?|menit)\b`)

	// clockTime needs a lead-in, minutes, or a meridiem before it counts, so
	// bare numbers such as "Q4" or "3 tasks" are not read as times.
	clockTime = regexp.MustCompile(`(?i)(?:\b(at|jam|pukul)\s*|\b)(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm|pagi|siang|sore|malam)?\b`)

	keywordToday    = regexp.MustCompile(`(?i)\b(?:today|hari\s+ini)\b`)
	keywordTomorrow = regexp.MustCompile(`(?i)\b(?:tomorrow|besok)\b`)

	dateMention = regexp.MustCompile(`(?i)\b(?:` +
		`today|tomorrow|besok|` +
		`monday|tuesday|wednesday|thursday|friday|saturday|sunday|` +
		`senin|selasa|rabu|kamis|jumat|sabtu|minggu|` +
		`january|february|march|april|may|june|july|august|september|october|november|december|` +
		`januari|februari|maret|mei|juni|juli|agustus|oktober|desember` +
		`)\b|\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?\b`)
)

// ParseRelativeOffset reads "in 3 days", "dalam 2 jam" and similar, and
// returns now shifted by that amount.
func ParseRelativeOffset(text string, now time.Time) (time.Time, bool) {
	m := relativeOffset.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	now = now.UTC()
	unit := strings.ToLower(m[2])
	switch {
	case strings.HasPrefix(unit, "day"), unit == "hari":
		return now.AddDate(0, 0, n), true
	case strings.HasPrefix(unit, "h"), unit == "jam":
		return now.Add(time.Duration(n) * time.Hour), true
	default:
		return now.Add(time.Duration(n) * time.Minute), true
	}
}

// ParseClockTime reads a clock time ("at 2pm", "14:30", "jam 5 sore") and
// returns its next occurrence: today if still ahead of now, else tomorrow.
func ParseClockTime(text string, now time.Time) (time.Time, bool) {
	t, ok := ParseClockTimeSameDay(text, now)
	if !ok {
		return time.Time{}, false
	}
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t, true
}

// ParseClockTimeSameDay is ParseClockTime without rolling past times over
// to the next day.
func ParseClockTimeSameDay(text string, now time.Time) (time.Time, bool) {
	hour, minute, ok := parseClock(text)
	if !ok {
		return time.Time{}, false
	}
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC), true
}

// parseClock returns the first plausible clock time in text.
func parseClock(text string) (hour, minute int, ok bool) {
	for _, m := range clockTime.FindAllStringSubmatch(text, -1) {
		lead, hh, mm, mer := strings.ToLower(m[1]), m[2], m[3], strings.ToLower(m[4])
		if lead == "" && mm == "" && mer == "" {
			continue
		}
		h, _ := strconv.Atoi(hh)
		min := 0
		if mm != "" {
			min, _ = strconv.Atoi(mm)
		}
		h = applyMeridiem(h, mer)
		if h < 0 || h > 23 || min < 0 || min > 59 {
			continue
		}
		return h, min, true
	}
	return 0, 0, false
}

// applyMeridiem shifts hour by an English or Indonesian day-part marker.
// "12 pagi" reads as 08:00, a deliberate guess at what people mean by it;
// "12 malam" is midnight.
func applyMeridiem(hour int, mer string) int {
	switch mer {
	case "am":
		if hour == 12 {
			return 0
		}
	case "pm":
		if hour < 12 {
			return hour + 12
		}
	case "pagi":
		switch hour {
		case 12:
			return 8
		case 24:
			return 0
		}
	case "siang", "sore", "malam":
		if hour < 12 {
			hour += 12
		}
		if mer == "malam" && (hour == 24 || hour == 12) {
			return 0
		}
	}
	return hour
}

// ParseKeywordDate maps "today/hari ini" and "tomorrow/besok" onto a day.
// The returned instant keeps now's clock; callers set the time separately.
func ParseKeywordDate(text string, now time.Time) (time.Time, bool) {
	now = now.UTC().Truncate(time.Minute)
	switch {
	case keywordToday.MatchString(text):
		return now, true
	case keywordTomorrow.MatchString(text):
		return now.AddDate(0, 0, 1), true
	}
	return time.Time{}, false
}

// SetTimeOnDate combines the calendar day of date with the clock of clock,
// in UTC.
func SetTimeOnDate(date, clock time.Time) time.Time {
	date, clock = date.UTC(), clock.UTC()
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
}

// MentionsDate reports whether text names a day, month, or numeric date.
func MentionsDate(text string) bool {
	return dateMention.MatchString(text)
}

// ExtractDue combines keyword dates, relative offsets and clock times into
// a single due instant, as in "besok jam 9" or "tomorrow at 3pm".
func ExtractDue(text string, now time.Time) (time.Time, bool) {
	clock, hasClock := ParseClockTime(text, now)
	base, hasBase := ParseKeywordDate(text, now)
	if !hasBase {
		base, hasBase = ParseRelativeOffset(text, now)
	}
	switch {
	case hasBase && hasClock:
		return SetTimeOnDate(base, clock), true
	case hasClock:
		return clock, true
	case hasBase:
		return base, true
	}
	return time.Time{}, false
}
