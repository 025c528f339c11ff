package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/user/secretary/internal/types"
)

// defaultEventDuration is used when the user supplies neither an end time
// nor a duration.
const defaultEventDuration = time.Hour

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"Jan 2 2006",
	"January 2 2006",
	"Jan 2",
	"January 2",
}

var (
	clockRe    = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	durationRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?|m)$`)
	inRe       = regexp.MustCompile(`^in\s+(\d+)\s*(hours?|hrs?|h|minutes?|mins?|m)$`)
)

// ParseDate resolves a natural date phrase ("monday", "tomorrow",
// "2026-09-07", "Sep 7") to a calendar day relative to ref. Weekday names
// resolve to the next occurrence, never today.
func ParseDate(s string, ref time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "on ")
	s = strings.TrimPrefix(s, "next ")
	s = strings.TrimPrefix(s, "this ")

	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, ref.Location())
	}

	switch s {
	case "today":
		return day(ref), nil
	case "tomorrow":
		return day(ref.AddDate(0, 0, 1)), nil
	}

	if wd, ok := weekdays[s]; ok {
		ahead := (int(wd) - int(ref.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return day(ref.AddDate(0, 0, ahead)), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, titleCase(s), ref.Location()); err == nil {
			if t.Year() == 0 {
				t = t.AddDate(ref.Year(), 0, 0)
				if t.Before(day(ref)) {
					t = t.AddDate(1, 0, 0)
				}
			}
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseClock parses a time-of-day phrase ("8 am", "8:30pm", "14:00").
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "at ")

	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("unrecognized time %q", s)
	}

	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	default:
		// No meridiem and no colon is too ambiguous to accept ("at 8").
		if m[2] == "" {
			return 0, 0, fmt.Errorf("ambiguous time %q, specify am/pm or minutes", s)
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("out-of-range time %q", s)
	}
	return hour, minute, nil
}

// ParseSpan parses a duration phrase ("1 hour", "45 minutes", "90m").
func ParseSpan(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "for ")

	if m := durationRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		if strings.HasPrefix(m[2], "h") {
			return time.Duration(n * float64(time.Hour)), nil
		}
		return time.Duration(n * float64(time.Minute)), nil
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, nil
	}
	return 0, fmt.Errorf("unrecognized duration %q", s)
}

// ParseWhen resolves an absolute reminder moment: "in 10 minutes",
// RFC 3339, or a bare clock time (today, rolling to tomorrow if past).
func ParseWhen(s string, ref time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if m := inRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(m[2], "h") {
			return ref.Add(time.Duration(n) * time.Hour), nil
		}
		return ref.Add(time.Duration(n) * time.Minute), nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	if hour, minute, err := ParseClock(s); err == nil {
		t := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
		if !t.After(ref) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized reminder time %q", s)
}

// normalizeEvent derives the start/end timestamps on an event action from
// its date, time, duration and end fields. Invalid supplied values are
// dropped from the collected map (so they are asked for again) and
// reported as a *types.ValidationError. deriveEnd fills in a missing end
// from the duration or the default; updates leave end alone so a
// reschedule does not silently change an event's length.
func normalizeEvent(collected map[string]string, ref time.Time, deriveEnd bool) error {
	if v, ok := collected["start"]; ok {
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			// The extractor may pass a natural phrase straight through.
			if when, werr := ParseWhen(v, ref); werr == nil {
				collected["start"] = when.Format(time.RFC3339)
			} else {
				delete(collected, "start")
				return &types.ValidationError{Field: "start", Reason: "unparseable start time"}
			}
		}
	}

	var date time.Time
	if v := collected["date"]; v != "" {
		parsed, err := ParseDate(v, ref)
		if err != nil {
			delete(collected, "date")
			return &types.ValidationError{Field: "date", Reason: err.Error()}
		}
		date = parsed
	}

	if v := collected["time"]; v != "" {
		hour, minute, err := ParseClock(v)
		if err != nil {
			delete(collected, "time")
			return &types.ValidationError{Field: "time", Reason: err.Error()}
		}
		if !date.IsZero() && collected["start"] == "" {
			start := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, ref.Location())
			collected["start"] = start.Format(time.RFC3339)
		}
	}

	if v := collected["duration"]; v != "" {
		if _, err := ParseSpan(v); err != nil {
			delete(collected, "duration")
			return &types.ValidationError{Field: "duration", Reason: err.Error()}
		}
	}

	if v := collected["end"]; v != "" {
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			delete(collected, "end")
			return &types.ValidationError{Field: "end", Reason: "unparseable end time"}
		}
	}

	// Derive end once start is known.
	if s := collected["start"]; deriveEnd && s != "" && collected["end"] == "" {
		start, _ := time.Parse(time.RFC3339, s)
		span := defaultEventDuration
		if v := collected["duration"]; v != "" {
			span, _ = ParseSpan(v)
		}
		collected["end"] = start.Add(span).Format(time.RFC3339)
	}

	return nil
}

// normalizeReminder derives remind_at from minutes_from_now or a natural
// time phrase.
func normalizeReminder(collected map[string]string, ref time.Time) error {
	if v := collected["minutes_from_now"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			delete(collected, "minutes_from_now")
			return &types.ValidationError{Field: "minutes_from_now", Reason: "must be a positive integer"}
		}
		collected["remind_at"] = ref.Add(time.Duration(n) * time.Minute).Format(time.RFC3339)
		return nil
	}

	if v := collected["remind_at"]; v != "" {
		when, err := ParseWhen(v, ref)
		if err != nil {
			delete(collected, "remind_at")
			return &types.ValidationError{Field: "remind_at", Reason: err.Error()}
		}
		collected["remind_at"] = when.Format(time.RFC3339)
	}
	return nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
