package resolver

import (
	"testing"
	"time"
)

// ref is a Thursday.
var ref = time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC)

func TestParseDateWeekday(t *testing.T) {
	got, err := ParseDate("monday", ref)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected next monday %s, got %s", want, got)
	}

	// Same weekday resolves a week out, never today.
	got, err = ParseDate("thursday", ref)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected thursday next week, got %s", got)
	}
}

func TestParseDateRelative(t *testing.T) {
	got, err := ParseDate("tomorrow", ref)
	if err != nil {
		t.Fatal(err)
	}
	if got.Day() != 4 {
		t.Errorf("expected the 4th, got %s", got)
	}

	got, err = ParseDate("today", ref)
	if err != nil {
		t.Fatal(err)
	}
	if got.Day() != 3 {
		t.Errorf("expected the 3rd, got %s", got)
	}
}

func TestParseDateExplicit(t *testing.T) {
	got, err := ParseDate("2026-10-01", ref)
	if err != nil {
		t.Fatal(err)
	}
	if got.Month() != time.October || got.Day() != 1 {
		t.Errorf("unexpected date %s", got)
	}

	// Month-day without a year rolls forward past the reference date.
	got, err = ParseDate("jan 5", ref)
	if err != nil {
		t.Fatal(err)
	}
	if got.Year() != 2027 {
		t.Errorf("expected jan 5 to land in 2027, got %s", got)
	}
}

func TestParseDateInvalid(t *testing.T) {
	if _, err := ParseDate("whenever", ref); err == nil {
		t.Error("expected error for unrecognized date")
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in     string
		h, m   int
		hasErr bool
	}{
		{"8 am", 8, 0, false},
		{"8 AM", 8, 0, false},
		{"8:30pm", 20, 30, false},
		{"12 am", 0, 0, false},
		{"12 pm", 12, 0, false},
		{"14:05", 14, 5, false},
		{"at 9:15 am", 9, 15, false},
		{"8", 0, 0, true},  // ambiguous without am/pm
		{"25:00", 0, 0, true},
		{"noonish", 0, 0, true},
	}
	for _, tc := range cases {
		h, m, err := ParseClock(tc.in)
		if tc.hasErr {
			if err == nil {
				t.Errorf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.in, err)
			continue
		}
		if h != tc.h || m != tc.m {
			t.Errorf("%q: expected %02d:%02d, got %02d:%02d", tc.in, tc.h, tc.m, h, m)
		}
	}
}

func TestParseSpan(t *testing.T) {
	cases := map[string]time.Duration{
		"1 hour":     time.Hour,
		"2 hours":    2 * time.Hour,
		"45 minutes": 45 * time.Minute,
		"90m":        90 * time.Minute,
		"for 1.5 hours": 90 * time.Minute,
	}
	for in, want := range cases {
		got, err := ParseSpan(in)
		if err != nil {
			t.Errorf("%q: unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("%q: expected %s, got %s", in, want, got)
		}
	}

	if _, err := ParseSpan("a while"); err == nil {
		t.Error("expected error for unrecognized duration")
	}
}

func TestParseWhen(t *testing.T) {
	got, err := ParseWhen("in 10 minutes", ref)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(ref.Add(10 * time.Minute)) {
		t.Errorf("expected ref+10m, got %s", got)
	}

	// A clock time earlier than now rolls to tomorrow.
	got, err = ParseWhen("9:00 am", ref)
	if err != nil {
		t.Fatal(err)
	}
	if got.Day() != 4 || got.Hour() != 9 {
		t.Errorf("expected tomorrow 09:00, got %s", got)
	}

	got, err = ParseWhen("2026-09-03T15:00:00Z", ref)
	if err != nil {
		t.Fatal(err)
	}
	if got.Hour() != 15 {
		t.Errorf("expected 15:00, got %s", got)
	}
}

func TestNormalizeEventComposesStart(t *testing.T) {
	collected := map[string]string{"summary": "test", "date": "monday", "time": "8 am"}
	if err := normalizeEvent(collected, ref, true); err != nil {
		t.Fatal(err)
	}

	start, err := time.Parse(time.RFC3339, collected["start"])
	if err != nil {
		t.Fatalf("expected composed start, got %q", collected["start"])
	}
	if start.Weekday() != time.Monday || start.Hour() != 8 {
		t.Errorf("expected next monday 08:00, got %s", start)
	}

	end, err := time.Parse(time.RFC3339, collected["end"])
	if err != nil {
		t.Fatalf("expected derived end, got %q", collected["end"])
	}
	if end.Sub(start) != defaultEventDuration {
		t.Errorf("expected default duration end, got %s", end.Sub(start))
	}
}

func TestNormalizeEventDuration(t *testing.T) {
	collected := map[string]string{"date": "tomorrow", "time": "10:00 am", "duration": "45 minutes"}
	if err := normalizeEvent(collected, ref, true); err != nil {
		t.Fatal(err)
	}
	start, _ := time.Parse(time.RFC3339, collected["start"])
	end, _ := time.Parse(time.RFC3339, collected["end"])
	if end.Sub(start) != 45*time.Minute {
		t.Errorf("expected 45m event, got %s", end.Sub(start))
	}
}

func TestNormalizeEventDropsInvalid(t *testing.T) {
	collected := map[string]string{"date": "someday"}
	err := normalizeEvent(collected, ref, true)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, ok := collected["date"]; ok {
		t.Error("invalid date should be dropped so it is asked for again")
	}
}

func TestNormalizeEventNoEndDerivationForUpdates(t *testing.T) {
	collected := map[string]string{"date": "tomorrow", "time": "10:00 am"}
	if err := normalizeEvent(collected, ref, false); err != nil {
		t.Fatal(err)
	}
	if collected["end"] != "" {
		t.Errorf("updates must not invent an end time, got %q", collected["end"])
	}
}

func TestNormalizeReminder(t *testing.T) {
	collected := map[string]string{"minutes_from_now": "10"}
	if err := normalizeReminder(collected, ref); err != nil {
		t.Fatal(err)
	}
	at, err := time.Parse(time.RFC3339, collected["remind_at"])
	if err != nil {
		t.Fatal(err)
	}
	if !at.Equal(ref.Add(10 * time.Minute)) {
		t.Errorf("expected ref+10m, got %s", at)
	}

	bad := map[string]string{"minutes_from_now": "-3"}
	if err := normalizeReminder(bad, ref); err == nil {
		t.Error("expected validation error for negative minutes")
	}
}
