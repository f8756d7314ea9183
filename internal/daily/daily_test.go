package daily

import (
	"strings"
	"testing"
	"time"
)

func at(hour int) time.Time {
	return time.Date(2026, 3, 2, hour, 0, 0, 0, time.UTC)
}

func TestPeriodAt(t *testing.T) {
	cases := []struct {
		hour int
		want TimePeriod
	}{
		{0, LateNight},
		{4, LateNight},
		{5, EarlyMorning},
		{7, EarlyMorning},
		{8, Morning},
		{11, Morning},
		{12, Afternoon},
		{17, Afternoon},
		{18, Evening},
		{21, Evening},
		{22, Night},
		{23, Night},
	}
	for _, tc := range cases {
		if got := PeriodAt(at(tc.hour)); got != tc.want {
			t.Errorf("PeriodAt(hour=%d) = %q, want %q", tc.hour, got, tc.want)
		}
	}
}

func TestSeasonAt(t *testing.T) {
	cases := []struct {
		month time.Month
		want  Season
	}{
		{time.January, Winter},
		{time.February, Winter},
		{time.March, Spring},
		{time.May, Spring},
		{time.June, Summer},
		{time.August, Summer},
		{time.September, Autumn},
		{time.November, Autumn},
		{time.December, Winter},
	}
	for _, tc := range cases {
		ts := time.Date(2026, tc.month, 15, 12, 0, 0, 0, time.UTC)
		if got := SeasonAt(ts); got != tc.want {
			t.Errorf("SeasonAt(%s) = %q, want %q", tc.month, got, tc.want)
		}
	}
}

func TestGreetingDeterministicWithinDay(t *testing.T) {
	morning := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := Greeting(morning)
	b := Greeting(morning.Add(2 * time.Hour))
	if a != b {
		t.Errorf("greeting changed within the same day: %q vs %q", a, b)
	}
	if a == "" {
		t.Error("empty greeting")
	}
}

func TestSpecialDateComment(t *testing.T) {
	xmas := time.Date(2026, 12, 25, 10, 0, 0, 0, time.UTC)
	if got := SpecialDateComment(xmas); !strings.Contains(got, "Christmas") {
		t.Errorf("SpecialDateComment(dec 25) = %q", got)
	}
	plain := time.Date(2026, 7, 3, 10, 0, 0, 0, time.UTC)
	if got := SpecialDateComment(plain); got != "" {
		t.Errorf("expected no special comment, got %q", got)
	}
}

func TestFullContextFirstConversation(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ctx := FullContext(now, "Yuki", nil)

	for _, want := range []string{
		"[Current time context]",
		"Time of day: morning",
		"Season: spring",
		"first conversation",
		"Yuki",
		"morning; bring upbeat",
	} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q:\n%s", want, ctx)
		}
	}
}

func TestFullContextGapBuckets(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	cases := []struct {
		gap  time.Duration
		want string
	}{
		{30 * time.Minute, "just a moment ago"},
		{3 * time.Hour, "3 hours ago"},
		{10 * time.Hour, "earlier today"},
		{2 * 24 * time.Hour, "been 2 days"},
		{9 * 24 * time.Hour, "really missed"},
	}
	for _, tc := range cases {
		last := now.Add(-tc.gap)
		ctx := FullContext(now, "Yuki", &last)
		if !strings.Contains(ctx, tc.want) {
			t.Errorf("gap %v: context missing %q:\n%s", tc.gap, tc.want, ctx)
		}
	}
}

func TestFullContextLateNightGuidance(t *testing.T) {
	now := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	ctx := FullContext(now, "Yuki", nil)
	if !strings.Contains(ctx, "quiet and intimate") {
		t.Errorf("late-night guidance missing:\n%s", ctx)
	}
}
