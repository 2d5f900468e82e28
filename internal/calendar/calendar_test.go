package calendar

import (
	"testing"
	"time"

	"github.com/bobmcallan/pacer/internal/common"
)

func testConfig() common.EngineConfig {
	return common.EngineConfig{
		Timezone:    "Asia/Kolkata",
		MarketOpen:  "09:15",
		MarketClose: "15:30",
		Holidays:    []string{"2026-01-26"}, // Republic Day, a Monday
	}
}

func mustCalendar(t *testing.T, cfg common.EngineConfig) *Calendar {
	t.Helper()
	cal, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return cal
}

// at builds an instant in the calendar's zone.
func at(t *testing.T, cal *Calendar, date string, hour, min int) time.Time {
	t.Helper()
	d, err := cal.ParseDate(date)
	if err != nil {
		t.Fatalf("ParseDate(%s) error = %v", date, err)
	}
	return d.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*common.EngineConfig)
	}{
		{"bad timezone", func(c *common.EngineConfig) { c.Timezone = "Nowhere/Nothing" }},
		{"bad open", func(c *common.EngineConfig) { c.MarketOpen = "9am" }},
		{"close before open", func(c *common.EngineConfig) { c.MarketClose = "08:00" }},
		{"bad holiday", func(c *common.EngineConfig) { c.Holidays = []string{"26-01-2026"} }},
	}
	for _, tc := range cases {
		cfg := testConfig()
		tc.mutate(&cfg)
		if _, err := New(cfg); err == nil {
			t.Errorf("%s: New() accepted invalid config", tc.name)
		}
	}
}

func TestNextCloseAfter_MidSessionExpiresSameDay(t *testing.T) {
	cal := mustCalendar(t, testConfig())

	// Wednesday 14:00, market still open
	now := at(t, cal, "2026-01-14", 14, 0)
	got := cal.NextCloseAfter(now)
	want := at(t, cal, "2026-01-14", 15, 30)
	if !got.Equal(want) {
		t.Errorf("NextCloseAfter(14:00) = %v, want %v", got, want)
	}
}

func TestNextCloseAfter_AfterCloseRollsToNextDay(t *testing.T) {
	cal := mustCalendar(t, testConfig())

	// Wednesday 16:00, after close
	now := at(t, cal, "2026-01-14", 16, 0)
	got := cal.NextCloseAfter(now)
	want := at(t, cal, "2026-01-15", 15, 30)
	if !got.Equal(want) {
		t.Errorf("NextCloseAfter(16:00) = %v, want %v", got, want)
	}
}

func TestNextCloseAfter_ExactlyAtCloseRolls(t *testing.T) {
	cal := mustCalendar(t, testConfig())

	now := at(t, cal, "2026-01-14", 15, 30)
	got := cal.NextCloseAfter(now)
	want := at(t, cal, "2026-01-15", 15, 30)
	if !got.Equal(want) {
		t.Errorf("NextCloseAfter(close) = %v, want next day close %v", got, want)
	}
}

func TestNextCloseAfter_SkipsWeekendAndHoliday(t *testing.T) {
	cal := mustCalendar(t, testConfig())

	// Friday 2026-01-23 after close. Saturday, Sunday and the Monday holiday
	// all roll to Tuesday.
	now := at(t, cal, "2026-01-23", 16, 0)
	got := cal.NextCloseAfter(now)
	want := at(t, cal, "2026-01-27", 15, 30)
	if !got.Equal(want) {
		t.Errorf("NextCloseAfter(Friday evening) = %v, want %v", got, want)
	}
}

func TestPrevTradingDay_SkipsWeekendAndHoliday(t *testing.T) {
	cal := mustCalendar(t, testConfig())

	// Tuesday 2026-01-27: Monday is a holiday, so previous trading day is
	// Friday 2026-01-23.
	now := at(t, cal, "2026-01-27", 10, 0)
	got := cal.PrevTradingDay(now)
	want, _ := cal.ParseDate("2026-01-23")
	if !got.Equal(want) {
		t.Errorf("PrevTradingDay(Tuesday) = %v, want %v", got, want)
	}
}

func TestWithinTradingHours(t *testing.T) {
	cal := mustCalendar(t, testConfig())

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", at(t, cal, "2026-01-14", 9, 0), false},
		{"at open", at(t, cal, "2026-01-14", 9, 15), true},
		{"mid session", at(t, cal, "2026-01-14", 12, 0), true},
		{"at close", at(t, cal, "2026-01-14", 15, 30), false},
		{"saturday", at(t, cal, "2026-01-17", 12, 0), false},
		{"holiday", at(t, cal, "2026-01-26", 12, 0), false},
	}
	for _, tc := range cases {
		if got := cal.WithinTradingHours(tc.at); got != tc.want {
			t.Errorf("%s: WithinTradingHours = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDateKey_UsesCivilZoneNotHostZone(t *testing.T) {
	cal := mustCalendar(t, testConfig())

	// 2026-01-14 22:00 UTC is already 2026-01-15 03:30 in Kolkata.
	utc := time.Date(2026, 1, 14, 22, 0, 0, 0, time.UTC)
	if got := cal.DateKey(utc); got != "2026-01-15" {
		t.Errorf("DateKey(22:00 UTC) = %s, want 2026-01-15", got)
	}
}

func TestFixedClock(t *testing.T) {
	instant := time.Date(2026, 1, 14, 14, 0, 0, 0, time.UTC)
	clock := NewFixedClock(instant)
	if !clock.Now().Equal(instant) {
		t.Errorf("FixedClock.Now() = %v, want %v", clock.Now(), instant)
	}
}
