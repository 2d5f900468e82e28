// Package calendar resolves "now", civil dates and trading sessions in one
// fixed timezone, independent of the host clock. Every date computation in the
// engine goes through this package.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/pacer/internal/common"
)

// DateFormat is the canonical key format for civil dates.
const DateFormat = "2006-01-02"

// Clock supplies the current instant. Production uses SystemClock; tests
// substitute a FixedClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock. Calendar converts the instant into the
// fixed civil timezone before any date math.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time { return c.Instant }

// NewFixedClock returns a clock pinned to the given instant.
func NewFixedClock(t time.Time) FixedClock { return FixedClock{Instant: t} }

// Calendar answers civil-date and trading-session questions in one fixed zone.
type Calendar struct {
	loc      *time.Location
	openMin  int // minutes after midnight, civil time
	closeMin int
	holidays map[string]bool // DateFormat keys
}

// New builds a Calendar from the engine configuration.
func New(cfg common.EngineConfig) (*Calendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}

	openMin, err := parseClockMinutes(cfg.MarketOpen)
	if err != nil {
		return nil, fmt.Errorf("invalid market_open: %w", err)
	}
	closeMin, err := parseClockMinutes(cfg.MarketClose)
	if err != nil {
		return nil, fmt.Errorf("invalid market_close: %w", err)
	}
	if closeMin <= openMin {
		return nil, fmt.Errorf("market_close %q must be after market_open %q", cfg.MarketClose, cfg.MarketOpen)
	}

	holidays := make(map[string]bool, len(cfg.Holidays))
	for _, h := range cfg.Holidays {
		d, err := time.ParseInLocation(DateFormat, h, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		holidays[d.Format(DateFormat)] = true
	}

	return &Calendar{
		loc:      loc,
		openMin:  openMin,
		closeMin: closeMin,
		holidays: holidays,
	}, nil
}

func parseClockMinutes(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, nil
}

// Location returns the fixed civil timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

// CivilDate returns the calendar date of t as observed in the fixed timezone,
// normalized to midnight in that timezone.
func (c *Calendar) CivilDate(t time.Time) time.Time {
	local := t.In(c.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// DateKey returns the storage key for the civil date of t.
func (c *Calendar) DateKey(t time.Time) string {
	return c.CivilDate(t).Format(DateFormat)
}

// ParseDate parses a DateFormat string as a midnight instant in the fixed zone.
func (c *Calendar) ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateFormat, s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q want %q: %w", s, DateFormat, err)
	}
	return d, nil
}

// IsTradingDay reports whether the civil date of t is a weekday outside the
// holiday set.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	d := c.CivilDate(t)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays[d.Format(DateFormat)]
}

// MarketOpenOn returns the market open instant on the civil date of t.
func (c *Calendar) MarketOpenOn(t time.Time) time.Time {
	return c.CivilDate(t).Add(time.Duration(c.openMin) * time.Minute)
}

// MarketCloseOn returns the market close instant on the civil date of t.
func (c *Calendar) MarketCloseOn(t time.Time) time.Time {
	return c.CivilDate(t).Add(time.Duration(c.closeMin) * time.Minute)
}

// WithinTradingHours reports whether t falls inside the trading session of a
// trading day (open inclusive, close exclusive).
func (c *Calendar) WithinTradingHours(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	local := t.In(c.loc)
	return !local.Before(c.MarketOpenOn(t)) && local.Before(c.MarketCloseOn(t))
}

// NextCloseAfter returns the next trading-day market close strictly after t,
// rolling past weekends and holidays.
func (c *Calendar) NextCloseAfter(t time.Time) time.Time {
	d := c.CivilDate(t)
	for {
		if c.IsTradingDay(d) {
			closeAt := c.MarketCloseOn(d)
			if closeAt.After(t) {
				return closeAt
			}
		}
		d = d.AddDate(0, 0, 1)
	}
}

// PrevTradingDay returns the most recent trading day strictly before the civil
// date of t.
func (c *Calendar) PrevTradingDay(t time.Time) time.Time {
	d := c.CivilDate(t).AddDate(0, 0, -1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
