// Package timeutil resolves instants into the platform's practice calendar.
// Every day and week boundary used for streaks, quotas and leaderboards is
// computed in PlatformTZ (Asia/Kuala_Lumpur, UTC+8), never in UTC or server time.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// PlatformTZName is the IANA name of the platform timezone.
const PlatformTZName = "Asia/Kuala_Lumpur"

// DateLayout is the canonical textual form of a Date.
const DateLayout = "2006-01-02"

// PlatformTZ is the platform timezone. Malaysia has no DST, so the fixed
// fallback is used only when tzdata is missing from the host.
var PlatformTZ = loadPlatformTZ()

func loadPlatformTZ() *time.Location {
	loc, err := time.LoadLocation(PlatformTZName)
	if err != nil {
		return time.FixedZone(PlatformTZName, 8*60*60)
	}
	return loc
}

// Now returns the current time in the platform timezone.
func Now() time.Time {
	return time.Now().In(PlatformTZ)
}

// ToLocal converts a time to the platform timezone.
func ToLocal(t time.Time) time.Time {
	return t.In(PlatformTZ)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return Now() }

// FixedClock is a settable clock for tests and backfills.
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// ══════════════════════════════════════════════════════════════════════════════
// CIVIL DATE
// ══════════════════════════════════════════════════════════════════════════════

// Date is a calendar date in the platform timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a normalized Date (e.g. Feb 30 becomes Mar 1 or 2).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 12, 0, 0, 0, PlatformTZ))
}

// DateOf returns the platform-local calendar date containing t.
func DateOf(t time.Time) Date {
	l := t.In(PlatformTZ)
	return Date{Year: l.Year(), Month: l.Month(), Day: l.Day()}
}

// Today returns the platform-local date of now.
func Today(c Clock) Date {
	return DateOf(c.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, PlatformTZ)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Start returns 00:00 of the date in the platform timezone.
func (d Date) Start() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, PlatformTZ)
}

// AddDays returns the date n days later (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, PlatformTZ))
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool {
	return o.Before(d)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return d.Start().Weekday()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b Date) int {
	ua := time.Date(a.Year, a.Month, a.Day, 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year, b.Month, b.Day, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// ══════════════════════════════════════════════════════════════════════════════
// DAY AND WEEK WINDOWS
// ══════════════════════════════════════════════════════════════════════════════

// StartOfDay returns 00:00 of the platform-local day containing t.
func StartOfDay(t time.Time) time.Time {
	return DateOf(t).Start()
}

// DayBounds returns the half-open window [00:00, next 00:00) of d.
func DayBounds(d Date) (time.Time, time.Time) {
	return d.Start(), d.AddDays(1).Start()
}

// StartOfWeek returns Monday 00:00 of the platform-local week containing t.
func StartOfWeek(t time.Time) time.Time {
	d := DateOf(t)
	weekday := int(d.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return d.AddDays(-(weekday - 1)).Start()
}

// WeekBounds returns the half-open window [Monday 00:00, next Monday 00:00)
// for the week starting on weekStart.
func WeekBounds(weekStart Date) (time.Time, time.Time) {
	return weekStart.Start(), weekStart.AddDays(7).Start()
}

// IsWeekStart reports whether d is a Monday.
func IsWeekStart(d Date) bool {
	return d.Weekday() == time.Monday
}

// CurrentWeekStart returns the Monday of the week containing now.
func CurrentWeekStart(now time.Time) Date {
	return DateOf(StartOfWeek(now))
}

// PreviousWeekStart returns the Monday of the week before the one containing now.
func PreviousWeekStart(now time.Time) Date {
	return CurrentWeekStart(now).AddDays(-7)
}

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText decodes YYYY-MM-DD; an empty value yields the zero Date.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
