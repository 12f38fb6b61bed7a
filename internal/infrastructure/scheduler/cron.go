package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
// Examples:
//   - "*/5 * * * *"  every 5 minutes
//   - "0 21 * * *"   every day at 21:00
//   - "5 0 * * 1"    every Monday at 00:05
//
// When both day fields are restricted a time matches if either matches,
// as in Vixie cron.
type CronExpression struct {
	raw      string
	minutes  fieldSet // 0-59
	hours    fieldSet // 0-23
	days     fieldSet // 1-31
	months   fieldSet // 1-12
	weekdays fieldSet // 0-6 (0 = Sunday)

	dayRestricted     bool
	weekdayRestricted bool
}

// fieldSet is a bitmask of allowed values; every cron range fits in 64 bits.
type fieldSet uint64

func (f fieldSet) has(v int) bool { return f&(1<<uint(v)) != 0 }

// Common cron expression presets.
const (
	EveryMinute      = "* * * * *"
	EveryHour        = "0 * * * *"
	EveryDayMidnight = "0 0 * * *"
	WeeklyRewards    = "5 0 * * 1"
)

// ParseCronExpression parses a cron expression string.
// Supports: *, */n, n, n-m, n-m/s, and comma lists of those.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}

	ce := &CronExpression{
		raw:               expr,
		dayRestricted:     fields[2] != "*",
		weekdayRestricted: fields[4] != "*",
	}

	specs := []struct {
		name     string
		dst      *fieldSet
		min, max int
	}{
		{"minute", &ce.minutes, 0, 59},
		{"hour", &ce.hours, 0, 23},
		{"day", &ce.days, 1, 31},
		{"month", &ce.months, 1, 12},
		{"weekday", &ce.weekdays, 0, 7},
	}
	for i, spec := range specs {
		set, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dst = set
	}

	// 7 is an alias for Sunday.
	if ce.weekdays.has(7) {
		ce.weekdays |= 1
		ce.weekdays &^= 1 << 7
	}
	return ce, nil
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return ce
}

func parseField(field string, min, max int) (fieldSet, error) {
	var set fieldSet
	for _, part := range strings.Split(field, ",") {
		lo, hi, step, err := parseRange(part, min, max)
		if err != nil {
			return 0, err
		}
		for v := lo; v <= hi; v += step {
			set |= 1 << uint(v)
		}
	}
	return set, nil
}

// parseRange parses one list element into an inclusive range and a step.
func parseRange(part string, min, max int) (lo, hi, step int, err error) {
	if part == "" {
		return 0, 0, 0, fmt.Errorf("empty element")
	}

	step = 1
	rangePart := part
	if i := strings.IndexByte(part, '/'); i >= 0 {
		rangePart = part[:i]
		step, err = strconv.Atoi(part[i+1:])
		if err != nil || step <= 0 {
			return 0, 0, 0, fmt.Errorf("invalid step value: %s", part[i+1:])
		}
	}

	switch {
	case rangePart == "*":
		lo, hi = min, max
	case strings.Contains(rangePart, "-"):
		bounds := strings.SplitN(rangePart, "-", 2)
		if lo, err = strconv.Atoi(bounds[0]); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid range start: %s", bounds[0])
		}
		if hi, err = strconv.Atoi(bounds[1]); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid range end: %s", bounds[1])
		}
	default:
		if lo, err = strconv.Atoi(rangePart); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid value: %s", rangePart)
		}
		hi = lo
		if step > 1 {
			hi = max
		}
	}

	if lo < min || hi > max || lo > hi {
		return 0, 0, 0, fmt.Errorf("value out of range [%d-%d]: %s", min, max, part)
	}
	return lo, hi, step, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after the given time, in
// the time's location. It returns the zero time if nothing matches within
// five years (e.g. "0 0 30 2 *").
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(5, 0, 0)

	for t.Before(limit) {
		if !ce.months.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !ce.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !ce.hours.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
			continue
		}
		if !ce.minutes.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

func (ce *CronExpression) dayMatches(t time.Time) bool {
	dom := ce.days.has(t.Day())
	dow := ce.weekdays.has(int(t.Weekday()))
	if ce.dayRestricted && ce.weekdayRestricted {
		return dom || dow
	}
	return dom && dow
}
