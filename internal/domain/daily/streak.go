package daily

import (
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// ComputeStreak returns the consecutive-day practice streak as of today.
//
// Today counts when practiced. When it is not, the walk starts at yesterday,
// so an unbroken streak survives until the day ends. When neither today nor
// yesterday was practiced the streak is 0. Dates after today are ignored.
func ComputeStreak(today timeutil.Date, practiced []timeutil.Date) int {
	if len(practiced) == 0 {
		return 0
	}

	days := make(map[timeutil.Date]struct{}, len(practiced))
	for _, d := range practiced {
		if d.After(today) {
			continue
		}
		days[d] = struct{}{}
	}

	cursor := today
	if _, ok := days[cursor]; !ok {
		cursor = today.AddDays(-1)
		if _, ok := days[cursor]; !ok {
			return 0
		}
	}

	streak := 0
	for {
		if _, ok := days[cursor]; !ok {
			return streak
		}
		streak++
		cursor = cursor.AddDays(-1)
	}
}

// StreakAt is a convenience for a status slice.
func StreakAt(today timeutil.Date, statuses []Status) int {
	dates := make([]timeutil.Date, 0, len(statuses))
	for _, s := range statuses {
		if s.HasPracticed {
			dates = append(dates, s.Date)
		}
	}
	return ComputeStreak(today, dates)
}
