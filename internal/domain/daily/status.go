// Package daily holds the Daily Status Ledger and the streak rules derived from it.
//
// A status row exists per (student, platform-local date). It is created lazily
// on the first relevant event of the day and never deleted. has_practiced only
// moves from false to true, and only when a session is completed that day.
package daily

import (
	"context"
	"strings"
	"time"

	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

// Mood is the optional self-reported mood of the day.
type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodExcited Mood = "excited"
	MoodOkay    Mood = "okay"
	MoodTired   Mood = "tired"
	MoodSad     Mood = "sad"
)

// ParseMood validates a mood name.
func ParseMood(s string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MoodHappy, MoodExcited, MoodOkay, MoodTired, MoodSad:
		return m, nil
	}
	return "", shared.ErrInvalidMood.WithDetails(map[string]any{"mood": s})
}

// Status is one student's record for one day.
type Status struct {
	StudentID    shared.StudentID
	Date         timeutil.Date
	HasPracticed bool
	Mood         *Mood
	HasSpun      bool
	SpinReward   *int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Empty returns the implicit status of a day with no row yet.
func Empty(studentID shared.StudentID, date timeutil.Date) *Status {
	return &Status{StudentID: studentID, Date: date}
}

// Repository persists daily statuses. All writes are get-or-create upserts
// keyed by (student, date); a uniqueness conflict is a normal code path.
type Repository interface {
	// Get returns shared.ErrDailyStatusMissing when no row exists.
	Get(ctx context.Context, studentID shared.StudentID, date timeutil.Date) (*Status, error)

	// MarkPracticed sets has_practiced = true.
	MarkPracticed(ctx context.Context, studentID shared.StudentID, date timeutil.Date) error

	// SetMood stores the day's mood.
	SetMood(ctx context.Context, studentID shared.StudentID, date timeutil.Date, mood Mood) error

	// ClaimSpin records the day's spin, returning shared.ErrSpinAlreadyUsed
	// when has_spun is already true.
	ClaimSpin(ctx context.Context, studentID shared.StudentID, date timeutil.Date, reward int) error

	// PracticedDates lists practiced dates on or before the given date, newest first.
	PracticedDates(ctx context.Context, studentID shared.StudentID, onOrBefore timeutil.Date) ([]timeutil.Date, error)

	// Range lists existing rows in [from, to], oldest first.
	Range(ctx context.Context, studentID shared.StudentID, from, to timeutil.Date) ([]Status, error)
}
