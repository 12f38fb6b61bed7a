package daily

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/timeutil"
)

var today = timeutil.NewDate(2024, 6, 12)

func days(offsets ...int) []timeutil.Date {
	out := make([]timeutil.Date, 0, len(offsets))
	for _, o := range offsets {
		out = append(out, today.AddDays(o))
	}
	return out
}

func TestComputeStreak(t *testing.T) {
	tests := []struct {
		name      string
		practiced []timeutil.Date
		want      int
	}{
		{"no history", nil, 0},
		{"only today", days(0), 1},
		{"today and three before", days(0, -1, -2, -3), 4},
		{"grace period keeps yesterday's streak", days(-1, -2, -3), 3},
		{"missed today and yesterday", days(-2, -3, -4), 0},
		{"gap stops the walk", days(0, -1, -3, -4), 2},
		{"unordered input", days(-2, 0, -1), 3},
		{"future dates ignored", days(1, 0), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStreak(today, tt.practiced))
		})
	}
}

func TestComputeStreak_GracePeriodProperty(t *testing.T) {
	history := days(-1, -2, -3, -5)
	yesterday := today.AddDays(-1)
	asOfYesterday := ComputeStreak(yesterday, history)
	require.Equal(t, 3, asOfYesterday)

	// practiced today: yesterday's streak + 1
	assert.Equal(t, asOfYesterday+1, ComputeStreak(today, append(history, today)))

	// not yet practiced today: unchanged
	assert.Equal(t, asOfYesterday, ComputeStreak(today, history))

	// neither today nor yesterday: broken
	assert.Equal(t, 0, ComputeStreak(today.AddDays(1), history))
}

func TestComputeStreak_AcrossMonthBoundary(t *testing.T) {
	d := timeutil.NewDate(2024, 3, 1)
	practiced := []timeutil.Date{d, d.AddDays(-1), d.AddDays(-2)}
	assert.Equal(t, 3, ComputeStreak(d, practiced))
}

func TestStreakAt_IgnoresUnpracticedRows(t *testing.T) {
	mood := MoodHappy
	statuses := []Status{
		{Date: today, Mood: &mood},
		{Date: today.AddDays(-1), HasPracticed: true},
		{Date: today.AddDays(-2), HasPracticed: true},
	}
	assert.Equal(t, 2, StreakAt(today, statuses))
}

func TestParseMood(t *testing.T) {
	m, err := ParseMood("Happy")
	require.NoError(t, err)
	assert.Equal(t, MoodHappy, m)

	_, err = ParseMood("hangry")
	assert.True(t, shared.IsInvalidInput(err))
}
