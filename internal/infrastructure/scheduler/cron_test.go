package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/pkg/timeutil"
)

func kl(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, timeutil.PlatformTZ)
}

func TestParseCronExpression_Invalid(t *testing.T) {
	tests := []string{
		"* * *",
		"60 * * * *",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
		"1,,2 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 8",
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseCronExpression(expr)
			assert.Error(t, err)
		})
	}
}

func TestCronExpression_WeeklyRewards(t *testing.T) {
	ce := MustParseCronExpression(WeeklyRewards)

	// Wednesday -> following Monday 00:05
	assert.WithinDuration(t, kl(2024, time.March, 11, 0, 5), ce.Next(kl(2024, time.March, 6, 10, 0)), 0)

	// exactly on the slot -> one week later
	assert.WithinDuration(t, kl(2024, time.March, 18, 0, 5), ce.Next(kl(2024, time.March, 11, 0, 5)), 0)

	// Monday 00:04:59 -> same day
	assert.WithinDuration(t, kl(2024, time.March, 11, 0, 5),
		ce.Next(kl(2024, time.March, 11, 0, 4).Add(59*time.Second)), 0)
}

func TestCronExpression_Next(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "every 15 minutes in working hours",
			expr:  "*/15 9-17 * * 1-5",
			after: kl(2024, time.March, 8, 17, 50), // Friday
			want:  kl(2024, time.March, 11, 9, 0),
		},
		{
			name:  "list of minutes",
			expr:  "10,40 * * * *",
			after: kl(2024, time.March, 8, 6, 11),
			want:  kl(2024, time.March, 8, 6, 40),
		},
		{
			name:  "day of month or weekday",
			expr:  "0 0 13 * 5",
			after: kl(2024, time.March, 2, 0, 0), // Saturday
			want:  kl(2024, time.March, 8, 0, 0),
		},
		{
			name:  "seven is sunday",
			expr:  "0 12 * * 7",
			after: kl(2024, time.March, 2, 12, 0),
			want:  kl(2024, time.March, 3, 12, 0),
		},
		{
			name:  "month rollover",
			expr:  "0 0 1 * *",
			after: kl(2024, time.December, 15, 0, 0),
			want:  kl(2025, time.January, 1, 0, 0),
		},
		{
			name:  "leap day",
			expr:  "0 0 29 2 *",
			after: kl(2024, time.March, 1, 0, 0),
			want:  kl(2028, time.February, 29, 0, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			require.NoError(t, err)
			assert.WithinDuration(t, tt.want, ce.Next(tt.after), 0)
		})
	}
}

func TestCronExpression_NeverMatches(t *testing.T) {
	ce := MustParseCronExpression("0 0 30 2 *")
	assert.True(t, ce.Next(kl(2024, time.January, 1, 0, 0)).IsZero())
}

func TestCronExpression_String(t *testing.T) {
	assert.Equal(t, "5 0 * * 1", MustParseCronExpression(WeeklyRewards).String())
}
