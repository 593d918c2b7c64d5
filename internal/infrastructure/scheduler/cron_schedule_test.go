package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCronSchedule_RejectsMalformedExpressions(t *testing.T) {
	cases := []string{
		"",
		"0 4 * *",
		"0 4 * * * *",
		"61 * * * *",
		"* 25 * * *",
		"*/0 * * * *",
		"x * * * *",
	}
	for _, expr := range cases {
		_, err := NewCronSchedule(expr)
		assert.Error(t, err, "expression %q", expr)
	}
}

func TestCronSchedule_DailyAtFour(t *testing.T) {
	cs, err := NewCronSchedule("0 4 * * *")
	require.NoError(t, err)

	from := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	next := cs.Next(from)
	assert.Equal(t, time.Date(2026, 8, 27, 4, 0, 0, 0, time.UTC), next)

	// Next is strictly after: asked at the matching minute, it returns
	// the following day.
	next = cs.Next(next)
	assert.Equal(t, time.Date(2026, 8, 28, 4, 0, 0, 0, time.UTC), next)
}

func TestCronSchedule_StepMinutes(t *testing.T) {
	cs, err := NewCronSchedule("*/10 * * * *")
	require.NoError(t, err)

	from := time.Date(2026, 8, 26, 10, 3, 20, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 26, 10, 10, 0, 0, time.UTC), cs.Next(from))
}

func TestCronSchedule_Weekday(t *testing.T) {
	// Sundays at midnight. 2026-08-26 is a Wednesday.
	cs, err := NewCronSchedule("0 0 * * 0")
	require.NoError(t, err)

	from := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	next := cs.Next(from)
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), next)
	assert.Equal(t, time.Sunday, next.Weekday())
}

func TestCronSchedule_ListsAndRanges(t *testing.T) {
	cs, err := NewCronSchedule("15,45 9-17 * * *")
	require.NoError(t, err)

	from := time.Date(2026, 8, 26, 17, 46, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 27, 9, 15, 0, 0, time.UTC), cs.Next(from))
}

func TestCronSchedule_ImplementsSchedule(t *testing.T) {
	cs, err := NewCronSchedule("0 4 * * *")
	require.NoError(t, err)

	var _ Schedule = cs
	assert.Equal(t, "cron(0 4 * * *)", cs.String())
}
