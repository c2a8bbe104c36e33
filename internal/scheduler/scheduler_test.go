package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInQuietHoursBoundaries(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		hour, minute int
		want         bool
	}{
		{21, 59, false},
		{22, 0, true},
		{23, 30, true},
		{0, 0, true},
		{2, 59, true},
		{3, 0, false},
		{12, 0, false},
	}
	for _, tc := range cases {
		ts := day.Add(time.Duration(tc.hour)*time.Hour + time.Duration(tc.minute)*time.Minute)
		assert.Equal(t, tc.want, InQuietHours(ts), "%02d:%02d", tc.hour, tc.minute)
	}
}

func TestInQuietHoursConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	// 当地 06:30 = UTC 22:30
	assert.True(t, InQuietHours(time.Date(2026, 3, 2, 6, 30, 0, 0, loc)))
}

func TestPacerSleepsRemainder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPacer(ctx, "test", time.Minute)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p.nowFn = func() time.Time { return now }

	var waits []time.Duration
	p.sleepFn = func(_ context.Context, d time.Duration) {
		waits = append(waits, d)
	}

	runs := 0
	p.Start(func() {
		runs++
		now = now.Add(10 * time.Second) // 每轮任务耗时 10s
		if runs == 3 {
			cancel()
		}
	})

	assert.Equal(t, 3, runs)
	for _, w := range waits {
		assert.Equal(t, 50*time.Second, w)
	}
}

func TestPacerSkipsSleepWhenOverBudget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPacer(ctx, "test", time.Second)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p.nowFn = func() time.Time { return now }

	slept := false
	p.sleepFn = func(context.Context, time.Duration) { slept = true }

	runs := 0
	p.Start(func() {
		runs++
		now = now.Add(5 * time.Second) // 超过周期
		if runs == 2 {
			cancel()
		}
	})

	assert.Equal(t, 2, runs)
	assert.False(t, slept)
}
