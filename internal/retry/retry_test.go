package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optiq/internal/market"
)

func noSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestBackoffProgression(t *testing.T) {
	p := New(5, 2*time.Second, 15*time.Second, market.IsTransient)
	assert.Equal(t, 2*time.Second, p.BackoffAt(1))
	assert.Equal(t, 4*time.Second, p.BackoffAt(2))
	assert.Equal(t, 8*time.Second, p.BackoffAt(3))
	assert.Equal(t, 15*time.Second, p.BackoffAt(4), "超过上限应封顶")
	assert.Equal(t, 15*time.Second, p.BackoffAt(9))
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	var waits []time.Duration
	p := New(5, 2*time.Second, 15*time.Second, market.IsTransient)
	p.SetSleep(noSleep(&waits))

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return market.Transient(errors.New("connection reset"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	var waits []time.Duration
	p := New(5, 2*time.Second, 15*time.Second, market.IsTransient)
	p.SetSleep(noSleep(&waits))

	fatal := errors.New("invalid instrument")
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, waits)
}

func TestDoExhaustsAttempts(t *testing.T) {
	var waits []time.Duration
	p := New(5, 2*time.Second, 15*time.Second, market.IsTransient)
	p.SetSleep(noSleep(&waits))

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return market.Transient(errors.New("timeout"))
	})
	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.Len(t, waits, 4, "最后一次失败后不再等待")
	assert.True(t, market.IsTransient(errors.Unwrap(err)))
}

func TestCancellationCountsAsRetryable(t *testing.T) {
	// 取消被视作瞬时错误，由次数上限兜底，而不是中断整个批次。
	assert.True(t, market.IsTransient(context.Canceled))
	assert.True(t, market.IsTransient(context.DeadlineExceeded))
}
