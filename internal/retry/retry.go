package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy 描述一次可重试调用：次数上限、指数退避与可重试判定。
// sleep 可注入，测试中替换为虚拟时钟。
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Retryable      func(error) bool

	sleepFn func(context.Context, time.Duration) error
}

// New 返回带默认值的策略。
func New(maxAttempts int, initial, max time.Duration, retryable func(error) bool) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	return &Policy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: initial,
		MaxBackoff:     max,
		BackoffFactor:  2.0,
		Retryable:      retryable,
		sleepFn:        sleepCtx,
	}
}

// SetSleep 注入睡眠实现，仅测试使用。
func (p *Policy) SetSleep(fn func(context.Context, time.Duration) error) {
	if fn != nil {
		p.sleepFn = fn
	}
}

// BackoffAt 返回第 attempt 次失败后的等待时长（attempt 从 1 计）。
func (p *Policy) BackoffAt(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		wait = time.Duration(float64(wait) * p.BackoffFactor)
		if wait >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if wait > p.MaxBackoff {
		return p.MaxBackoff
	}
	return wait
}

// Do 执行 op，失败且可重试时按退避继续，直到尝试次数耗尽。
// 不可重试的错误立即返回。
func (p *Policy) Do(ctx context.Context, op func(context.Context) error) error {
	if op == nil {
		return fmt.Errorf("retry: nil operation")
	}
	sleep := p.sleepFn
	if sleep == nil {
		sleep = sleepCtx
	}
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.BackoffAt(attempt)); err != nil {
			return lastErr
		}
	}
	return fmt.Errorf("retry: %d attempts exhausted: %w", p.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
