package scheduler

import (
	"context"
	"time"

	"optiq/internal/logger"
)

// Pacer 以固定节奏驱动决策循环：先执行任务，再补足本轮剩余
// 时间。任务超时跑过一个周期时立刻开始下一轮，不做追赶。
type Pacer struct {
	Name     string
	Interval time.Duration

	ctx     context.Context
	nowFn   func() time.Time
	sleepFn func(ctx context.Context, d time.Duration)
}

// NewPacer 构造节奏器。
func NewPacer(ctx context.Context, name string, interval time.Duration) *Pacer {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Pacer{
		Name:     name,
		Interval: interval,
		ctx:      ctx,
		nowFn:    time.Now,
		sleepFn:  sleepCtx,
	}
}

// Start 阻塞运行，直到 context 取消。
func (p *Pacer) Start(task func()) {
	if p == nil {
		return
	}
	if task == nil {
		logger.Warnf("Pacer[%s]: task 为空，退出", p.Name)
		return
	}
	if p.Interval <= 0 {
		logger.Warnf("Pacer[%s]: 非法间隔 %s，退出", p.Name, p.Interval)
		return
	}
	if p.nowFn == nil {
		p.nowFn = time.Now
	}
	if p.sleepFn == nil {
		p.sleepFn = sleepCtx
	}

	logger.Infof("Pacer[%s]: 启动，周期 %s", p.Name, p.Interval)
	for {
		if p.ctx.Err() != nil {
			logger.Infof("Pacer[%s]: context 取消，退出", p.Name)
			return
		}
		started := p.nowFn()
		task()
		elapsed := p.nowFn().Sub(started)

		wait := p.Interval - elapsed
		if wait <= 0 {
			logger.Warnf("Pacer[%s]: 本轮耗时 %s 超过周期 %s，立即进入下一轮",
				p.Name, elapsed.Truncate(time.Millisecond), p.Interval)
			continue
		}
		logger.Debugf("Pacer[%s]: 本轮耗时 %s，休眠 %s",
			p.Name, elapsed.Truncate(time.Millisecond), wait.Truncate(time.Millisecond))
		p.sleepFn(p.ctx, wait)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
