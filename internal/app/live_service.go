package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"optiq/internal/assets"
	"optiq/internal/audit"
	"optiq/internal/config"
	"optiq/internal/indicator"
	"optiq/internal/logger"
	"optiq/internal/market"
	"optiq/internal/scheduler"
	"optiq/internal/strategy"
	"optiq/internal/trading"
)

const (
	quietHoursSleep      = time.Hour
	reconnectMaxAttempts = 5
	reconnectBaseDelay   = 5 * time.Second
	reconnectMaxDelay    = 60 * time.Second
)

// LiveService 驱动外层决策循环：静默时段暂停、连接保活、品种
// 发现、指标批量计算与一轮交易执行。连接彻底丢失是唯一的致命
// 退出路径，其余错误都只影响当前轮。
type LiveService struct {
	cfg       *config.Config
	broker    market.Broker
	connector brokerConnector
	engine    *indicator.Engine
	executor  *trading.Executor
	discovery *assets.Discovery
	presets   *strategy.Registry
	store     *audit.Store

	fatalErr error

	nowFn   func() time.Time
	sleepFn func(ctx context.Context, d time.Duration)
}

// Run 阻塞运行决策循环，直到 ctx 取消或连接不可恢复。
func (s *LiveService) Run(ctx context.Context) error {
	if s == nil || s.cfg == nil {
		return fmt.Errorf("live service not initialized")
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	if s.sleepFn == nil {
		s.sleepFn = sleepCtx
	}

	if s.connector != nil {
		if err := s.connector.Connect(ctx); err != nil {
			return fmt.Errorf("初次建立经纪商会话失败: %w", err)
		}
		logger.Infof("live: 经纪商会话建立成功")
	}
	if s.presets != nil {
		snap := s.presets.Snapshot()
		logger.Infof("live: 策略预设 %q 已载入（版本 %d）", snap.Active, snap.Version)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pacer := scheduler.NewPacer(loopCtx, "decision", s.cfg.Trading.Cooldown())
	pacer.Start(func() {
		s.runCycle(loopCtx)
		if s.fatalErr != nil {
			cancel()
		}
	})

	if s.fatalErr != nil {
		return s.fatalErr
	}
	return nil
}

// Close 释放持久化资源。
func (s *LiveService) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logger.Warnf("live: 关闭审计数据库失败: %v", err)
		}
	}
}

func (s *LiveService) runCycle(ctx context.Context) {
	now := s.nowFn()
	if scheduler.InQuietHours(now) {
		logger.Infof("live: 静默时段（UTC %02d 时），暂停 %s", now.UTC().Hour(), quietHoursSleep)
		s.sleepFn(ctx, quietHoursSleep)
		return
	}

	if err := s.ensureConnected(ctx); err != nil {
		s.fatalErr = err
		return
	}

	candidates, err := s.discovery.Discover(ctx, s.cfg.Trading.TimeframeMinutes)
	if err != nil {
		logger.Warnf("live: 品种发现失败，跳过本轮: %v", err)
		return
	}
	if len(candidates) == 0 {
		logger.Infof("live: 本轮无候选品种")
		return
	}

	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Asset)
	}

	computeCtx, cancel := context.WithTimeout(ctx, s.cfg.Trading.IndicatorTimeout())
	snapshots, err := s.engine.Compute(computeCtx, names, s.cfg.Trading.TimeframeMinutes)
	cancel()
	if err != nil {
		logger.Warnf("live: 指标计算失败，跳过本轮: %v", err)
		return
	}

	kept := assets.Prefilter(candidates, snapshots)
	if len(kept) == 0 {
		logger.Infof("live: 前置筛查后无可交易品种")
		return
	}
	logger.InfoBlock(renderCandidateTable(kept, snapshots))

	keptNames := make([]string, 0, len(kept))
	for _, c := range kept {
		keptNames = append(keptNames, c.Asset)
	}
	s.executor.ExecuteCycle(ctx, keptNames, snapshots)
}

// ensureConnected 用账户查询探活。失败后按 5s 起步、封顶 60s 的
// 指数退避重连，连续失败 5 次视为不可恢复。
func (s *LiveService) ensureConnected(ctx context.Context) error {
	if _, err := s.broker.FetchProfile(ctx); err == nil {
		return nil
	} else if ctx.Err() != nil {
		return nil
	} else {
		logger.Warnf("live: 连接探活失败: %v", err)
	}

	for attempt := 0; attempt < reconnectMaxAttempts; attempt++ {
		delay := reconnectBaseDelay << attempt
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
		logger.Infof("live: %s 后重连（第 %d/%d 次）", delay, attempt+1, reconnectMaxAttempts)
		s.sleepFn(ctx, delay)
		if ctx.Err() != nil {
			return nil
		}

		if s.connector != nil {
			if err := s.connector.Connect(ctx); err != nil {
				logger.Warnf("live: 重连失败: %v", err)
				continue
			}
		}
		if _, err := s.broker.FetchProfile(ctx); err == nil {
			logger.Infof("live: 连接恢复")
			return nil
		} else {
			logger.Warnf("live: 重连后探活仍失败: %v", err)
		}
	}
	return fmt.Errorf("经纪商连接在 %d 次重连后仍不可用", reconnectMaxAttempts)
}

func renderCandidateTable(candidates []assets.Candidate, snapshots map[string]indicator.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("本轮候选品种\n")
	sb.WriteString(fmt.Sprintf("%-14s %10s %12s %8s %8s\n", "asset", "payout", "price", "RSI", "K"))
	for _, c := range candidates {
		snap := snapshots[c.Asset]
		sb.WriteString(fmt.Sprintf("%-14s %9.1f%% %12.5f %8.2f %8.2f\n",
			c.Asset, c.Payout, c.Price, snap.RSI.Val, snap.Stoch.K))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
