package trading

import (
	"fmt"
	"sync"
	"time"

	"optiq/internal/logger"
	"optiq/internal/market"
)

const dailyResetWindow = 24 * time.Hour

// Order 是由状态机独占持有的在场仓位。
type Order struct {
	ID        string
	Asset     string
	Direction market.Direction
	Amount    float64
	OpenPrice float64
	OpenedAt  time.Time
}

// Limits 是风险预算参数，来自配置，构造后不再变化。
type Limits struct {
	BasePercentage        float64
	MinPercentage         float64
	MaxPercentage         float64
	DailyLossLimitPercent float64
	LossStreakThreshold   int
	WinStreakThreshold    int
}

// State 是单账户的交易状态机：在场订单、日内风险账本、
// 连胜/连亏计数与自适应仓位比例。每个会话各持一份实例，
// 不存在进程级单例。写路径由决策循环串行驱动，锁只为
// 观测端（HTTP 快照）提供安全读取。
type State struct {
	mu     sync.Mutex
	limits Limits

	openOrders    map[string]Order // keyed by asset：结构上保证每品种至多一单
	lastTradeTime map[string]time.Time

	dailyLoss           float64
	initialDailyBalance float64
	lastResetTime       time.Time
	hasReset            bool

	consecutiveLosses int
	consecutiveWins   int
	currentTradePct   float64

	nowFn func() time.Time
}

// NewState 构造交易状态机，仓位比例从基准值起步。
func NewState(limits Limits) *State {
	return &State{
		limits:          limits,
		openOrders:      make(map[string]Order),
		lastTradeTime:   make(map[string]time.Time),
		currentTradePct: limits.BasePercentage,
		nowFn:           time.Now,
	}
}

// SetClock 注入时钟，仅测试使用。
func (s *State) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.nowFn = now
	}
}

// NeedsDailyReset 判断是否进入新的 24h 窗口。
func (s *State) NeedsDailyReset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasReset {
		return true
	}
	return s.nowFn().Sub(s.lastResetTime) >= dailyResetWindow
}

// ResetDaily 以当前余额开启新的日内窗口：清零亏损与连胜连亏，
// 仓位比例回到基准。
func (s *State) ResetDaily(balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailyLoss = 0
	s.initialDailyBalance = balance
	s.lastResetTime = s.nowFn()
	s.hasReset = true
	s.consecutiveLosses = 0
	s.consecutiveWins = 0
	s.currentTradePct = s.limits.BasePercentage
	logger.Infof("trading: 日内重置，初始余额 %.2f", balance)
}

// AddOrder 登记新仓位。同品种已有在场订单时拒绝（硬不变量）。
func (s *State) AddOrder(order Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.openOrders[order.Asset]; exists {
		return fmt.Errorf("open order already exists for %s", order.Asset)
	}
	s.openOrders[order.Asset] = order
	logger.Debugf("trading: 登记订单 %s (%s %s %.2f)", order.ID, order.Asset, order.Direction, order.Amount)
	return nil
}

// RemoveOrder 移除在场订单（平仓或对账失败后的防御性清除）。
func (s *State) RemoveOrder(asset string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.openOrders[asset]; !ok {
		logger.Warnf("trading: 移除失败，%s 无在场订单", asset)
		return
	}
	delete(s.openOrders, asset)
}

// HasOpenOrder 判断品种是否已有在场订单。
func (s *State) HasOpenOrder(asset string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.openOrders[asset]
	return ok
}

// OpenOrders 返回在场订单副本。
func (s *State) OpenOrders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, 0, len(s.openOrders))
	for _, o := range s.openOrders {
		out = append(out, o)
	}
	return out
}

// MarkTrade 更新品种的最近下单时间（冷却窗口起点）。
func (s *State) MarkTrade(asset string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTradeTime[asset] = s.nowFn()
}

// InCooldown 判断品种是否仍在冷却窗口内。
func (s *State) InCooldown(asset string, cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastTradeTime[asset]
	if !ok {
		return false
	}
	return s.nowFn().Sub(last) < cooldown
}

// RecordLoss 记一笔亏损：日内亏损累加、连亏 +1、连胜归零。
func (s *State) RecordLoss(amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailyLoss += amount
	s.consecutiveLosses++
	s.consecutiveWins = 0
}

// RecordWin 记一笔盈利：盈利冲抵日内亏损、连胜 +1、连亏归零。
func (s *State) RecordWin(profit float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailyLoss -= profit
	s.consecutiveWins++
	s.consecutiveLosses = 0
}

// AdjustTradePercentage 每轮重算仓位比例：连亏达到阈值则收缩，
// 连胜达到阈值则放大，否则立即回到基准——断掉的连胜/连亏
// 不保留历史加成。
func (s *State) AdjustTradePercentage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.currentTradePct
	switch {
	case s.consecutiveLosses >= s.limits.LossStreakThreshold:
		s.currentTradePct = maxFloat(s.limits.MinPercentage, old*0.3)
	case s.consecutiveWins >= s.limits.WinStreakThreshold:
		s.currentTradePct = minFloat(s.limits.MaxPercentage, old*1.2)
	default:
		s.currentTradePct = s.limits.BasePercentage
	}
	if s.currentTradePct != old {
		logger.Infof("trading: 仓位比例 %.2f%% → %.2f%%（连亏=%d 连胜=%d）",
			old, s.currentTradePct, s.consecutiveLosses, s.consecutiveWins)
	}
}

// CheckDailyLossLimit 返回 false 表示本轮必须停手：
// 日内亏损百分比达到上限，或连亏已达 3 笔。触发时附带把仓位
// 比例再压缩 0.3 倍，阻止恢复后立刻满仓。未初始化（尚无重置）
// 时恒为 true。
func (s *State) CheckDailyLossLimit(balance float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialDailyBalance <= 0 {
		return true
	}
	lossPct := s.dailyLoss / s.initialDailyBalance * 100
	if lossPct >= s.limits.DailyLossLimitPercent || s.consecutiveLosses >= 3 {
		logger.Warnf("trading: 停手，日内亏损 %.2f%% (上限 %.2f%%)，连亏 %d",
			lossPct, s.limits.DailyLossLimitPercent, s.consecutiveLosses)
		s.currentTradePct = maxFloat(s.limits.MinPercentage, s.currentTradePct*0.3)
		return false
	}
	_ = balance
	return true
}

// CurrentPercentage 返回当前生效的仓位比例。
func (s *State) CurrentPercentage() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTradePct
}

// Snapshot 供观测端读取的只读视图。
type Snapshot struct {
	OpenOrders          []Order   `json:"open_orders"`
	DailyLoss           float64   `json:"daily_loss"`
	InitialDailyBalance float64   `json:"initial_daily_balance"`
	LastResetTime       time.Time `json:"last_reset_time"`
	ConsecutiveLosses   int       `json:"consecutive_losses"`
	ConsecutiveWins     int       `json:"consecutive_wins"`
	CurrentTradePct     float64   `json:"current_trade_percentage"`
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]Order, 0, len(s.openOrders))
	for _, o := range s.openOrders {
		orders = append(orders, o)
	}
	return Snapshot{
		OpenOrders:          orders,
		DailyLoss:           s.dailyLoss,
		InitialDailyBalance: s.initialDailyBalance,
		LastResetTime:       s.lastResetTime,
		ConsecutiveLosses:   s.consecutiveLosses,
		ConsecutiveWins:     s.consecutiveWins,
		CurrentTradePct:     s.currentTradePct,
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
