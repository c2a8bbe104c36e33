package trading

import (
	"context"
	"time"

	"optiq/internal/indicator"
	"optiq/internal/logger"
	"optiq/internal/market"
	"optiq/internal/strategy"
)

// Entry 是一条决策审计记录，无论最终是否下单都会落盘。
type Entry struct {
	Timestamp time.Time
	Asset     string
	Price     float64
	Snapshot  indicator.Snapshot
	Strategy  string
	Decision  string
}

// AuditSink 决策审计的落盘端。Record 返回记录标识，
// 下单成功后通过 AttachOrder 关联订单号，结算时用
// Resolve 回填胜负。实现不得阻塞决策循环。
type AuditSink interface {
	Record(e Entry) string
	AttachOrder(entryID, orderID string)
	Resolve(orderID, result string)
}

// NopSink 丢弃所有审计记录。
type NopSink struct{}

func (NopSink) Record(Entry) string        { return "" }
func (NopSink) AttachOrder(string, string) {}
func (NopSink) Resolve(string, string)     {}

// IndicatorSource 按需刷新单品种指标，由指标引擎实现。
type IndicatorSource interface {
	Compute(ctx context.Context, instruments []string, timeframe int) (map[string]indicator.Snapshot, error)
}

// ExecutorConfig 决策循环的运行参数。
type ExecutorConfig struct {
	Enabled          bool
	TimeframeMinutes int
	DurationSeconds  int
	Cooldown         time.Duration
}

// Executor 驱动一轮完整决策：日内重置 → 在场订单盘中管理 →
// 仓位比例重算 → 逐品种信号评估与下单。指标由上游批量计算后
// 注入，自身只在盘中管理时按需刷新布林带。
type Executor struct {
	broker market.Broker
	engine IndicatorSource
	strat  strategy.Strategy
	state  *State
	sink   AuditSink
	cfg    ExecutorConfig

	nowFn func() time.Time
}

// NewExecutor 构造决策执行器。sink 传 nil 时退化为 NopSink。
func NewExecutor(broker market.Broker, engine IndicatorSource, strat strategy.Strategy, state *State, sink AuditSink, cfg ExecutorConfig) *Executor {
	if sink == nil {
		sink = NopSink{}
	}
	return &Executor{
		broker: broker,
		engine: engine,
		strat:  strat,
		state:  state,
		sink:   sink,
		cfg:    cfg,
		nowFn:  time.Now,
	}
}

// SetClock 注入时钟，仅测试使用。
func (x *Executor) SetClock(now func() time.Time) {
	if now != nil {
		x.nowFn = now
	}
}

// ExecuteCycle 跑一轮决策。snapshots 为本轮批量计算的指标，
// 缺席的品种直接跳过。阶段顺序是状态机正确性的前提，不可重排。
func (x *Executor) ExecuteCycle(ctx context.Context, assets []string, snapshots map[string]indicator.Snapshot) {
	if !x.cfg.Enabled || len(assets) == 0 {
		return
	}

	x.maybeResetDaily(ctx)
	x.monitorOpenOrders(ctx)
	x.state.AdjustTradePercentage()

	for _, asset := range assets {
		if ctx.Err() != nil {
			return
		}
		x.evaluateAsset(ctx, asset, snapshots[asset])
	}
}

func (x *Executor) maybeResetDaily(ctx context.Context) {
	if !x.state.NeedsDailyReset() {
		return
	}
	profile, err := x.broker.FetchProfile(ctx)
	if err != nil {
		logger.Warnf("executor: 日内重置失败，无法获取余额: %v", err)
		return
	}
	x.state.ResetDaily(profile.Balance)
}

// monitorOpenOrders 对每笔在场订单先做追踪止损检查，再与经纪商
// 对账结算。对账拿不到权威数据时防御性移除本地仓位，宁可少记
// 一笔结果也不能让幽灵仓位阻塞该品种的后续决策。
func (x *Executor) monitorOpenOrders(ctx context.Context) {
	orders := x.state.OpenOrders()
	if len(orders) == 0 {
		return
	}

	profile, profileErr := x.broker.FetchProfile(ctx)
	if profileErr != nil {
		logger.Warnf("executor: 对账失败，无法获取账户: %v", profileErr)
	}

	for _, order := range orders {
		if x.applyTrailingStop(ctx, order) {
			continue
		}
		if profileErr != nil {
			logger.Warnf("executor: 防御性移除订单 %s (%s)", order.ID, order.Asset)
			x.state.RemoveOrder(order.Asset)
			continue
		}
		x.settleOrder(order, profile)
	}
}

// applyTrailingStop 用最新布林带判断仓位是否已被趋势反向击穿：
// call 跌破下轨、put 突破上轨即按全额亏损提前离场。返回 true
// 表示订单已处理完毕。
func (x *Executor) applyTrailingStop(ctx context.Context, order Order) bool {
	batch, err := x.engine.Compute(ctx, []string{order.Asset}, x.cfg.TimeframeMinutes)
	if err != nil {
		logger.Warnf("executor: 止损检查失败 %s: %v", order.Asset, err)
		return false
	}
	snap, ok := batch[order.Asset]
	if !ok || !snap.Bands.Valid {
		return false
	}
	price, err := x.broker.FetchPrice(ctx, order.Asset, x.cfg.TimeframeMinutes)
	if err != nil {
		logger.Debugf("executor: 止损检查无现价 %s: %v", order.Asset, err)
		return false
	}

	breached := (order.Direction == market.DirectionCall && price < snap.Bands.Lower) ||
		(order.Direction == market.DirectionPut && price > snap.Bands.Upper)
	if !breached {
		return false
	}

	logger.Infof("executor: 追踪止损触发 %s %s，价格 %.5f 带区 [%.5f, %.5f]",
		order.Asset, order.Direction, price, snap.Bands.Lower, snap.Bands.Upper)
	x.state.RecordLoss(order.Amount)
	x.state.RemoveOrder(order.Asset)
	x.sink.Resolve(order.ID, "loss")
	return true
}

func (x *Executor) settleOrder(order Order, profile market.Profile) {
	bo, ok := profile.Orders[order.ID]
	if !ok || bo.Status != market.OrderStatusClosed {
		return
	}
	if bo.Profit > 0 {
		logger.Infof("executor: 订单 %s (%s) 盈利 %.2f", order.ID, order.Asset, bo.Profit)
		x.state.RecordWin(bo.Profit)
		x.sink.Resolve(order.ID, "win")
	} else {
		logger.Infof("executor: 订单 %s (%s) 亏损 %.2f", order.ID, order.Asset, order.Amount)
		x.state.RecordLoss(order.Amount)
		x.sink.Resolve(order.ID, "loss")
	}
	x.state.RemoveOrder(order.Asset)
}

func (x *Executor) evaluateAsset(ctx context.Context, asset string, snap indicator.Snapshot) {
	if x.state.HasOpenOrder(asset) {
		logger.Debugf("executor: %s 已有在场订单，跳过", asset)
		return
	}
	if x.state.InCooldown(asset, x.cfg.Cooldown) {
		logger.Debugf("executor: %s 冷却中，跳过", asset)
		return
	}

	price, err := x.broker.FetchPrice(ctx, asset, x.cfg.TimeframeMinutes)
	if err != nil {
		logger.Debugf("executor: %s 无现价，跳过: %v", asset, err)
		return
	}

	signal := x.strat.Evaluate(snap, price)
	decision := "ignored"
	if signal != strategy.SignalNone {
		decision = string(signal)
	}
	entryID := x.sink.Record(Entry{
		Timestamp: x.nowFn(),
		Asset:     asset,
		Price:     price,
		Snapshot:  snap,
		Strategy:  x.strat.Name(),
		Decision:  decision,
	})
	if signal == strategy.SignalNone {
		return
	}

	profile, err := x.broker.FetchProfile(ctx)
	if err != nil {
		logger.Warnf("executor: %s 下单前无法获取余额: %v", asset, err)
		return
	}
	amount := StakeAmount(x.state.CurrentPercentage(), profile.Balance)
	if amount < 1.00 {
		logger.Warnf("executor: %s 下单金额 %.2f 低于最小值，跳过", asset, amount)
		return
	}
	if !x.state.CheckDailyLossLimit(profile.Balance) {
		logger.Warnf("executor: 日内风控触发，%s 不再开仓", asset)
		return
	}

	direction := market.Direction(signal)
	res, err := x.broker.SubmitOrder(ctx, amount, asset, direction, x.cfg.DurationSeconds)
	if err != nil {
		logger.Errorf("executor: %s 下单失败: %v", asset, err)
		return
	}
	if !res.Accepted {
		logger.Warnf("executor: %s 下单被拒: %s", asset, res.Reason)
		return
	}

	logger.Infof("executor: 下单成功 %s %s 金额 %.2f 订单 %s", asset, direction, amount, res.OrderID)
	if err := x.state.AddOrder(Order{
		ID:        res.OrderID,
		Asset:     asset,
		Direction: direction,
		Amount:    amount,
		OpenPrice: price,
		OpenedAt:  x.nowFn(),
	}); err != nil {
		logger.Errorf("executor: 登记订单失败 %s: %v", asset, err)
	}
	x.state.MarkTrade(asset)
	x.sink.AttachOrder(entryID, res.OrderID)
}
