package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"optiq/internal/config"
	"optiq/internal/logger"
	"optiq/internal/market"
)

// CandleSource 为模拟盘提供真实行情，由 binance 现货源实现。
type CandleSource interface {
	FetchCandles(ctx context.Context, asset string, timeframe, count int) ([]market.Candle, error)
	FetchPrice(ctx context.Context, asset string, timeframe int) (float64, error)
}

type paperOrder struct {
	id        string
	asset     string
	direction market.Direction
	amount    float64
	openPrice float64
	expiresAt time.Time
}

// Broker 是全内存的模拟经纪商：行情来自真实的 CandleSource，
// 余额、成交与到期结算全部在本地模拟，整条决策链路无需实盘
// 账户即可跑通。每笔到期订单只结算一次。
type Broker struct {
	source CandleSource
	cfg    config.PaperConfig

	mu      sync.Mutex
	balance float64
	open    map[string]paperOrder
	closed  map[string]market.BrokerOrder
	nowFn   func() time.Time
}

var _ market.Broker = (*Broker)(nil)

// New 构造模拟经纪商。
func New(source CandleSource, cfg config.PaperConfig) *Broker {
	return &Broker{
		source:  source,
		cfg:     cfg,
		balance: cfg.InitialBalance,
		open:    make(map[string]paperOrder),
		closed:  make(map[string]market.BrokerOrder),
		nowFn:   time.Now,
	}
}

// SetClock 注入时钟，仅测试使用。
func (b *Broker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.nowFn = now
	}
}

func (b *Broker) FetchCandles(ctx context.Context, asset string, timeframe, count int) ([]market.Candle, error) {
	return b.source.FetchCandles(ctx, asset, timeframe, count)
}

func (b *Broker) FetchPrice(ctx context.Context, asset string, timeframe int) (float64, error) {
	return b.source.FetchPrice(ctx, asset, timeframe)
}

// FetchProfile 先结算到期订单，再返回当前账户快照。
func (b *Broker) FetchProfile(ctx context.Context) (market.Profile, error) {
	b.settleExpired(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	profile := market.Profile{
		Balance:         b.balance,
		IsDemo:          true,
		Orders:          make(map[string]market.BrokerOrder, len(b.open)+len(b.closed)),
		OpenInstruments: make(map[string]bool, len(b.cfg.Instruments)),
	}
	for id, o := range b.open {
		profile.Orders[id] = market.BrokerOrder{ID: o.id, Status: market.OrderStatusOpen}
	}
	for id, o := range b.closed {
		profile.Orders[id] = o
	}
	for _, name := range b.cfg.Instruments {
		profile.OpenInstruments[name] = true
	}
	return profile, nil
}

func (b *Broker) FetchPayout(ctx context.Context, asset string) (float64, error) {
	return b.cfg.PayoutPercent, nil
}

// SubmitOrder 扣除本金并登记到期时间。余额不足按业务拒单返回，
// 不算错误。
func (b *Broker) SubmitOrder(ctx context.Context, amount float64, asset string, direction market.Direction, duration int) (market.SubmitResult, error) {
	if !direction.Valid() {
		return market.SubmitResult{}, fmt.Errorf("paper: 非法方向 %q", direction)
	}
	if amount <= 0 {
		return market.SubmitResult{}, fmt.Errorf("paper: 非法金额 %.2f", amount)
	}
	price, err := b.source.FetchPrice(ctx, asset, 1)
	if err != nil {
		return market.SubmitResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if amount > b.balance {
		return market.SubmitResult{Accepted: false, Reason: "余额不足"}, nil
	}
	b.balance -= amount
	id := uuid.NewString()
	b.open[id] = paperOrder{
		id:        id,
		asset:     asset,
		direction: direction,
		amount:    amount,
		openPrice: price,
		expiresAt: b.nowFn().Add(time.Duration(duration) * time.Second),
	}
	logger.Debugf("paper: 开仓 %s %s %s 金额 %.2f 开仓价 %.5f", id, asset, direction, amount, price)
	return market.SubmitResult{Accepted: true, OrderID: id}, nil
}

// settleExpired 对到期订单按当前现价判定胜负。现价拉取失败的
// 订单留到下一次结算，不会丢失。
func (b *Broker) settleExpired(ctx context.Context) {
	b.mu.Lock()
	var due []paperOrder
	now := b.nowFn()
	for _, o := range b.open {
		if !now.Before(o.expiresAt) {
			due = append(due, o)
		}
	}
	b.mu.Unlock()

	for _, o := range due {
		price, err := b.source.FetchPrice(ctx, o.asset, 1)
		if err != nil {
			logger.Warnf("paper: 结算延后 %s，无现价: %v", o.id, err)
			continue
		}
		won := (o.direction == market.DirectionCall && price > o.openPrice) ||
			(o.direction == market.DirectionPut && price < o.openPrice)

		b.mu.Lock()
		if _, still := b.open[o.id]; !still {
			b.mu.Unlock()
			continue
		}
		delete(b.open, o.id)
		record := market.BrokerOrder{ID: o.id, Status: market.OrderStatusClosed}
		if won {
			payout := o.amount * b.cfg.PayoutPercent / 100
			b.balance += o.amount + payout
			record.Profit = payout
		} else {
			record.Profit = -o.amount
		}
		b.closed[o.id] = record
		b.mu.Unlock()
		logger.Infof("paper: 结算 %s %s 开仓 %.5f 到期 %.5f 盈亏 %.2f",
			o.id, o.asset, o.openPrice, price, record.Profit)
	}
}
