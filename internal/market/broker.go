package market

import "context"

// Direction 是二元期权的下单方向。
type Direction string

const (
	DirectionCall Direction = "call"
	DirectionPut  Direction = "put"
)

// Valid 仅接受 call/put。
func (d Direction) Valid() bool {
	return d == DirectionCall || d == DirectionPut
}

const (
	OrderStatusOpen   = "open"
	OrderStatusClosed = "closed"
)

// BrokerOrder 是券商侧订单的权威记录，在对账时消费。
type BrokerOrder struct {
	ID     string  `json:"id"`
	Status string  `json:"status"` // open | closed
	Profit float64 `json:"profit"`
}

// Profile 携带余额、账户类型与券商侧订单表；OpenInstruments 标记
// 当前可交易的品种（品种名 → 是否开盘）。
type Profile struct {
	Balance         float64
	IsDemo          bool
	Orders          map[string]BrokerOrder
	OpenInstruments map[string]bool
}

// SubmitResult 是下单回执。
type SubmitResult struct {
	Accepted bool
	OrderID  string
	Reason   string
}

// Broker 是券商/行情协作方的边界。实现方：otc 网关（实盘会话）与
// paper 网关（模拟盘）。所有阻塞调用都接受 context。
type Broker interface {
	// FetchCandles 返回 asset 在 timeframe（分钟）上最近 count 根 K 线，旧→新。
	FetchCandles(ctx context.Context, asset string, timeframe, count int) ([]Candle, error)

	// FetchPrice 返回 asset 的最新成交价。取不到时返回 ErrPriceUnavailable。
	FetchPrice(ctx context.Context, asset string, timeframe int) (float64, error)

	// FetchProfile 查询余额与券商侧订单状态。
	FetchProfile(ctx context.Context) (Profile, error)

	// FetchPayout 返回品种的赔付率（百分比）。
	FetchPayout(ctx context.Context, asset string) (float64, error)

	// SubmitOrder 提交一笔定额订单，duration 为到期秒数。
	SubmitOrder(ctx context.Context, amount float64, asset string, direction Direction, duration int) (SubmitResult, error)
}
