package indicator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"optiq/internal/cache"
	"optiq/internal/logger"
	"optiq/internal/market"
	"optiq/internal/retry"

	talib "github.com/markcheno/go-talib"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// 布林带参数固定：周期 50、2 倍标准差，不随配置变化。
const (
	bollingerPeriod = 50
	bollingerDev    = 2.0

	minHistorySize = 1800
	candleCacheTTL = 300 * time.Second

	defaultFetchConcurrency   = 10
	defaultComputeConcurrency = 5

	fetchMaxAttempts    = 5
	fetchInitialBackoff = 2 * time.Second
	fetchMaxBackoff     = 15 * time.Second
)

// ScalarSpec 描述单值指标及其接受区间。
type ScalarSpec struct {
	Enabled bool
	Period  int
	Min     float64
	Max     float64
}

type StochSpec struct {
	Enabled bool
	KPeriod int
	DPeriod int
}

type MACDSpec struct {
	Enabled      bool
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

// Options 汇总启用的指标集合。布林带始终参与计算。
type Options struct {
	RSI   ScalarSpec
	SMA   ScalarSpec
	EMA   ScalarSpec
	Stoch StochSpec
	MACD  MACDSpec
}

// MaxPeriod 返回启用指标中最长的回看周期（含固定的布林带周期）。
func (o Options) MaxPeriod() int {
	max := bollingerPeriod
	consider := func(enabled bool, period int) {
		if enabled && period > max {
			max = period
		}
	}
	consider(o.RSI.Enabled, o.RSI.Period)
	consider(o.SMA.Enabled, o.SMA.Period)
	consider(o.EMA.Enabled, o.EMA.Period)
	consider(o.Stoch.Enabled, o.Stoch.KPeriod)
	consider(o.MACD.Enabled, o.MACD.SlowPeriod)
	return max
}

// Engine 负责并发抓取历史 K 线并计算指标批次。
// 两级缓存：原始 K 线（固定 300s TTL）与批次结果（timeframe×5 分钟 TTL）；
// 同一批次键的并发请求通过 singleflight 合并，只打一次上游。
type Engine struct {
	broker     market.Broker
	opts       Options
	candles    *cache.Cache[string, []market.Candle]
	batches    *cache.Cache[string, map[string]Snapshot]
	policy     *retry.Policy
	fetchSem   *semaphore.Weighted
	computeCap int
	group      singleflight.Group
}

// NewEngine 构造指标引擎。
func NewEngine(broker market.Broker, opts Options) *Engine {
	return &Engine{
		broker:     broker,
		opts:       opts,
		candles:    cache.New[string, []market.Candle](100),
		batches:    cache.New[string, map[string]Snapshot](100),
		policy:     retry.New(fetchMaxAttempts, fetchInitialBackoff, fetchMaxBackoff, market.IsTransient),
		fetchSem:   semaphore.NewWeighted(defaultFetchConcurrency),
		computeCap: defaultComputeConcurrency,
	}
}

// SetRetryPolicy 注入重试策略，仅测试使用。
func (e *Engine) SetRetryPolicy(p *retry.Policy) {
	if p != nil {
		e.policy = p
	}
}

// BatchKey 由 timeframe 与排序后的品种集拼接而成，
// 保证乱序但相同的请求命中同一缓存槽。
func BatchKey(instruments []string, timeframe int) string {
	sorted := append([]string(nil), instruments...)
	sort.Strings(sorted)
	return fmt.Sprintf("%d_%s", timeframe, strings.Join(sorted, ","))
}

// HistorySize 返回需要抓取的 K 线数量。
func (e *Engine) HistorySize(timeframe int) int {
	need := timeframe * e.opts.MaxPeriod() * 3
	if need < minHistorySize {
		return minHistorySize
	}
	return need
}

// Compute 计算一批品种的指标快照。空输入直接返回空映射，不触达行情方。
// 单品种的抓取/计算失败只会让该品种缺席结果，从不让整批失败。
func (e *Engine) Compute(ctx context.Context, instruments []string, timeframe int) (map[string]Snapshot, error) {
	if len(instruments) == 0 {
		logger.Debugf("indicator: 空品种列表，返回空批次")
		return map[string]Snapshot{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key := BatchKey(instruments, timeframe)
	if cached, ok := e.batches.Get(key); ok {
		logger.Debugf("indicator: 批次缓存命中 key=%s", key)
		return cached, nil
	}

	result, err, _ := e.group.Do(key, func() (any, error) {
		if cached, ok := e.batches.Get(key); ok {
			return cached, nil
		}
		batch, err := e.computeBatch(ctx, instruments, timeframe)
		if err != nil {
			return nil, err
		}
		e.batches.Put(key, batch, e.batchTTL(timeframe))
		return batch, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]Snapshot), nil
}

func (e *Engine) batchTTL(timeframe int) time.Duration {
	return time.Duration(timeframe) * 5 * time.Minute
}

func (e *Engine) computeBatch(ctx context.Context, instruments []string, timeframe int) (map[string]Snapshot, error) {
	results := make(map[string]Snapshot, len(instruments))
	var mu sync.Mutex

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(e.computeCap)
	for _, asset := range instruments {
		asset := asset
		group.Go(func() error {
			candles, err := e.fetchCandles(gctx, asset, timeframe)
			if err != nil {
				// 重试耗尽或不可重试：跳过该品种，不上抛。
				logger.Warnf("indicator: 抓取 %s 失败，跳过本轮: %v", asset, err)
				return nil
			}
			if len(candles) < e.opts.MaxPeriod() {
				logger.Warnf("indicator: %s K 线不足 (%d < %d)，跳过", asset, len(candles), e.opts.MaxPeriod())
				return nil
			}
			snap := e.computeSnapshot(asset, candles)
			mu.Lock()
			results[asset] = snap
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) fetchCandles(ctx context.Context, asset string, timeframe int) ([]market.Candle, error) {
	size := e.HistorySize(timeframe)
	key := fmt.Sprintf("%s_%d_%d", asset, timeframe, size)
	if cached, ok := e.candles.Get(key); ok {
		return cached, nil
	}

	var candles []market.Candle
	fetch := func(ctx context.Context) error {
		if err := e.fetchSem.Acquire(ctx, 1); err != nil {
			return market.Transient(err)
		}
		defer e.fetchSem.Release(1)
		batch, err := e.broker.FetchCandles(ctx, asset, timeframe, size)
		if err != nil {
			return err
		}
		candles = batch
		return nil
	}
	if err := e.policy.Do(ctx, fetch); err != nil {
		return nil, err
	}
	e.candles.Put(key, candles, candleCacheTTL)
	return candles, nil
}

// computeSnapshot 运行各指标。单个指标的异常结果只降级该指标。
func (e *Engine) computeSnapshot(asset string, candles []market.Candle) Snapshot {
	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)

	var snap Snapshot
	if e.opts.RSI.Enabled {
		snap.RSI = lastBounded(talib.Rsi(closes, e.opts.RSI.Period), e.opts.RSI)
	}
	if e.opts.SMA.Enabled {
		snap.SMA = lastBounded(talib.Sma(closes, e.opts.SMA.Period), e.opts.SMA)
	}
	if e.opts.EMA.Enabled {
		snap.EMA = lastBounded(talib.Ema(closes, e.opts.EMA.Period), e.opts.EMA)
	}
	if e.opts.Stoch.Enabled {
		k, d := talib.Stoch(highs, lows, closes, e.opts.Stoch.KPeriod, 3, talib.SMA, e.opts.Stoch.DPeriod, talib.SMA)
		if kv, dv, ok := lastPair(k, d); ok {
			snap.Stoch = StochValue{K: kv, D: dv, Valid: true}
		}
	}
	if e.opts.MACD.Enabled {
		macd, signal, _ := talib.Macd(closes, e.opts.MACD.FastPeriod, e.opts.MACD.SlowPeriod, e.opts.MACD.SignalPeriod)
		if mv, sv, ok := lastPair(macd, signal); ok {
			snap.MACD = MACDValue{MACD: mv, Signal: sv, Valid: true}
		}
	}
	upper, _, lower := talib.BBands(closes, bollingerPeriod, bollingerDev, bollingerDev, talib.SMA)
	if uv, lv, ok := lastPair(upper, lower); ok {
		snap.Bands = BandsValue{Upper: uv, Lower: lv, Valid: true}
	}

	if !snap.Bands.Valid {
		logger.Debugf("indicator: %s 布林带不可用", asset)
	}
	return snap
}

func lastBounded(series []float64, spec ScalarSpec) Value {
	if len(series) == 0 {
		return Value{}
	}
	return boundedScalar(series[len(series)-1], spec.Min, spec.Max)
}

// lastPair 取两条序列的末值，要求两者皆为有限数。
func lastPair(a, b []float64) (float64, float64, bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, false
	}
	av, bv := a[len(a)-1], b[len(b)-1]
	if !isFinite(av) || !isFinite(bv) {
		return 0, 0, false
	}
	return av, bv, true
}
