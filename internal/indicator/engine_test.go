package indicator

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optiq/internal/market"
	"optiq/internal/retry"
)

type fakeBroker struct {
	mu         sync.Mutex
	fetchCalls int32
	failures   map[string]int // asset → 先失败的次数（瞬时错误）
	short      map[string]int // asset → 返回的 K 线数（0 表示足量）
	fatal      map[string]error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		failures: make(map[string]int),
		short:    make(map[string]int),
		fatal:    make(map[string]error),
	}
}

func (f *fakeBroker) FetchCandles(_ context.Context, asset string, _, count int) ([]market.Candle, error) {
	atomic.AddInt32(&f.fetchCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fatal[asset]; ok {
		return nil, err
	}
	if n := f.failures[asset]; n > 0 {
		f.failures[asset] = n - 1
		return nil, market.Transient(errors.New("ws timeout"))
	}
	if n, ok := f.short[asset]; ok {
		count = n
	}
	candles := make([]market.Candle, count)
	for i := range candles {
		// 合成一条有波动的序列，保证 RSI/布林带可计算。
		price := 100 + 5*math.Sin(float64(i)/9)
		candles[i] = market.Candle{
			Timestamp: int64(i * 60),
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price + 0.1*math.Cos(float64(i)/4),
		}
	}
	return candles, nil
}

func (f *fakeBroker) FetchPrice(context.Context, string, int) (float64, error) {
	return 0, market.ErrPriceUnavailable
}

func (f *fakeBroker) FetchProfile(context.Context) (market.Profile, error) {
	return market.Profile{}, nil
}

func (f *fakeBroker) FetchPayout(context.Context, string) (float64, error) { return 0, nil }

func (f *fakeBroker) SubmitOrder(context.Context, float64, string, market.Direction, int) (market.SubmitResult, error) {
	return market.SubmitResult{}, errors.New("not implemented")
}

func (f *fakeBroker) calls() int { return int(atomic.LoadInt32(&f.fetchCalls)) }

func testOptions() Options {
	return Options{
		RSI:   ScalarSpec{Enabled: true, Period: 14, Min: 0, Max: 100},
		SMA:   ScalarSpec{Enabled: true, Period: 50, Min: 0, Max: 1e9},
		EMA:   ScalarSpec{Enabled: true, Period: 21, Min: 0, Max: 1e9},
		Stoch: StochSpec{Enabled: true, KPeriod: 14, DPeriod: 3},
		MACD:  MACDSpec{Enabled: true, FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
	}
}

func fastPolicy() *retry.Policy {
	p := retry.New(5, 2*time.Second, 15*time.Second, market.IsTransient)
	p.SetSleep(func(context.Context, time.Duration) error { return nil })
	return p
}

func TestComputeEmptyInputSkipsBroker(t *testing.T) {
	broker := newFakeBroker()
	e := NewEngine(broker, testOptions())

	got, err := e.Compute(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, broker.calls(), "空输入不得触达行情方")
}

func TestComputeProducesFiniteSnapshot(t *testing.T) {
	broker := newFakeBroker()
	e := NewEngine(broker, testOptions())
	e.SetRetryPolicy(fastPolicy())

	got, err := e.Compute(context.Background(), []string{"EURUSD-OTC"}, 1)
	require.NoError(t, err)
	snap, ok := got["EURUSD-OTC"]
	require.True(t, ok)

	require.True(t, snap.RSI.Valid)
	assert.GreaterOrEqual(t, snap.RSI.Val, 0.0)
	assert.LessOrEqual(t, snap.RSI.Val, 100.0)
	assert.True(t, snap.SMA.Valid)
	assert.True(t, snap.EMA.Valid)
	assert.True(t, snap.Stoch.Valid)
	assert.True(t, snap.MACD.Valid)
	require.True(t, snap.Bands.Valid)
	assert.Greater(t, snap.Bands.Upper, snap.Bands.Lower)
}

func TestComputeCacheInvariantUnderReordering(t *testing.T) {
	broker := newFakeBroker()
	e := NewEngine(broker, testOptions())
	e.SetRetryPolicy(fastPolicy())

	_, err := e.Compute(context.Background(), []string{"B-OTC", "A-OTC"}, 1)
	require.NoError(t, err)
	fetched := broker.calls()
	require.Equal(t, 2, fetched)

	// 重排后的同一批次应命中缓存，零新抓取。
	_, err = e.Compute(context.Background(), []string{"A-OTC", "B-OTC"}, 1)
	require.NoError(t, err)
	assert.Equal(t, fetched, broker.calls())
}

func TestComputeRetriesTransientFetch(t *testing.T) {
	broker := newFakeBroker()
	broker.failures["GBPUSD-OTC"] = 2
	e := NewEngine(broker, testOptions())
	e.SetRetryPolicy(fastPolicy())

	got, err := e.Compute(context.Background(), []string{"GBPUSD-OTC"}, 1)
	require.NoError(t, err)
	_, ok := got["GBPUSD-OTC"]
	assert.True(t, ok, "瞬时错误重试后应拿到快照")
	assert.Equal(t, 3, broker.calls())
}

func TestComputeSkipsInstrumentOnFatalError(t *testing.T) {
	broker := newFakeBroker()
	broker.fatal["BAD-OTC"] = errors.New("instrument is not tradable")
	e := NewEngine(broker, testOptions())
	e.SetRetryPolicy(fastPolicy())

	got, err := e.Compute(context.Background(), []string{"BAD-OTC", "OK-OTC"}, 1)
	require.NoError(t, err, "单品种失败不应拖垮整批")
	_, bad := got["BAD-OTC"]
	assert.False(t, bad)
	_, ok := got["OK-OTC"]
	assert.True(t, ok)
	// 不可重试错误只打一次。
	assert.Equal(t, 2, broker.calls())
}

func TestComputeSkipsShortHistory(t *testing.T) {
	broker := newFakeBroker()
	broker.short["THIN-OTC"] = 20 // 低于最长回看周期
	e := NewEngine(broker, testOptions())
	e.SetRetryPolicy(fastPolicy())

	got, err := e.Compute(context.Background(), []string{"THIN-OTC"}, 1)
	require.NoError(t, err)
	_, ok := got["THIN-OTC"]
	assert.False(t, ok)
}

func TestComputeSingleFlightDeduplicates(t *testing.T) {
	broker := newFakeBroker()
	e := NewEngine(broker, testOptions())
	e.SetRetryPolicy(fastPolicy())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Compute(context.Background(), []string{"EURUSD-OTC"}, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, broker.calls(), "并发同键请求应被合并为一次上游抓取")
}

func TestHistorySizeFloor(t *testing.T) {
	e := NewEngine(newFakeBroker(), testOptions())
	// 1 分钟 × 50 × 3 = 150，低于下限 1800。
	assert.Equal(t, 1800, e.HistorySize(1))
	// 15 分钟 × 50 × 3 = 2250，超过下限。
	assert.Equal(t, 2250, e.HistorySize(15))
}

func TestBatchKeySorted(t *testing.T) {
	assert.Equal(t, BatchKey([]string{"b", "a"}, 5), BatchKey([]string{"a", "b"}, 5))
	assert.NotEqual(t, BatchKey([]string{"a"}, 5), BatchKey([]string{"a"}, 1))
}
