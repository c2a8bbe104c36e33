package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optiq/internal/indicator"
)

func defaultThresholds() Static {
	return Static{RSIBuy: 30, RSISell: 70, StochBuy: 20, StochSell: 80}
}

func trendSnapshot() indicator.Snapshot {
	return indicator.Snapshot{
		RSI:   indicator.Value{Val: 25, Valid: true},
		SMA:   indicator.Value{Val: 100, Valid: true},
		Stoch: indicator.StochValue{K: 15, D: 20, Valid: true},
		Bands: indicator.BandsValue{Upper: 105, Lower: 95, Valid: true},
	}
}

func TestTrendBuySignal(t *testing.T) {
	s, err := Resolve("trend", defaultThresholds(), false)
	require.NoError(t, err)
	assert.Equal(t, SignalCall, s.Evaluate(trendSnapshot(), 101))
}

func TestTrendRejectsPriceAtLowerBand(t *testing.T) {
	s, err := Resolve("trend", defaultThresholds(), false)
	require.NoError(t, err)
	// 94 < 下轨 95：price > bb_lower 不成立。
	assert.Equal(t, SignalNone, s.Evaluate(trendSnapshot(), 94))
}

func TestTrendSellSignal(t *testing.T) {
	snap := trendSnapshot()
	snap.RSI.Val = 78
	snap.Stoch.K = 88
	s, err := Resolve("trend", defaultThresholds(), false)
	require.NoError(t, err)
	assert.Equal(t, SignalPut, s.Evaluate(snap, 101))
}

func TestTrendRequiresMACDWhenEnabled(t *testing.T) {
	s, err := Resolve("trend", defaultThresholds(), true)
	require.NoError(t, err)

	snap := trendSnapshot()
	assert.Equal(t, SignalNone, s.Evaluate(snap, 101), "MACD 启用却不可用时不给信号")

	snap.MACD = indicator.MACDValue{MACD: 0.5, Signal: 0.2, Valid: true}
	assert.Equal(t, SignalCall, s.Evaluate(snap, 101))

	snap.MACD = indicator.MACDValue{MACD: 0.1, Signal: 0.2, Valid: true}
	assert.Equal(t, SignalNone, s.Evaluate(snap, 101), "MACD 向下时拦住做多")
}

func TestTrendUnavailableIndicatorMeansNoSignal(t *testing.T) {
	s, err := Resolve("trend", defaultThresholds(), false)
	require.NoError(t, err)
	snap := trendSnapshot()
	snap.RSI = indicator.Value{}
	assert.Equal(t, SignalNone, s.Evaluate(snap, 101))
}

func TestReversalFixedExtremes(t *testing.T) {
	s, err := Resolve("reversal", defaultThresholds(), false)
	require.NoError(t, err)

	snap := indicator.Snapshot{
		RSI:   indicator.Value{Val: 18, Valid: true},
		Stoch: indicator.StochValue{K: 12, D: 15, Valid: true},
	}
	assert.Equal(t, SignalCall, s.Evaluate(snap, 1))

	snap.RSI.Val = 85
	snap.Stoch.K = 90
	assert.Equal(t, SignalPut, s.Evaluate(snap, 1))

	// 边界取等号。
	snap.RSI.Val = 80
	snap.Stoch.K = 80
	assert.Equal(t, SignalPut, s.Evaluate(snap, 1))

	snap.RSI.Val = 50
	assert.Equal(t, SignalNone, s.Evaluate(snap, 1))
}

func TestBreakout(t *testing.T) {
	s, err := Resolve("breakout", defaultThresholds(), false)
	require.NoError(t, err)

	snap := indicator.Snapshot{
		SMA: indicator.Value{Val: 100, Valid: true},
		EMA: indicator.Value{Val: 102, Valid: true},
	}
	assert.Equal(t, SignalCall, s.Evaluate(snap, 103))
	assert.Equal(t, SignalPut, s.Evaluate(snap, 99))
	assert.Equal(t, SignalNone, s.Evaluate(snap, 101), "夹在两均线之间不入场")
}

func TestResolveUnknownStrategy(t *testing.T) {
	_, err := Resolve("martingale", defaultThresholds(), false)
	require.Error(t, err)
}
