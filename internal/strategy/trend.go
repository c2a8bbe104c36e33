package strategy

import "optiq/internal/indicator"

// Trend 是顺势策略：RSI、随机指标、SMA 与布林带同向共振时入场；
// 启用 MACD 时额外要求 MACD 线与信号线的相对位置确认方向。
type Trend struct {
	src         ThresholdSource
	macdEnabled bool
}

func (t *Trend) Name() string { return "trend" }

func (t *Trend) Evaluate(snap indicator.Snapshot, price float64) Signal {
	if !snap.RSI.Valid || !snap.SMA.Valid || !snap.Stoch.Valid || !snap.Bands.Valid {
		return SignalNone
	}
	if t.macdEnabled && !snap.MACD.Valid {
		return SignalNone
	}
	th := t.src.Thresholds()

	macdUp := !t.macdEnabled || snap.MACD.MACD > snap.MACD.Signal
	macdDown := !t.macdEnabled || snap.MACD.MACD < snap.MACD.Signal

	// 做多：超卖 + 价格未跌穿 SMA 的 1% 容忍带 + 仍在下轨上方。
	if snap.RSI.Val < th.RSIBuy && snap.Stoch.K < th.StochBuy &&
		price >= snap.SMA.Val*0.99 && price > snap.Bands.Lower && macdUp {
		return SignalCall
	}
	// 做空：超买 + 仍在上轨下方。
	if snap.RSI.Val > th.RSISell && snap.Stoch.K > th.StochSell &&
		price < snap.Bands.Upper && macdDown {
		return SignalPut
	}
	return SignalNone
}
