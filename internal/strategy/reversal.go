package strategy

import "optiq/internal/indicator"

// Reversal 抓双指标极值反转。阈值固定在 20/80，
// 不随配置阈值变化。
type Reversal struct{}

func (Reversal) Name() string { return "reversal" }

func (Reversal) Evaluate(snap indicator.Snapshot, _ float64) Signal {
	if !snap.RSI.Valid || !snap.Stoch.Valid {
		return SignalNone
	}
	if snap.RSI.Val <= 20 && snap.Stoch.K <= 20 {
		return SignalCall
	}
	if snap.RSI.Val >= 80 && snap.Stoch.K >= 80 {
		return SignalPut
	}
	return SignalNone
}
