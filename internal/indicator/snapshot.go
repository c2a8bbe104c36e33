package indicator

import "math"

// Value 是单值指标结果；Valid=false 表示 unavailable，
// 下游一律按“无法决策”处理，不得退化成 0。
type Value struct {
	Val   float64
	Valid bool
}

func scalar(v float64) Value {
	if !isFinite(v) {
		return Value{}
	}
	return Value{Val: v, Valid: true}
}

// boundedScalar 额外校验接受区间，越界按 unavailable。
func boundedScalar(v, min, max float64) Value {
	if !isFinite(v) || v < min || v > max {
		return Value{}
	}
	return Value{Val: v, Valid: true}
}

// StochValue 是随机指标的 %K/%D 对，仅当两个子值均有限时有效。
type StochValue struct {
	K, D  float64
	Valid bool
}

// MACDValue 是 MACD 线与信号线对。
type MACDValue struct {
	MACD, Signal float64
	Valid        bool
}

// BandsValue 是布林带上下轨。
type BandsValue struct {
	Upper, Lower float64
	Valid        bool
}

// Snapshot 是单个品种在一次计算中的全部指标值。
// 缺席的品种在批次结果里没有键；缺席的指标以 Valid=false 表达。
type Snapshot struct {
	RSI   Value
	SMA   Value
	EMA   Value
	Stoch StochValue
	MACD  MACDValue
	Bands BandsValue
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
