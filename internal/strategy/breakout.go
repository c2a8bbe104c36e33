package strategy

import "optiq/internal/indicator"

// Breakout 以价格同时突破 SMA 与 EMA 作为入场条件。
type Breakout struct{}

func (Breakout) Name() string { return "breakout" }

func (Breakout) Evaluate(snap indicator.Snapshot, price float64) Signal {
	if !snap.SMA.Valid || !snap.EMA.Valid {
		return SignalNone
	}
	if price > snap.SMA.Val && price > snap.EMA.Val {
		return SignalCall
	}
	if price < snap.SMA.Val && price < snap.EMA.Val {
		return SignalPut
	}
	return SignalNone
}
