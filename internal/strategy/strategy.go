package strategy

import (
	"fmt"
	"strings"

	"optiq/internal/indicator"
)

// Signal 是策略输出：做多（call）、做空（put）或放弃。
type Signal string

const (
	SignalCall Signal = "call"
	SignalPut  Signal = "put"
	SignalNone Signal = "none"
)

// Thresholds 是策略判定阈值，可由预设文件热更。
type Thresholds struct {
	RSIBuy    float64 `toml:"rsi_buy_threshold" yaml:"rsi_buy_threshold"`
	RSISell   float64 `toml:"rsi_sell_threshold" yaml:"rsi_sell_threshold"`
	StochBuy  float64 `toml:"stochastic_buy_threshold" yaml:"stochastic_buy_threshold"`
	StochSell float64 `toml:"stochastic_sell_threshold" yaml:"stochastic_sell_threshold"`
}

// ThresholdSource 提供当前生效的阈值快照。
type ThresholdSource interface {
	Thresholds() Thresholds
}

// Static 是固定阈值源，配置文件直出、无热更时使用。
type Static Thresholds

func (s Static) Thresholds() Thresholds { return Thresholds(s) }

// Strategy 把指标快照 + 现价映射为方向信号。实现必须无副作用：
// 任一必需指标 unavailable 时输出 SignalNone。
type Strategy interface {
	Name() string
	Evaluate(snap indicator.Snapshot, price float64) Signal
}

// Resolve 按名称构造策略。名称集合封闭，未知名称在启动期报错，
// 决策循环内永远不会遇到未知策略。
func Resolve(name string, src ThresholdSource, macdEnabled bool) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trend":
		return &Trend{src: src, macdEnabled: macdEnabled}, nil
	case "reversal":
		return Reversal{}, nil
	case "breakout":
		return Breakout{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
