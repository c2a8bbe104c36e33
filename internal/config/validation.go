package config

import (
	"fmt"
	"strings"
)

var knownStrategies = map[string]bool{
	"trend":    true,
	"reversal": true,
	"breakout": true,
}

// validate 对配置进行基础校验。策略名在启动期收敛为封闭集合，
// 运行中的每轮决策不再处理未知策略。
func validate(c *Config) error {
	if err := c.Broker.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Signal.validate(); err != nil {
		return err
	}
	if err := c.validateIndicators(); err != nil {
		return err
	}
	return c.Assets.validate()
}

func (b *BrokerConfig) validate() error {
	mode := strings.ToLower(strings.TrimSpace(b.Mode))
	switch mode {
	case "otc":
		if strings.TrimSpace(b.OTC.BaseURL) == "" {
			return fmt.Errorf("broker.otc.base_url is required in otc mode")
		}
		if strings.TrimSpace(b.OTC.Email) == "" || strings.TrimSpace(b.OTC.Password) == "" {
			return fmt.Errorf("broker.otc requires email and password")
		}
	case "paper":
		if b.Paper.InitialBalance <= 0 {
			return fmt.Errorf("broker.paper.initial_balance must be > 0")
		}
		if b.Paper.PayoutPercent <= 0 || b.Paper.PayoutPercent > 100 {
			return fmt.Errorf("broker.paper.payout_percent must be in (0,100]")
		}
	default:
		return fmt.Errorf("broker.mode must be otc or paper, got %q", b.Mode)
	}
	b.Mode = mode
	return nil
}

func (t *TradingConfig) validate() error {
	if t.TimeframeMinutes <= 0 {
		return fmt.Errorf("trading.timeframe_minutes must be > 0")
	}
	if t.DurationSeconds <= 0 {
		return fmt.Errorf("trading.duration_seconds must be > 0")
	}
	// 冷却时间同时充当决策循环的周期，0 会让循环直接退出。
	if t.CooldownSeconds < 1 {
		return fmt.Errorf("trading.cooldown_seconds must be >= 1")
	}
	if t.PercentageMin <= 0 || t.Percentage < t.PercentageMin || t.PercentageMax < t.Percentage {
		return fmt.Errorf("trading percentages must satisfy 0 < min <= base <= max (min=%.2f base=%.2f max=%.2f)",
			t.PercentageMin, t.Percentage, t.PercentageMax)
	}
	if t.DailyLossLimitPercent <= 0 || t.DailyLossLimitPercent > 100 {
		return fmt.Errorf("trading.daily_loss_limit_percent must be in (0,100]")
	}
	if t.ConsecutiveLossThreshold < 1 || t.ConsecutiveWinThreshold < 1 {
		return fmt.Errorf("trading streak thresholds must be >= 1")
	}
	return nil
}

func (s *SignalConfig) validate() error {
	name := strings.ToLower(strings.TrimSpace(s.Strategy))
	if !knownStrategies[name] {
		return fmt.Errorf("signal.strategy %q unknown (expected trend/reversal/breakout)", s.Strategy)
	}
	s.Strategy = name
	for _, th := range []struct {
		key string
		val float64
	}{
		{"signal.rsi_buy_threshold", s.RSIBuyThreshold},
		{"signal.rsi_sell_threshold", s.RSISellThreshold},
		{"signal.stochastic_buy_threshold", s.StochBuyThreshold},
		{"signal.stochastic_sell_threshold", s.StochSellThreshold},
	} {
		if th.val < 0 || th.val > 100 {
			return fmt.Errorf("%s must be in [0,100]", th.key)
		}
	}
	return nil
}

func (c *Config) validateIndicators() error {
	for _, ind := range []struct {
		name    string
		enabled bool
		period  int
	}{
		{"rsi", c.RSI.Enabled, c.RSI.Period},
		{"sma", c.SMA.Enabled, c.SMA.Period},
		{"ema", c.EMA.Enabled, c.EMA.Period},
		{"stochastic", c.Stoch.Enabled, c.Stoch.KPeriod},
		{"macd", c.MACD.Enabled, c.MACD.SlowPeriod},
	} {
		if ind.enabled && ind.period <= 0 {
			return fmt.Errorf("%s.period must be > 0 when enabled", ind.name)
		}
	}
	if c.MACD.Enabled && c.MACD.FastPeriod >= c.MACD.SlowPeriod {
		return fmt.Errorf("macd.fast_period must be < macd.slow_period")
	}
	return nil
}

func (a *AssetsConfig) validate() error {
	sortBy := strings.ToLower(strings.TrimSpace(a.SortBy))
	if sortBy != "payout" && sortBy != "price" {
		return fmt.Errorf("assets.sort_by must be payout or price")
	}
	order := strings.ToLower(strings.TrimSpace(a.SortOrder))
	if order != "asc" && order != "desc" {
		return fmt.Errorf("assets.sort_order must be asc or desc")
	}
	if a.MinPayout < 0 || a.MinPayout > 100 {
		return fmt.Errorf("assets.min_payout must be in [0,100]")
	}
	a.SortBy = sortBy
	a.SortOrder = order
	return nil
}
