package config

// 默认值常量
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9992"
	defaultAppLogPath  = "data/logs/optiq.log"

	defaultBrokerMode    = "paper"
	defaultOTCTimeout    = 15
	defaultPaperBalance  = 10000
	defaultPaperPayout   = 80
	defaultPaperREST     = "https://api.binance.com"
	defaultPaperSuffix   = "USDT"

	defaultTimeframeMinutes = 1
	defaultDurationSeconds  = 60
	defaultCooldownSeconds  = 60
	defaultPercentage       = 1.0
	defaultPercentageMin    = 0.3
	defaultPercentageMax    = 5.0
	defaultDailyLossLimit   = 10.0
	defaultLossThreshold    = 2
	defaultWinThreshold     = 3
	defaultIndicatorTimeout = 120

	defaultStrategy       = "trend"
	defaultPresetsPath    = "configs/strategies.yaml"
	defaultRSIBuy         = 30
	defaultRSISell        = 70
	defaultStochBuy       = 20
	defaultStochSell      = 80

	defaultRSIPeriod    = 14
	defaultSMAPeriod    = 50
	defaultEMAPeriod    = 21
	defaultStochKPeriod = 14
	defaultStochDPeriod = 3
	defaultMACDFast     = 12
	defaultMACDSlow     = 26
	defaultMACDSignal   = 9

	defaultMinPayout = 70.0
	defaultSortBy    = "payout"
	defaultSortOrder = "desc"

	defaultAuditCSV = "data/signals_log.csv"
	defaultAuditDB  = "data/db/decisions.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Broker.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Signal.applyDefaults(keys)
	c.applyIndicatorDefaults(keys)
	c.Assets.applyDefaults(keys)
	c.Audit.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (b *BrokerConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("broker.mode", &b.Mode, defaultBrokerMode),
		intFieldDefault("broker.otc.timeout_seconds", &b.OTC.TimeoutSeconds, defaultOTCTimeout),
		floatFieldDefault("broker.paper.initial_balance", &b.Paper.InitialBalance, defaultPaperBalance),
		floatFieldDefault("broker.paper.payout_percent", &b.Paper.PayoutPercent, defaultPaperPayout),
		stringFieldDefault("broker.paper.rest_base_url", &b.Paper.RESTBaseURL, defaultPaperREST),
		stringFieldDefault("broker.paper.symbol_suffix", &b.Paper.SymbolSuffix, defaultPaperSuffix),
		fieldDefault{
			key:   "broker.paper.instruments",
			need:  func() bool { return len(b.Paper.Instruments) == 0 },
			apply: func() { b.Paper.Instruments = []string{"BTCUSD-OTC", "ETHUSD-OTC", "SOLUSD-OTC"} },
		},
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("trading.enabled", &t.Enabled, true),
		intFieldDefault("trading.timeframe_minutes", &t.TimeframeMinutes, defaultTimeframeMinutes),
		intFieldDefault("trading.duration_seconds", &t.DurationSeconds, defaultDurationSeconds),
		intFieldDefault("trading.cooldown_seconds", &t.CooldownSeconds, defaultCooldownSeconds),
		floatFieldDefault("trading.percentage", &t.Percentage, defaultPercentage),
		floatFieldDefault("trading.percentage_min", &t.PercentageMin, defaultPercentageMin),
		floatFieldDefault("trading.percentage_max", &t.PercentageMax, defaultPercentageMax),
		floatFieldDefault("trading.daily_loss_limit_percent", &t.DailyLossLimitPercent, defaultDailyLossLimit),
		intFieldDefault("trading.consecutive_loss_threshold", &t.ConsecutiveLossThreshold, defaultLossThreshold),
		intFieldDefault("trading.consecutive_win_threshold", &t.ConsecutiveWinThreshold, defaultWinThreshold),
		intFieldDefault("trading.indicator_timeout_seconds", &t.IndicatorTimeoutSeconds, defaultIndicatorTimeout),
	)
}

func (s *SignalConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("signal.strategy", &s.Strategy, defaultStrategy),
		stringFieldDefault("signal.presets_path", &s.PresetsPath, defaultPresetsPath),
		floatFieldDefault("signal.rsi_buy_threshold", &s.RSIBuyThreshold, defaultRSIBuy),
		floatFieldDefault("signal.rsi_sell_threshold", &s.RSISellThreshold, defaultRSISell),
		floatFieldDefault("signal.stochastic_buy_threshold", &s.StochBuyThreshold, defaultStochBuy),
		floatFieldDefault("signal.stochastic_sell_threshold", &s.StochSellThreshold, defaultStochSell),
	)
}

func (c *Config) applyIndicatorDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("rsi.enabled", &c.RSI.Enabled, true),
		intFieldDefault("rsi.period", &c.RSI.Period, defaultRSIPeriod),
		floatFieldDefault("rsi.min", &c.RSI.Min, 0),
		floatFieldDefault("rsi.max", &c.RSI.Max, 100),
		boolFieldDefault("sma.enabled", &c.SMA.Enabled, true),
		intFieldDefault("sma.period", &c.SMA.Period, defaultSMAPeriod),
		floatFieldDefault("sma.min", &c.SMA.Min, 0),
		floatFieldDefault("sma.max", &c.SMA.Max, 1e9),
		boolFieldDefault("ema.enabled", &c.EMA.Enabled, true),
		intFieldDefault("ema.period", &c.EMA.Period, defaultEMAPeriod),
		floatFieldDefault("ema.min", &c.EMA.Min, 0),
		floatFieldDefault("ema.max", &c.EMA.Max, 1e9),
		boolFieldDefault("stochastic.enabled", &c.Stoch.Enabled, true),
		intFieldDefault("stochastic.k_period", &c.Stoch.KPeriod, defaultStochKPeriod),
		intFieldDefault("stochastic.d_period", &c.Stoch.DPeriod, defaultStochDPeriod),
		boolFieldDefault("macd.enabled", &c.MACD.Enabled, true),
		intFieldDefault("macd.fast_period", &c.MACD.FastPeriod, defaultMACDFast),
		intFieldDefault("macd.slow_period", &c.MACD.SlowPeriod, defaultMACDSlow),
		intFieldDefault("macd.signal_period", &c.MACD.SignalPeriod, defaultMACDSignal),
	)
}

func (a *AssetsConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("assets.min_payout", &a.MinPayout, defaultMinPayout),
		stringFieldDefault("assets.sort_by", &a.SortBy, defaultSortBy),
		stringFieldDefault("assets.sort_order", &a.SortOrder, defaultSortOrder),
	)
}

func (a *AuditConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("audit.csv_path", &a.CSVPath, defaultAuditCSV),
		stringFieldDefault("audit.db_path", &a.DBPath, defaultAuditDB),
	)
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == "" },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == 0 },
		apply: func() { *target = def },
	}
}
