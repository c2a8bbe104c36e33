package config

import "time"

// Config 是 optiq 的主配置载体。
type Config struct {
	App     AppConfig     `toml:"app"`
	Broker  BrokerConfig  `toml:"broker"`
	Trading TradingConfig `toml:"trading"`
	Signal  SignalConfig  `toml:"signal"`
	RSI     ScalarConfig  `toml:"rsi"`
	SMA     ScalarConfig  `toml:"sma"`
	EMA     ScalarConfig  `toml:"ema"`
	Stoch   StochConfig   `toml:"stochastic"`
	MACD    MACDConfig    `toml:"macd"`
	Assets  AssetsConfig  `toml:"assets"`
	Audit   AuditConfig   `toml:"audit"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// BrokerConfig 选择会话后端：otc（实盘会话）或 paper（模拟盘）。
type BrokerConfig struct {
	Mode  string      `toml:"mode"`
	OTC   OTCConfig   `toml:"otc"`
	Paper PaperConfig `toml:"paper"`
}

type OTCConfig struct {
	BaseURL        string `toml:"base_url"`
	Email          string `toml:"email"`
	Password       string `toml:"password"`
	Demo           bool   `toml:"demo"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type PaperConfig struct {
	InitialBalance float64  `toml:"initial_balance"`
	PayoutPercent  float64  `toml:"payout_percent"`
	RESTBaseURL    string   `toml:"rest_base_url"`
	SymbolSuffix   string   `toml:"symbol_suffix"` // 替换品种名尾部 USD-OTC 的现货报价后缀
	Instruments    []string `toml:"instruments"`   // 模拟盘对外暴露的 OTC 品种名
}

// TradingConfig 控制下单节奏与风险预算。
type TradingConfig struct {
	Enabled                  bool    `toml:"enabled"`
	TimeframeMinutes         int     `toml:"timeframe_minutes"`
	DurationSeconds          int     `toml:"duration_seconds"`
	CooldownSeconds          int     `toml:"cooldown_seconds"`
	Percentage               float64 `toml:"percentage"`
	PercentageMin            float64 `toml:"percentage_min"`
	PercentageMax            float64 `toml:"percentage_max"`
	DailyLossLimitPercent    float64 `toml:"daily_loss_limit_percent"`
	ConsecutiveLossThreshold int     `toml:"consecutive_loss_threshold"`
	ConsecutiveWinThreshold  int     `toml:"consecutive_win_threshold"`
	IndicatorTimeoutSeconds  int     `toml:"indicator_timeout_seconds"`
}

func (t TradingConfig) Cooldown() time.Duration {
	return time.Duration(t.CooldownSeconds) * time.Second
}

func (t TradingConfig) IndicatorTimeout() time.Duration {
	return time.Duration(t.IndicatorTimeoutSeconds) * time.Second
}

// SignalConfig 选择策略并给出阈值；presets_path 指向可热更的阈值预设文件。
type SignalConfig struct {
	Strategy           string  `toml:"strategy"`
	PresetsPath        string  `toml:"presets_path"`
	RSIBuyThreshold    float64 `toml:"rsi_buy_threshold"`
	RSISellThreshold   float64 `toml:"rsi_sell_threshold"`
	StochBuyThreshold  float64 `toml:"stochastic_buy_threshold"`
	StochSellThreshold float64 `toml:"stochastic_sell_threshold"`
}

// ScalarConfig 描述单值指标：计算结果落在 [min,max] 之外时按 unavailable 处理。
type ScalarConfig struct {
	Enabled bool    `toml:"enabled"`
	Period  int     `toml:"period"`
	Min     float64 `toml:"min"`
	Max     float64 `toml:"max"`
}

type StochConfig struct {
	Enabled bool `toml:"enabled"`
	KPeriod int  `toml:"k_period"`
	DPeriod int  `toml:"d_period"`
}

type MACDConfig struct {
	Enabled      bool `toml:"enabled"`
	FastPeriod   int  `toml:"fast_period"`
	SlowPeriod   int  `toml:"slow_period"`
	SignalPeriod int  `toml:"signal_period"`
}

// AssetsConfig 控制 OTC 品种发现与排序。
type AssetsConfig struct {
	MinPayout float64  `toml:"min_payout"`
	Whitelist []string `toml:"whitelist"`
	SortBy    string   `toml:"sort_by"`    // payout | price
	SortOrder string   `toml:"sort_order"` // asc | desc
}

type AuditConfig struct {
	CSVPath string `toml:"csv_path"`
	DBPath  string `toml:"db_path"`
}
