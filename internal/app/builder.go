package app

import (
	"context"
	"fmt"

	"optiq/internal/assets"
	"optiq/internal/audit"
	"optiq/internal/config"
	binancesrc "optiq/internal/gateway/binance"
	"optiq/internal/gateway/otc"
	"optiq/internal/gateway/paper"
	"optiq/internal/indicator"
	"optiq/internal/logger"
	"optiq/internal/market"
	"optiq/internal/strategy"
	"optiq/internal/trading"
	livehttp "optiq/internal/transport/http/live"
)

// AppBuilder 把配置装配成可运行的 App。各依赖按 broker →
// 指标引擎 → 策略 → 状态机 → 审计 → 服务的顺序构建。
type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// Build 完成全部装配。审计通道构建失败只降级告警，其余依赖
// 失败直接返回错误。
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	broker, connector, err := b.buildBroker()
	if err != nil {
		return nil, err
	}

	engine := indicator.NewEngine(broker, indicatorOptions(cfg))

	src, presets, err := b.buildThresholdSource()
	if err != nil {
		return nil, err
	}
	strat, err := strategy.Resolve(cfg.Signal.Strategy, src, cfg.MACD.Enabled)
	if err != nil {
		return nil, err
	}

	state := trading.NewState(trading.Limits{
		BasePercentage:        cfg.Trading.Percentage,
		MinPercentage:         cfg.Trading.PercentageMin,
		MaxPercentage:         cfg.Trading.PercentageMax,
		DailyLossLimitPercent: cfg.Trading.DailyLossLimitPercent,
		LossStreakThreshold:   cfg.Trading.ConsecutiveLossThreshold,
		WinStreakThreshold:    cfg.Trading.ConsecutiveWinThreshold,
	})

	sink, store := b.buildAudit()

	executor := trading.NewExecutor(broker, engine, strat, state, sink, trading.ExecutorConfig{
		Enabled:          cfg.Trading.Enabled,
		TimeframeMinutes: cfg.Trading.TimeframeMinutes,
		DurationSeconds:  cfg.Trading.DurationSeconds,
		Cooldown:         cfg.Trading.Cooldown(),
	})

	discovery := assets.NewDiscovery(broker, assets.Options{
		MinPayout: cfg.Assets.MinPayout,
		Whitelist: cfg.Assets.Whitelist,
		SortBy:    cfg.Assets.SortBy,
		SortOrder: cfg.Assets.SortOrder,
	})

	liveHTTP, err := livehttp.NewServer(livehttp.ServerConfig{
		Addr:  cfg.App.HTTPAddr,
		State: state,
		Logs:  store,
	})
	if err != nil {
		return nil, err
	}

	live := &LiveService{
		cfg:       cfg,
		broker:    broker,
		connector: connector,
		engine:    engine,
		executor:  executor,
		discovery: discovery,
		presets:   presets,
		store:     store,
	}

	return &App{cfg: cfg, live: live, liveHTTP: liveHTTP}, nil
}

// brokerConnector 是需要显式建会话的 broker（实盘 otc 网关）。
type brokerConnector interface {
	Connect(ctx context.Context) error
}

func (b *AppBuilder) buildBroker() (market.Broker, brokerConnector, error) {
	cfg := b.cfg
	switch cfg.Broker.Mode {
	case "otc":
		client, err := otc.NewClient(cfg.Broker.OTC)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	case "paper":
		source := binancesrc.New(cfg.Broker.Paper.RESTBaseURL, cfg.Broker.Paper.SymbolSuffix)
		return paper.New(source, cfg.Broker.Paper), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown broker mode %q", cfg.Broker.Mode)
	}
}

// buildThresholdSource 优先挂接可热更的预设文件，失败时降级为
// 主配置的静态阈值。
func (b *AppBuilder) buildThresholdSource() (strategy.ThresholdSource, *strategy.Registry, error) {
	cfg := b.cfg
	fallback := strategy.Thresholds{
		RSIBuy:    cfg.Signal.RSIBuyThreshold,
		RSISell:   cfg.Signal.RSISellThreshold,
		StochBuy:  cfg.Signal.StochBuyThreshold,
		StochSell: cfg.Signal.StochSellThreshold,
	}
	if cfg.Signal.PresetsPath == "" {
		return strategy.Static(fallback), nil, nil
	}
	registry, err := strategy.NewRegistry(cfg.Signal.PresetsPath, fallback)
	if err != nil {
		logger.Warnf("app: 策略预设加载失败，回退静态阈值: %v", err)
		return strategy.Static(fallback), nil, nil
	}
	return registry, registry, nil
}

func (b *AppBuilder) buildAudit() (trading.AuditSink, *audit.Store) {
	cfg := b.cfg
	var csvLog *audit.CSVLog
	if cfg.Audit.CSVPath != "" {
		l, err := audit.NewCSVLog(cfg.Audit.CSVPath)
		if err != nil {
			logger.Warnf("app: 审计 CSV 初始化失败: %v", err)
		} else {
			csvLog = l
		}
	}
	var store *audit.Store
	if cfg.Audit.DBPath != "" {
		s, err := audit.NewStore(cfg.Audit.DBPath)
		if err != nil {
			logger.Warnf("app: 审计数据库初始化失败: %v", err)
		} else {
			store = s
		}
	}
	return audit.NewRecorder(csvLog, store), store
}

func indicatorOptions(cfg *config.Config) indicator.Options {
	return indicator.Options{
		RSI: indicator.ScalarSpec{
			Enabled: cfg.RSI.Enabled, Period: cfg.RSI.Period,
			Min: cfg.RSI.Min, Max: cfg.RSI.Max,
		},
		SMA: indicator.ScalarSpec{
			Enabled: cfg.SMA.Enabled, Period: cfg.SMA.Period,
			Min: cfg.SMA.Min, Max: cfg.SMA.Max,
		},
		EMA: indicator.ScalarSpec{
			Enabled: cfg.EMA.Enabled, Period: cfg.EMA.Period,
			Min: cfg.EMA.Min, Max: cfg.EMA.Max,
		},
		Stoch: indicator.StochSpec{
			Enabled: cfg.Stoch.Enabled,
			KPeriod: cfg.Stoch.KPeriod,
			DPeriod: cfg.Stoch.DPeriod,
		},
		MACD: indicator.MACDSpec{
			Enabled:      cfg.MACD.Enabled,
			FastPeriod:   cfg.MACD.FastPeriod,
			SlowPeriod:   cfg.MACD.SlowPeriod,
			SignalPeriod: cfg.MACD.SignalPeriod,
		},
	}
}
