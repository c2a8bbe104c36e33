package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"optiq/internal/config"
	"optiq/internal/logger"
	livehttp "optiq/internal/transport/http/live"
)

// App 负责应用级编排：加载配置 → 初始化依赖 → 启动决策循环与
// 运维接口。
type App struct {
	cfg      *config.Config
	live     *LiveService
	liveHTTP *livehttp.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动决策循环与运维服务，任一退出即整体收尾。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.live == nil {
		return fmt.Errorf("live service not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(ctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer a.live.Close()
		return a.live.Run(ctx)
	})

	return group.Wait()
}

// LiveService 暴露底层决策服务实例（测试/回放使用）。
func (a *App) LiveService() *LiveService {
	if a == nil {
		return nil
	}
	return a.live
}
