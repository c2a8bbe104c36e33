package livehttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"optiq/internal/audit"
	"optiq/internal/logger"
	"optiq/internal/trading"
)

// StateProvider 暴露交易状态机的只读快照。
type StateProvider interface {
	Snapshot() trading.Snapshot
}

// Server 提供最小化的运维 JSON 接口：健康检查、状态快照与
// 最近决策查询。纯 JSON，没有页面。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述运维服务依赖。
type ServerConfig struct {
	Addr  string
	State StateProvider
	Logs  *audit.Store
}

// NewServer 构建运维 HTTP 服务。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.State == nil {
		return nil, errors.New("live http server requires trading state")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "log_level": logger.Level()})
	})

	api := router.Group("/api/live")
	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, cfg.State.Snapshot())
	})
	api.GET("/decisions", func(c *gin.Context) {
		if cfg.Logs == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision log disabled"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		rows, err := cfg.Logs.Recent(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"decisions": rows})
	})

	return &Server{addr: cfg.Addr, router: router}, nil
}

// requestLogger 记录接口调用，便于追踪人工操作。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动服务并阻塞到 context 取消，取消时优雅收尾。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler 暴露底层路由，仅测试使用。
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}
