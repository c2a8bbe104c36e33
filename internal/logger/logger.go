// Package logger 是 slog 的薄封装：进程内唯一一份输出目标与级别，
// 决策循环里的表格输出走 InfoBlock 逐行打印。
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"log/slog"
)

var (
	levelVar slog.LevelVar
	active   atomic.Pointer[slog.Logger]
)

func init() {
	levelVar.Set(slog.LevelInfo)
	active.Store(build(os.Stdout))
}

func build(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar}))
}

// SetOutput 重定向日志输出（例如 stdout + 文件的 MultiWriter）。
func SetOutput(w io.Writer) {
	active.Store(build(w))
}

// SetLevel 解析 debug/info/warn/error 并即时生效；
// 未知值回落到 info 并记一条警告，方便发现配置笔误。
func SetLevel(level string) {
	parsed, ok := parseLevel(level)
	if !ok {
		levelVar.Set(slog.LevelInfo)
		Warnf("logger: 未知日志级别 %q，回落到 info", level)
		return
	}
	levelVar.Set(parsed)
}

// Level 返回当前生效的级别名，供状态接口上报。
func Level() string {
	switch levelVar.Level() {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

func current() *slog.Logger {
	if l := active.Load(); l != nil {
		return l
	}
	l := build(os.Stdout)
	active.Store(l)
	return l
}

func Debugf(format string, v ...any) {
	current().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	current().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	current().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	current().Error(fmt.Sprintf(format, v...))
}

// InfoBlock 将多行文本逐行打到 info 级别，保持表格列对齐。
func InfoBlock(block string) {
	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		if line == "" {
			continue
		}
		Infof("%s", line)
	}
}
