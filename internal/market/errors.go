package market

import (
	"context"
	"errors"
	"net"
)

// ErrPriceUnavailable 表示实时价暂不可得，调用方应跳过该品种。
var ErrPriceUnavailable = errors.New("realtime price unavailable")

// TransientError 标记可重试的抓取失败（超时、断连、取消）。
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return "transient market error"
	}
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient 包装一个错误为可重试错误。
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient 判断错误是否应进入重试路径。除显式包装外，
// 网络超时与 context 取消/超时也按瞬时处理（重试由上层限次）。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
