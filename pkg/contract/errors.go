package contract

import (
	"errors"
	"fmt"
)

// 最小错误分类（用于上层策略判定）。
var (
	// ErrFatalConfig: 启动前置检查失败（模板缺失/为空、输入不可读/为空、缺列等），终止运行。
	ErrFatalConfig = errors.New("fatal config")
	// ErrTransport: 连接级失败（DNS、拒绝连接、TLS、读体失败），不重试。
	ErrTransport = errors.New("transport error")
	// ErrHTTPStatus: 上游返回非 200；由 *HTTPError 承载细节。
	ErrHTTPStatus = errors.New("http status")
	// ErrMalformedOutput: 模型输出无法解析为字符串数组。
	ErrMalformedOutput = errors.New("malformed output")
	// ErrEmptyContent: 响应中缺少答案文本。
	ErrEmptyContent = errors.New("empty content")
	// ErrRetriesExhausted: 达到重试上限。
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrInvalidInput: 组件入参非法。
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)

// HTTPError: 上游非 200 响应。
type HTTPError struct {
	Provider string
	Status   int
	Msg      string
}

func (e *HTTPError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s upstream %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s upstream %d: %s", e.Provider, e.Status, e.Msg)
}

// Is 使 errors.Is(err, ErrHTTPStatus) 成立。
func (e *HTTPError) Is(target error) bool { return target == ErrHTTPStatus }

func (e *HTTPError) UpstreamStatus() int     { return e.Status }
func (e *HTTPError) UpstreamMessage() string { return e.Msg }
