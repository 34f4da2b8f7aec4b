package diag

import (
	"context"
	"errors"
	"os"

	"llmcsv/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/计数汇总与重试判定，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeNetwork   Code = "network"
	CodeHTTP      Code = "http"
	CodeProtocol  Code = "protocol"
	CodeExhausted Code = "exhausted"
	CodeConfig    Code = "config"
	CodeInvariant Code = "invariant"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类。
// 仅依赖哨兵错误与错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	// 重试耗尽包裹了最后一次错误，先于其余分类判定
	if errors.Is(err, contract.ErrRetriesExhausted) {
		return CodeExhausted
	}
	if errors.Is(err, contract.ErrFatalConfig) {
		return CodeConfig
	}
	if errors.Is(err, contract.ErrTransport) {
		return CodeNetwork
	}
	if errors.Is(err, contract.ErrHTTPStatus) {
		return CodeHTTP
	}
	if errors.Is(err, contract.ErrMalformedOutput) || errors.Is(err, contract.ErrEmptyContent) {
		return CodeProtocol
	}
	if errors.Is(err, contract.ErrInvariantViolation) || errors.Is(err, contract.ErrInvalidInput) {
		return CodeInvariant
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}
