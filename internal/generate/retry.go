package generate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"llmcsv/internal/diag"
	"llmcsv/internal/rate"
	"llmcsv/pkg/contract"
)

// 默认重试策略：首次之外最多重试 3 次，固定间隔 2s，无指数退避与抖动。
const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 2 * time.Second
)

// Policy: 有界重试参数。
type Policy struct {
	// MaxRetries: 首次之外的最大重试次数（>=0）。
	MaxRetries int
	// Backoff: 每次重试前的固定等待。
	Backoff time.Duration
	// RPM: 每分钟请求上限（含重试）；0 表示不限。
	RPM int
}

// Retrier 将单次调用的 LLMClient 包装为 contract.Generator。
// 策略（对所有 provider 一致）：
//   - 传输错误与取消：立即返回，不重试；
//   - 非 200 与抽取失败（格式错误/空内容）：等待 Backoff 后重试；
//   - 超过 MaxRetries：返回包裹最后一次错误的 ErrRetriesExhausted。
type Retrier struct {
	client contract.LLMClient
	name   string
	policy Policy
	logger  *diag.Logger
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

// New 构造 Retrier；name 仅用于诊断输出。
func New(client contract.LLMClient, name string, policy Policy, logger *diag.Logger) *Retrier {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.Backoff < 0 {
		policy.Backoff = 0
	}
	return &Retrier{
		client:  client,
		name:    name,
		policy:  policy,
		logger:  logger,
		limiter: rate.New(policy.RPM, nil),
		sleep:   sleepWithCtx,
	}
}

var _ contract.Generator = (*Retrier)(nil)

// Generate 实现 contract.Generator。
func (r *Retrier) Generate(ctx context.Context, p contract.Prompt) ([]string, error) {
	chunk := diag.ChunkFrom(ctx)
	label := diag.ChunkLabel(chunk)
	attempts := r.policy.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if t := diag.GetTerminal(); t != nil {
				t.Retry(chunk, attempt+1, attempts, describe(lastErr))
			}
			r.logger.Warn("generate", "retry", string(diag.Classify(lastErr)), "retrying", label, map[string]string{
				"attempt": strconv.Itoa(attempt + 1),
				"reason":  describe(lastErr),
			})
			diag.IncOp("generate", "retry", "retry")
			if err := r.sleep(ctx, r.policy.Backoff); err != nil {
				return nil, err
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		timer := r.logger.StartWithKV("llm_client", "invoke", label, map[string]string{
			"client":  r.name,
			"attempt": strconv.Itoa(attempt + 1),
		})
		raw, err := r.client.Invoke(ctx, p)
		if err == nil {
			var out []string
			out, err = r.client.Extract(raw)
			if err == nil {
				timer.Finish("invoke", int64(len(out)))
				diag.IncOp("llm_client", "finish", "success")
				return out, nil
			}
		}
		lastErr = err
		r.logError(err, label)
		if !shouldRetry(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", contract.ErrRetriesExhausted, attempts, lastErr)
}

func (r *Retrier) logError(err error, label string) {
	code := diag.Classify(err)
	var ue contract.UpstreamError
	if errors.As(err, &ue) {
		kv := map[string]string{"http_status": strconv.Itoa(ue.UpstreamStatus())}
		if m := strings.TrimSpace(ue.UpstreamMessage()); m != "" {
			if len(m) > 200 {
				m = m[:200]
			}
			kv["upstream_msg"] = m
		}
		r.logger.ErrorWithKV("llm_client", string(code), "invoke failed", nil, label, kv)
	} else {
		r.logger.ErrorWith("llm_client", string(code), err.Error(), nil, label)
	}
	diag.IncOp("llm_client", "error", "error")
	diag.IncError("llm_client", string(code))
}

// shouldRetry: 非 200 与抽取失败可重试；传输错误、取消与其他错误不重试。
func shouldRetry(err error) bool {
	switch diag.Classify(err) {
	case diag.CodeHTTP, diag.CodeProtocol:
		return true
	default:
		return false
	}
}

// describe 生成一行重试原因。
func describe(err error) string {
	var ue contract.UpstreamError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ue):
		return "HTTP " + strconv.Itoa(ue.UpstreamStatus())
	case errors.Is(err, contract.ErrEmptyContent):
		return "empty content"
	case errors.Is(err, contract.ErrMalformedOutput):
		return "model output not valid JSON array"
	default:
		return err.Error()
	}
}

// sleepWithCtx: 可取消的 sleep。
func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
