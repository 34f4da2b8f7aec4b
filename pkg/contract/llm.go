package contract

import "context"

// Raw: LLM 上游返回的原始响应体（原样，不做清洗）。
type Raw struct {
	Text string
}

// LLMClient: 单次调用的 provider 抽象（不含重试）。
//   - Invoke: 发送一次请求；传输失败返回 ErrTransport，非 200 返回 *HTTPError；
//   - Extract: 从 Raw 中抽取模型答案并解析为字符串数组；失败返回 ErrMalformedOutput / ErrEmptyContent。
type LLMClient interface {
	Invoke(ctx context.Context, p Prompt) (Raw, error)
	Extract(raw Raw) ([]string, error)
}

// Generator: 提交 Prompt，返回有序生成结果（含有界重试）。
type Generator interface {
	Generate(ctx context.Context, p Prompt) ([]string, error)
}
