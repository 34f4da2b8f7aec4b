package contract

import "context"

// Prompt: 完整提示词文本。
type Prompt string

// PromptBuilder: 基于一组源值构造确定性的 Prompt。
// 纯计算，不做 I/O；模板在构造期加载并校验。
type PromptBuilder interface {
	Build(ctx context.Context, values []string) (Prompt, error)
}
