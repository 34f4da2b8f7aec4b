// Package extract 从上游响应体中抽取模型答案并解析为有序字符串数组。
// 不做本地重试：失败以 contract.ErrMalformedOutput / ErrEmptyContent 上抛，由重试层决定。
package extract

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"llmcsv/pkg/contract"
)

// CompletionPath: chat completions 响应中答案文本的位置。
const CompletionPath = "choices.0.message.content"

// Completion 从 chat completions 响应体中取出答案文本。
func Completion(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("completion body: %w", contract.ErrMalformedOutput)
	}
	content := gjson.GetBytes(body, CompletionPath)
	if !content.Exists() || strings.TrimSpace(content.String()) == "" {
		return "", contract.ErrEmptyContent
	}
	return content.String(), nil
}
