package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 默认 provider 为 talkai（无需密钥）；
// - openai/gemini 以环境变量提供密钥；
// - mock 可离线联调。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Provider = map[string]Provider{
		"talkai": {Client: "talkai", Options: map[string]any{
			"type":        "gemini",
			"model":       "gemini-2.0-flash-lite",
			"temperature": 0.7,
		}, RPM: 30},
		"openai": {Client: "openai", Options: map[string]any{
			"model":       "gpt-5",
			"api_key_env": "OPENAI_API_KEY",
			"temperature": 0.3,
		}},
		"gemini": {Client: "gemini", Options: map[string]any{
			"model":       "gemini-2.0-flash-lite",
			"api_key_env": "GEMINI_API_KEY",
		}},
		"mock": {Client: "mock", Options: map[string]any{
			"prefix":        "mock",
			"response_mode": "echo",
		}},
	}
	cfg.Options.Reader = map[string]any{"comma": ",", "normalize_nfc": false}
	cfg.Options.Writer = map[string]any{"atomic": true}
	return cfg
}

// MarshalTemplate 编码为 YAML；retry_backoff 以时长字符串写出。
func MarshalTemplate(cfg Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, err
	}
	// 在 max_retries 之后插入 retry_backoff
	kv := []*yaml.Node{
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: "retry_backoff"},
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: cfg.RetryBackoff.String()},
	}
	at := len(doc.Content)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == "max_retries" {
			at = i + 2
			break
		}
	}
	content := append([]*yaml.Node{}, doc.Content[:at]...)
	content = append(content, kv...)
	doc.Content = append(content, doc.Content[at:]...)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SamplePrompt: 示例提示词，$INPUTS 处替换为标题 JSON 数组。
const SamplePrompt = `You are given a JSON array of Persian product titles.
For each title, produce a short, lowercase, URL-friendly English slug (words joined by "-").
Return ONLY a JSON array of strings, one slug per title, in the same order and with the same length.

Titles:
$INPUTS
`

// SampleDotEnv: .env 模板。
const SampleDotEnv = `# 密钥仅在对应 provider 被选用时需要
OPENAI_API_KEY=
GEMINI_API_KEY=
# LLMCSV_LLM=talkai
# LLMCSV_LOGGING_LEVEL=debug
`

// WriteTemplates 在 dir 下写出 llmcsv.yaml、.env 与 PROMPT.txt；已存在的文件跳过。
// 返回实际写出的文件路径。
func WriteTemplates(dir string) ([]string, error) {
	y, err := MarshalTemplate(DefaultTemplateConfig())
	if err != nil {
		return nil, err
	}
	files := []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		{DefaultFile, y, 0o644},
		{".env", []byte(SampleDotEnv), 0o600},
		{"PROMPT.txt", []byte(SamplePrompt), 0o644},
	}
	var written []string
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		if _, err := os.Stat(p); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return written, err
		}
		if err := os.WriteFile(p, f.data, f.perm); err != nil {
			return written, fmt.Errorf("write %s: %w", p, err)
		}
		written = append(written, p)
	}
	return written, nil
}
