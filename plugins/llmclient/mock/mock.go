// Package mock 提供离线 provider：从 Prompt 中取回输入数组，按模式生成确定性的答案。
// 用于集成测试与无网络联调。
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"llmcsv/internal/extract"
	"llmcsv/pkg/contract"
)

// 响应模式。
const (
	ModeEcho  = "echo"  // 每个输入一项
	ModeShort = "short" // 少最后一项
	ModeLong  = "long"  // 多一项
	ModeFail  = "fail"  // 非 JSON 文本
)

// Options: 最小调试配置（可选）。
type Options struct {
	Prefix string `json:"prefix"` // 输出前缀，默认 "mock"
	// ResponseMode: echo（默认）/ short / long / fail。
	ResponseMode string `json:"response_mode,omitempty"`
	// Fenced: 以 ```json 代码围栏包裹答案（覆盖抽取端的清洗路径）。
	Fenced bool `json:"fenced,omitempty"`
}

type Client struct {
	prefix string
	mode   string
	fenced bool
}

func New(raw json.RawMessage) (*Client, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("mock options: %v: %w", err, contract.ErrFatalConfig)
		}
	}
	if o.Prefix == "" {
		o.Prefix = "mock"
	}
	mode := strings.ToLower(strings.TrimSpace(o.ResponseMode))
	switch mode {
	case "":
		mode = ModeEcho
	case ModeEcho, ModeShort, ModeLong, ModeFail:
	default:
		return nil, fmt.Errorf("mock: unknown response_mode %q: %w", o.ResponseMode, contract.ErrFatalConfig)
	}
	return &Client{prefix: o.Prefix, mode: mode, fenced: o.Fenced}, nil
}

var _ contract.LLMClient = (*Client)(nil)

// Invoke 实现 contract.LLMClient。
func (c *Client) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	if err := ctx.Err(); err != nil {
		return contract.Raw{}, err
	}
	if c.mode == ModeFail {
		return contract.Raw{Text: "Sorry, I can't help with that."}, nil
	}
	return contract.Raw{Text: c.Answer(InputsOf(p))}, nil
}

// Answer 生成与 inputs 对应的答案文本（按模式增减项数）。
func (c *Client) Answer(inputs []string) string {
	out := make([]string, 0, len(inputs)+1)
	for _, v := range inputs {
		out = append(out, c.prefix+"-"+strings.Join(strings.Fields(v), "-"))
	}
	switch c.mode {
	case ModeShort:
		if len(out) > 0 {
			out = out[:len(out)-1]
		}
	case ModeLong:
		out = append(out, c.prefix+"-extra")
	}
	b, _ := json.Marshal(out)
	if c.fenced {
		return "```json\n" + string(b) + "\n```"
	}
	return string(b)
}

// Extract 与真实 provider 一致：清洗后解析 JSON 数组。
func (c *Client) Extract(raw contract.Raw) ([]string, error) {
	return extract.StringArray(raw.Text)
}

// InputsOf 从 Prompt 中取回最后一个顶层 JSON 字符串数组（即占位符替换处）。
func InputsOf(p contract.Prompt) []string {
	s := string(p)
	var last []string
	for i := 0; i < len(s); i++ {
		if s[i] != '[' {
			continue
		}
		res := gjson.Parse(s[i:])
		if !res.IsArray() || !gjson.Valid(res.Raw) {
			continue
		}
		vals := res.Array()
		items := make([]string, 0, len(vals))
		ok := true
		for _, v := range vals {
			if v.Type != gjson.String {
				ok = false
				break
			}
			items = append(items, v.String())
		}
		if ok {
			last = items
		}
		// 跳过已解析的数组体，避免命中内层
		i += len(res.Raw) - 1
	}
	return last
}
