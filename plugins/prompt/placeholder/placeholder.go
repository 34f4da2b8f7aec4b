package placeholder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"llmcsv/pkg/contract"
)

// DefaultToken 为模板中的源值占位符。
const DefaultToken = "$INPUTS"

// Options: 模板来源二选一（InlineTemplate 优先），均为空视为缺失。
type Options struct {
	InlineTemplate string `json:"inline_template"`
	TemplatePath   string `json:"template_path"`
	// Token: 占位符文本；为空使用 $INPUTS。
	Token string `json:"token"`
}

// Builder: 将源值数组以 JSON 形式替换进模板。
// 运行期不做 I/O；模板在构造期加载并校验。
type Builder struct {
	tpl   string
	token string
}

// New 加载并校验模板。模板缺失、为空或不含占位符均返回 ErrFatalConfig。
func New(opts *Options) (*Builder, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	token := o.Token
	if token == "" {
		token = DefaultToken
	}
	src := o.InlineTemplate
	if src == "" && o.TemplatePath != "" {
		b, err := os.ReadFile(o.TemplatePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("prompt template %s not found: %w", o.TemplatePath, contract.ErrFatalConfig)
			}
			return nil, fmt.Errorf("prompt template read: %v: %w", err, contract.ErrFatalConfig)
		}
		src = string(b)
	}
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("prompt template missing or empty: %w", contract.ErrFatalConfig)
	}
	if !strings.Contains(src, token) {
		return nil, fmt.Errorf("prompt template has no %s placeholder: %w", token, contract.ErrFatalConfig)
	}
	return &Builder{tpl: src, token: token}, nil
}

// Build 以 JSON 数组替换全部占位符；非 ASCII 与 <>& 原样保留。
func (b *Builder) Build(ctx context.Context, values []string) (contract.Prompt, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if values == nil {
		values = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return "", fmt.Errorf("encode inputs: %w", err)
	}
	arr := strings.TrimSuffix(buf.String(), "\n")
	return contract.Prompt(strings.ReplaceAll(b.tpl, b.token, arr)), nil
}

// Template 返回已加载的模板文本。
func (b *Builder) Template() string { return b.tpl }

var _ contract.PromptBuilder = (*Builder)(nil)
