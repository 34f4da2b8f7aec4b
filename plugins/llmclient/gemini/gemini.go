package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"llmcsv/internal/extract"
	"llmcsv/pkg/contract"
)

const (
	DefaultModel       = "gemini-2.0-flash-lite"
	DefaultTemperature = 0.3
)

// Options: Google GenAI（Gemini API 后端）最小必需。
type Options struct {
	Model     string `json:"model"`       // 默认 gemini-2.0-flash-lite
	APIKeyEnv string `json:"api_key_env"` // 默认 GEMINI_API_KEY（回退 GOOGLE_API_KEY）
	APIKey    string `json:"api_key"`
	// 客户端超时（秒）。未设置或 <=0 时采用默认 60 秒。
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	// BaseURL: 可选覆盖（代理/测试）。
	BaseURL string `json:"base_url,omitempty"`
}

func (o *Options) defaults() {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.APIKeyEnv == "" {
		o.APIKeyEnv = "GEMINI_API_KEY"
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 60
	}
	if o.Temperature == nil {
		t := DefaultTemperature
		o.Temperature = &t
	}
}

// Client 通过 genai SDK 调用 Models.GenerateContent；答案为响应文本。
type Client struct {
	model    string
	generate func(ctx context.Context, prompt string) (string, error)
}

// New 从原样 JSON 选项构造客户端。SDK 客户端构造不发起网络请求。
func New(raw json.RawMessage) (*Client, error) {
	var opts Options
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return nil, fmt.Errorf("gemini options: %v: %w", err, contract.ErrFatalConfig)
		}
	}
	opts.defaults()
	key := opts.APIKey
	if key == "" {
		key = os.Getenv(opts.APIKeyEnv)
	}
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("gemini: missing api key (%s): %w", opts.APIKeyEnv, contract.ErrFatalConfig)
	}
	cc := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: time.Duration(opts.TimeoutSeconds) * time.Second},
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	sdk, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %v: %w", err, contract.ErrFatalConfig)
	}
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(*opts.Temperature))}
	model := opts.Model
	return &Client{
		model: model,
		generate: func(ctx context.Context, prompt string) (string, error) {
			resp, err := sdk.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
			if err != nil {
				return "", err
			}
			return resp.Text(), nil
		},
	}, nil
}

var _ contract.LLMClient = (*Client)(nil)

// Invoke: 单次 GenerateContent。
func (c *Client) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	text, err := c.generate(ctx, string(p))
	if err != nil {
		return contract.Raw{}, mapError(ctx, err)
	}
	return contract.Raw{Text: text}, nil
}

// Extract: 响应文本 -> 字符串数组。
func (c *Client) Extract(raw contract.Raw) ([]string, error) {
	if strings.TrimSpace(raw.Text) == "" {
		return nil, fmt.Errorf("gemini: no text in response: %w", contract.ErrEmptyContent)
	}
	return extract.StringArray(raw.Text)
}

// mapError: 带状态码的 APIError 归为 HTTPError，其余归为传输错误。
func mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var ae genai.APIError
	if errors.As(err, &ae) && ae.Code != 0 {
		return &contract.HTTPError{Provider: "gemini", Status: ae.Code, Msg: ae.Message}
	}
	var pae *genai.APIError
	if errors.As(err, &pae) && pae != nil && pae.Code != 0 {
		return &contract.HTTPError{Provider: "gemini", Status: pae.Code, Msg: pae.Message}
	}
	return fmt.Errorf("gemini: %v: %w", err, contract.ErrTransport)
}
