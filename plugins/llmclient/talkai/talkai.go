// Package talkai 实现事件流类 provider：响应体为逐行 "data: <片段>" 的流式文本，
// 片段拼接后才是模型答案。
package talkai

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"llmcsv/internal/extract"
	"llmcsv/pkg/contract"
)

const (
	DefaultType        = "gemini"
	DefaultModel       = "gemini-2.0-flash-lite"
	DefaultTemperature = 0.7
	// 响应体读取上限
	maxBody = 16 << 20
)

// Options: 最小必需配置。
type Options struct {
	// Type: 子域前缀（如 gemini -> https://gemini.talkai.info）；显式空串使用裸域。
	Type *string `json:"type,omitempty"`
	// URL: 完整覆盖请求地址（测试/代理）。
	URL                string   `json:"url,omitempty"`
	Model              string   `json:"model,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty"`
	TimeoutSeconds     int      `json:"timeout_seconds,omitempty"`
}

func (o *Options) defaults() {
	if o.Type == nil {
		t := DefaultType
		o.Type = &t
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Temperature == nil {
		t := DefaultTemperature
		o.Temperature = &t
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 120
	}
	if o.URL == "" {
		host := "talkai.info"
		if t := strings.TrimSpace(*o.Type); t != "" {
			host = t + "." + host
		}
		o.URL = "https://" + host + "/chat/send/"
	}
}

type Client struct {
	url   string
	model string
	temp  float64
	newID func() string
	do    func(*http.Request) (*http.Response, error)
}

// New 从原样 JSON 选项构造客户端（无需密钥）。
func New(raw json.RawMessage) (*Client, error) {
	var opts Options
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return nil, fmt.Errorf("talkai options: %v: %w", err, contract.ErrFatalConfig)
		}
	}
	opts.defaults()
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // 上游证书链不稳定时显式开启
	}
	hc := &http.Client{Timeout: time.Duration(opts.TimeoutSeconds) * time.Second, Transport: tr}
	return &Client{
		url:   opts.URL,
		model: opts.Model,
		temp:  *opts.Temperature,
		newID: uuid.NewString,
		do:    hc.Do,
	}, nil
}

var _ contract.LLMClient = (*Client)(nil)

type message struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Content string `json:"content"`
}

type settings struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

type request struct {
	Type            string    `json:"type"`
	MessagesHistory []message `json:"messagesHistory"`
	Settings        settings  `json:"settings"`
}

// Invoke: 发送单条对话消息，返回原始事件流文本。
func (c *Client) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	body, err := json.Marshal(&request{
		Type:            "chat",
		MessagesHistory: []message{{ID: c.newID(), From: "you", Content: string(p)}},
		Settings:        settings{Model: c.model, Temperature: c.temp},
	})
	if err != nil {
		return contract.Raw{}, fmt.Errorf("encode: %v: %w", err, contract.ErrInvalidInput)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return contract.Raw{}, fmt.Errorf("new request: %v: %w", err, contract.ErrInvalidInput)
	}
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		if ctx.Err() != nil {
			return contract.Raw{}, ctx.Err()
		}
		return contract.Raw{}, fmt.Errorf("talkai: %v: %w", err, contract.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return contract.Raw{}, &contract.HTTPError{Provider: "talkai", Status: resp.StatusCode, Msg: strings.TrimSpace(string(slurp))}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return contract.Raw{}, err
		}
		return contract.Raw{}, fmt.Errorf("talkai: read body: %v: %w", err, contract.ErrTransport)
	}
	return contract.Raw{Text: string(b)}, nil
}

// Extract: 拼接 data 片段、清洗后解析为字符串数组。
func (c *Client) Extract(raw contract.Raw) ([]string, error) {
	return extract.StringArray(extract.Stream(raw.Text))
}
