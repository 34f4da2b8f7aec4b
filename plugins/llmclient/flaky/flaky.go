package flaky

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"llmcsv/internal/extract"
	"llmcsv/pkg/contract"
	"llmcsv/plugins/llmclient/mock"
)

// 脚本步骤。
const (
	StepOK        = "ok"
	StepHTTP500   = "http500"
	StepMalformed = "malformed"
	StepEmpty     = "empty"
	StepTransport = "transport"
)

// Options 定义可选项。
type Options struct {
	// Steps: 依次返回的结果；用尽后恒为 ok。默认 [http500, malformed]。
	Steps  []string `json:"steps,omitempty"`
	Prefix string   `json:"prefix"`
	// LogPath: 调试用日志文件，记录每次调用结果（可选）。
	LogPath string `json:"log_path,omitempty"`
}

// Client 是带状态的 LLM 实现：按 Steps 脚本逐次失败，之后回落到 mock 的 echo 答案。
// 计数跨块共享。
type Client struct {
	steps   []string
	ok      *mock.Client
	logPath string
	count   atomic.Int32
}

// New 构造 Client。
func New(raw json.RawMessage) (*Client, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("flaky options: %v: %w", err, contract.ErrFatalConfig)
		}
	}
	if o.Steps == nil {
		o.Steps = []string{StepHTTP500, StepMalformed}
	}
	for i, s := range o.Steps {
		s = strings.ToLower(strings.TrimSpace(s))
		switch s {
		case StepOK, StepHTTP500, StepMalformed, StepEmpty, StepTransport:
			o.Steps[i] = s
		default:
			return nil, fmt.Errorf("flaky: unknown step %q: %w", s, contract.ErrFatalConfig)
		}
	}
	if o.Prefix == "" {
		o.Prefix = "flaky"
	}
	okRaw, _ := json.Marshal(mock.Options{Prefix: o.Prefix})
	m, err := mock.New(okRaw)
	if err != nil {
		return nil, err
	}
	return &Client{steps: o.Steps, ok: m, logPath: o.LogPath}, nil
}

var _ contract.LLMClient = (*Client)(nil)

// Calls 返回已发生的 Invoke 次数。
func (c *Client) Calls() int { return int(c.count.Load()) }

func (c *Client) log(s string) {
	if c.logPath == "" {
		return
	}
	// 追加写入，忽略错误。
	_ = appendFile(c.logPath, s+"\n")
}

// appendFile 以追加方式写入。
func appendFile(path, s string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(s)
	return err
}

// Invoke 实现 contract.LLMClient。
func (c *Client) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	if err := ctx.Err(); err != nil {
		return contract.Raw{}, err
	}
	n := int(c.count.Add(1))
	step := StepOK
	if n <= len(c.steps) {
		step = c.steps[n-1]
	}
	c.log(step)
	switch step {
	case StepHTTP500:
		return contract.Raw{}, &contract.HTTPError{Provider: "flaky", Status: 500, Msg: "internal error"}
	case StepTransport:
		return contract.Raw{}, fmt.Errorf("flaky: connection reset: %w", contract.ErrTransport)
	case StepMalformed:
		return contract.Raw{Text: "invalid"}, nil
	case StepEmpty:
		return contract.Raw{Text: "   "}, nil
	default:
		return c.ok.Invoke(ctx, p)
	}
}

// Extract 实现 contract.LLMClient。
func (c *Client) Extract(raw contract.Raw) ([]string, error) {
	return extract.StringArray(raw.Text)
}
