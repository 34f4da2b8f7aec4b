package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"llmcsv/internal/diag"
	"llmcsv/pkg/contract"
)

// step: 单次尝试的脚本结果。
type step struct {
	invokeErr  error
	extractErr error
	out        []string
}

type scripted struct {
	steps []step
	calls int
}

func (s *scripted) cur() step {
	if s.calls-1 < len(s.steps) {
		return s.steps[s.calls-1]
	}
	return s.steps[len(s.steps)-1]
}

func (s *scripted) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	s.calls++
	st := s.cur()
	if st.invokeErr != nil {
		return contract.Raw{}, st.invokeErr
	}
	return contract.Raw{Text: string(p)}, nil
}

func (s *scripted) Extract(raw contract.Raw) ([]string, error) {
	st := s.cur()
	if st.extractErr != nil {
		return nil, st.extractErr
	}
	return st.out, nil
}

func newTestRetrier(c contract.LLMClient, max int) (*Retrier, *[]time.Duration, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := New(c, "test", Policy{MaxRetries: max, Backoff: 2 * time.Second}, diag.NewLoggerWithCore("cid", core))
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept, logs
}

func retryWarnings(logs *observer.ObservedLogs) int {
	return logs.FilterLevelExact(zapcore.WarnLevel).Len()
}

func TestGenerateFirstAttempt(t *testing.T) {
	c := &scripted{steps: []step{{out: []string{"a", "b"}}}}
	r, slept, logs := newTestRetrier(c, DefaultMaxRetries)
	got, err := r.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, c.calls)
	assert.Empty(t, *slept)
	assert.Zero(t, retryWarnings(logs))
}

// 第一次格式错误、第二次成功：采用第二次结果，恰有一次重试诊断。
func TestGenerateMalformedThenOK(t *testing.T) {
	c := &scripted{steps: []step{
		{extractErr: contract.ErrMalformedOutput},
		{out: []string{"x"}},
	}}
	var buf bytes.Buffer
	diag.SetTerminal(diag.NewTerminal(&buf, true))
	defer diag.SetTerminal(nil)

	r, slept, logs := newTestRetrier(c, DefaultMaxRetries)
	got, err := r.Generate(diag.WithChunk(context.Background(), 1), "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got)
	assert.Equal(t, 2, c.calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, *slept)
	assert.Equal(t, 1, retryWarnings(logs))
	assert.Equal(t, 1, strings.Count(buf.String(), "[retry]"))
	assert.Contains(t, buf.String(), "[retry] #2 | 第 2/4 次 | model output not valid JSON array")
}

// 非 200 持续失败：共 4 次尝试后返回 ErrRetriesExhausted。
func TestGenerateExhausted(t *testing.T) {
	c := &scripted{steps: []step{{invokeErr: &contract.HTTPError{Provider: "openai", Status: 503, Msg: "busy"}}}}
	r, slept, logs := newTestRetrier(c, DefaultMaxRetries)
	_, err := r.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contract.ErrRetriesExhausted))
	assert.True(t, errors.Is(err, contract.ErrHTTPStatus))
	assert.Equal(t, 4, c.calls)
	assert.Len(t, *slept, 3)
	assert.Equal(t, 3, retryWarnings(logs))

	errs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errs, 4)
	assert.Equal(t, map[string]string{"http_status": "503", "upstream_msg": "busy"}, errs[0].ContextMap()["kv"])
}

func TestGenerateEmptyContentRetried(t *testing.T) {
	c := &scripted{steps: []step{
		{extractErr: contract.ErrEmptyContent},
		{extractErr: fmt.Errorf("wrap: %w", contract.ErrEmptyContent)},
		{out: []string{"ok"}},
	}}
	r, _, _ := newTestRetrier(c, DefaultMaxRetries)
	got, err := r.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, got)
	assert.Equal(t, 3, c.calls)
}

// 传输错误不重试。
func TestGenerateTransportNotRetried(t *testing.T) {
	c := &scripted{steps: []step{{invokeErr: fmt.Errorf("dial: %w", contract.ErrTransport)}}}
	r, slept, logs := newTestRetrier(c, DefaultMaxRetries)
	_, err := r.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contract.ErrTransport))
	assert.False(t, errors.Is(err, contract.ErrRetriesExhausted))
	assert.Equal(t, 1, c.calls)
	assert.Empty(t, *slept)
	assert.Zero(t, retryWarnings(logs))
}

func TestGenerateZeroRetries(t *testing.T) {
	c := &scripted{steps: []step{{extractErr: contract.ErrMalformedOutput}}}
	r, _, _ := newTestRetrier(c, 0)
	_, err := r.Generate(context.Background(), "p")
	assert.True(t, errors.Is(err, contract.ErrRetriesExhausted))
	assert.Equal(t, 1, c.calls)
}

func TestGenerateCanceledDuringBackoff(t *testing.T) {
	c := &scripted{steps: []step{{extractErr: contract.ErrMalformedOutput}}}
	r, _, _ := newTestRetrier(c, DefaultMaxRetries)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Generate(ctx, "p")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, c.calls)
}

func TestNewClampsPolicy(t *testing.T) {
	r := New(&scripted{}, "x", Policy{MaxRetries: -2, Backoff: -time.Second}, nil)
	assert.Equal(t, 0, r.policy.MaxRetries)
	assert.Equal(t, time.Duration(0), r.policy.Backoff)
}

// 节流：额度用尽后，取消的上下文使下一次尝试在调用前返回。
func TestGenerateRateLimited(t *testing.T) {
	c := &scripted{steps: []step{{out: []string{"a"}}}}
	r := New(c, "test", Policy{MaxRetries: 1, RPM: 1}, nil)
	_, err := r.Generate(context.Background(), "p")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Generate(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, c.calls)
}

func TestSleepWithCtx(t *testing.T) {
	assert.NoError(t, sleepWithCtx(context.Background(), 0))
	assert.NoError(t, sleepWithCtx(context.Background(), time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepWithCtx(ctx, time.Hour), context.Canceled)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", describe(nil))
	assert.Equal(t, "HTTP 429", describe(&contract.HTTPError{Status: 429}))
	assert.Equal(t, "empty content", describe(contract.ErrEmptyContent))
	assert.Equal(t, "boom", describe(errors.New("boom")))
}
