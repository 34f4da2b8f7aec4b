package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmcsv/pkg/contract"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	raw, _ := json.Marshal(map[string]any{"api_key": "sk-test", "base_url": url})
	c, err := New(raw)
	require.NoError(t, err)
	return c
}

func TestInvokeAndExtract(t *testing.T) {
	var got oaReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &got))
		resp, _ := json.Marshal(map[string]any{"choices": []any{
			map[string]any{"message": map[string]any{"content": "```json\n[\"a\", \"b\"]\n```"}},
		}})
		_, _ = w.Write(resp)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	raw, err := c.Invoke(context.Background(), "prompt text")
	require.NoError(t, err)
	out, err := c.Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "prompt text", got.Messages[0].Content)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, DefaultTemperature, *got.Temperature, 1e-9)
}

func TestInvokeNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "  overloaded \n")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Invoke(context.Background(), "p")
	var he *contract.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, 503, he.Status)
	assert.Equal(t, "overloaded", he.Msg)
	assert.True(t, errors.Is(err, contract.ErrHTTPStatus))
}

func TestInvokeTransport(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	c.do = func(*http.Request) (*http.Response, error) { return nil, errors.New("connection refused") }
	_, err := c.Invoke(context.Background(), "p")
	assert.True(t, errors.Is(err, contract.ErrTransport))
}

func TestInvokeCanceled(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.do = func(r *http.Request) (*http.Response, error) { return nil, r.Context().Err() }
	_, err := c.Invoke(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, contract.ErrTransport))
}

func TestExtractErrors(t *testing.T) {
	c := &Client{}
	_, err := c.Extract(contract.Raw{Text: "<html>"})
	assert.ErrorIs(t, err, contract.ErrMalformedOutput)
	_, err = c.Extract(contract.Raw{Text: `{"choices":[]}`})
	assert.ErrorIs(t, err, contract.ErrEmptyContent)
	_, err = c.Extract(contract.Raw{Text: `{"choices":[{"message":{"content":"sure! a, b"}}]}`})
	assert.ErrorIs(t, err, contract.ErrMalformedOutput)
}

func TestNewOptions(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(nil)
	assert.ErrorIs(t, err, contract.ErrFatalConfig)

	_, err = New(json.RawMessage(`{"api_key":"k","bogus":1}`))
	assert.ErrorIs(t, err, contract.ErrFatalConfig)

	t.Setenv("MY_KEY", "env-key")
	c, err := New(json.RawMessage(`{"api_key_env":"MY_KEY","endpoint_path":"https://proxy.example/v1/chat","model":"gpt-4o","temperature":0}`))
	require.NoError(t, err)
	assert.Equal(t, "env-key", c.apiKey)
	assert.Equal(t, "https://proxy.example/v1/chat", c.url)
	assert.Equal(t, "gpt-4o", c.model)
	assert.Equal(t, 0.0, *c.temp)

	c, err = New(json.RawMessage(`{"api_key":"k","base_url":"http://h/v1/"}`))
	require.NoError(t, err)
	assert.Equal(t, "http://h/v1/chat/completions", c.url)
}
