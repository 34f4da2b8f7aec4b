package talkai

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

func TestDefaults(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, "https://gemini.talkai.info/chat/send/", c.url)
	assert.Equal(t, DefaultModel, c.model)
	assert.Equal(t, DefaultTemperature, c.temp)

	c, err = New(json.RawMessage(`{"type":""}`))
	require.NoError(t, err)
	assert.Equal(t, "https://talkai.info/chat/send/", c.url)

	_, err = New(json.RawMessage(`{"modle":"x"}`))
	assert.ErrorIs(t, err, contract.ErrFatalConfig)
}

func TestInvokeStream(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json, text/event-stream", r.Header.Get("Accept"))
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &got))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: trylimit\ndata: 3\n\nevent: chat\ndata: [\"kafsh-\ndata: varzeshi\", \"kif\"]\n\n")
	}))
	defer srv.Close()

	raw, _ := json.Marshal(map[string]any{"url": srv.URL, "temperature": 0.2})
	c, err := New(raw)
	require.NoError(t, err)
	c.newID = func() string { return "fixed-id" }

	r, err := c.Invoke(context.Background(), "make slugs")
	require.NoError(t, err)
	out, err := c.Extract(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"kafsh-varzeshi", "kif"}, out)

	assert.Equal(t, "chat", got.Type)
	require.Len(t, got.MessagesHistory, 1)
	assert.Equal(t, message{ID: "fixed-id", From: "you", Content: "make slugs"}, got.MessagesHistory[0])
	assert.Equal(t, settings{Model: DefaultModel, Temperature: 0.2}, got.Settings)
}

func TestInvokeNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	raw, _ := json.Marshal(map[string]any{"url": srv.URL})
	c, err := New(raw)
	require.NoError(t, err)
	_, err = c.Invoke(context.Background(), "p")
	var he *contract.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, 429, he.Status)
	assert.Equal(t, "talkai", he.Provider)
}

func TestInvokeTransport(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	c.do = func(*http.Request) (*http.Response, error) { return nil, errors.New("tls: handshake failure") }
	_, err = c.Invoke(context.Background(), "p")
	assert.ErrorIs(t, err, contract.ErrTransport)
}

func TestExtractEmptyAndMalformed(t *testing.T) {
	c := &Client{}
	_, err := c.Extract(contract.Raw{Text: "data: 1\n"})
	assert.ErrorIs(t, err, contract.ErrEmptyContent)
	_, err = c.Extract(contract.Raw{Text: "data: I cannot help with that.\n"})
	assert.ErrorIs(t, err, contract.ErrMalformedOutput)
}
