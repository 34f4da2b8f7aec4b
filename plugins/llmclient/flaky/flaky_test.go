package flaky

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmcsv/pkg/contract"
)

func attempt(c *Client) ([]string, error) {
	raw, err := c.Invoke(context.Background(), `["a","b"]`)
	if err != nil {
		return nil, err
	}
	return c.Extract(raw)
}

func TestDefaultScript(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "flaky.log")
	raw, _ := json.Marshal(Options{LogPath: logPath})
	c, err := New(raw)
	require.NoError(t, err)

	_, err = attempt(c)
	assert.True(t, errors.Is(err, contract.ErrHTTPStatus))
	_, err = attempt(c)
	assert.ErrorIs(t, err, contract.ErrMalformedOutput)
	out, err := attempt(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"flaky-a", "flaky-b"}, out)
	assert.Equal(t, 3, c.Calls())

	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "http500\nmalformed\nok\n", string(b))
}

func TestCustomScript(t *testing.T) {
	c, err := New(json.RawMessage(`{"steps":["Empty","transport","ok","http500"],"prefix":"p"}`))
	require.NoError(t, err)
	_, err = attempt(c)
	assert.ErrorIs(t, err, contract.ErrEmptyContent)
	_, err = attempt(c)
	assert.ErrorIs(t, err, contract.ErrTransport)
	out, err := attempt(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-a", "p-b"}, out)
	_, err = attempt(c)
	assert.ErrorIs(t, err, contract.ErrHTTPStatus)
	_, err = attempt(c)
	assert.NoError(t, err)
}

func TestUnknownStep(t *testing.T) {
	_, err := New(json.RawMessage(`{"steps":["boom"]}`))
	assert.ErrorIs(t, err, contract.ErrFatalConfig)
}
