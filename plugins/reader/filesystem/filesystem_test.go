package filesystem

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmcsv/pkg/contract"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadTable(t *testing.T) {
	p := writeFile(t, "\ufeffشناسه,نام,قیمت\r\n1,\"کفش, ورزشی\",100\n2,کیف\n3,a,b,extra\n")
	r, err := New(nil)
	require.NoError(t, err)
	tb, err := r.Read(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"شناسه", "نام", "قیمت"}, tb.Columns)
	require.Len(t, tb.Rows, 3)
	assert.Equal(t, contract.Row{"1", "کفش, ورزشی", "100"}, tb.Rows[0])
	assert.Equal(t, contract.Row{"2", "کیف", ""}, tb.Rows[1])
	assert.Equal(t, contract.Row{"3", "a", "b"}, tb.Rows[2])
}

func TestReadEmptyAndHeaderOnly(t *testing.T) {
	r, _ := New(nil)
	tb, err := r.Read(context.Background(), writeFile(t, ""))
	require.NoError(t, err)
	assert.Empty(t, tb.Columns)
	assert.Empty(t, tb.Rows)

	tb, err = r.Read(context.Background(), writeFile(t, "id,name\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, tb.Columns)
	assert.Empty(t, tb.Rows)
}

func TestReadMissingFile(t *testing.T) {
	r, _ := New(nil)
	_, err := r.Read(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestReadCommaAndNFC(t *testing.T) {
	// "e" + U+0301 → U+00E9
	p := writeFile(t, "id;name\n1;cafe\u0301\n")
	r, err := New(&Options{Comma: ";", NormalizeNFC: true})
	require.NoError(t, err)
	tb, err := r.Read(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", tb.Rows[0][1])
}

func TestReadBadQuotes(t *testing.T) {
	p := writeFile(t, "id,name\n1,a\"b\n")
	r, _ := New(nil)
	_, err := r.Read(context.Background(), p)
	assert.Error(t, err)

	lazy, _ := New(&Options{LazyQuotes: true})
	tb, err := lazy.Read(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "a\"b", tb.Rows[0][1])
}

func TestNewInvalidComma(t *testing.T) {
	for _, c := range []string{"ab", "\"", "\n"} {
		_, err := New(&Options{Comma: c})
		assert.ErrorIs(t, err, contract.ErrInvalidInput, c)
	}
}

func TestReadCanceled(t *testing.T) {
	r, _ := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Read(ctx, writeFile(t, "id\n1\n"))
	assert.ErrorIs(t, err, context.Canceled)
}
