package fixed

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmcsv/pkg/contract"
)

func rows(n int) []contract.Row {
	out := make([]contract.Row, n)
	for i := range out {
		out[i] = contract.Row{strconv.Itoa(i + 1)}
	}
	return out
}

// 25 行、每块 10 行 → 10/10/5，行序不变。
func TestMakeSizes(t *testing.T) {
	b := New(nil)
	in := rows(25)
	chunks, err := b.Make(context.Background(), in, contract.BatchLimit{MaxRows: 10})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{10, 10, 5}, []int{chunks[0].Len(), chunks[1].Len(), chunks[2].Len()})
	assert.Equal(t, []int{0, 10, 20}, []int{chunks[0].From, chunks[1].From, chunks[2].From})
	var flat []string
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		for _, r := range c.Rows {
			flat = append(flat, r[0])
		}
	}
	require.Len(t, flat, 25)
	for i, v := range flat {
		assert.Equal(t, strconv.Itoa(i+1), v)
	}
}

// 块内行与输入共享存储；对块追加不会越界覆盖下一块。
func TestMakeSharesRows(t *testing.T) {
	in := rows(4)
	chunks, err := New(nil).Make(context.Background(), in, contract.BatchLimit{MaxRows: 2})
	require.NoError(t, err)
	chunks[0].Rows[1] = append(chunks[0].Rows[1], "slug")
	assert.Equal(t, contract.Row{"2", "slug"}, in[1])
	_ = append(chunks[0].Rows, contract.Row{"x"})
	assert.Equal(t, contract.Row{"3"}, in[2])
}

func TestMakeDefaults(t *testing.T) {
	chunks, err := New(nil).Make(context.Background(), rows(11), contract.BatchLimit{})
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	chunks, err = New(&Options{MaxRows: 3}).Make(context.Background(), rows(7), contract.BatchLimit{})
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
	assert.Equal(t, 1, chunks[2].Len())
}

func TestMakeEmptyAndCanceled(t *testing.T) {
	chunks, err := New(nil).Make(context.Background(), nil, contract.BatchLimit{MaxRows: 10})
	assert.NoError(t, err)
	assert.Empty(t, chunks)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(nil).Make(ctx, rows(3), contract.BatchLimit{MaxRows: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
