package fixed

import (
	"context"

	"llmcsv/pkg/contract"
)

// DefaultMaxRows 为未配置时的每块行数。
const DefaultMaxRows = 10

// Options 为定长 Batcher 的可选配置。
type Options struct {
	// MaxRows: 当调用方 BatchLimit.MaxRows <= 0 时使用的每块行数；<=0 采用默认 10。
	MaxRows int `json:"max_rows"`
}

// Batcher 按固定行数连续切块，末块可短。
type Batcher struct {
	maxRows int
}

// New 创建定长 Batcher。
func New(opts *Options) *Batcher {
	n := DefaultMaxRows
	if opts != nil && opts.MaxRows > 0 {
		n = opts.MaxRows
	}
	return &Batcher{maxRows: n}
}

// Make 保持行序切块；Chunk.Rows 与输入共享底层数组，调用方写回即作用于原行。
func (b *Batcher) Make(ctx context.Context, rows []contract.Row, limit contract.BatchLimit) ([]contract.Chunk, error) {
	size := limit.MaxRows
	if size <= 0 {
		size = b.maxRows
	}
	if len(rows) == 0 {
		return nil, nil
	}
	chunks := make([]contract.Chunk, 0, (len(rows)+size-1)/size)
	for from := 0; from < len(rows); from += size {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		to := min(from+size, len(rows))
		chunks = append(chunks, contract.Chunk{Index: len(chunks), From: from, Rows: rows[from:to:to]})
	}
	return chunks, nil
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

var _ contract.Batcher = (*Batcher)(nil)
