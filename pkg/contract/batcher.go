package contract

import "context"

// BatchLimit: 最小必要限制集合。
type BatchLimit struct {
	// MaxRows: 每块最大行数，必须为正数。
	MaxRows int
}

// Batcher: 将有序行切分为若干 Chunk。
// 约束：
//  1. 不重排、不丢失；
//  2. 除最后一块外，每块恰为 MaxRows 行；
//  3. Chunk.Index 自 0 严格递增。
type Batcher interface {
	Make(ctx context.Context, rows []Row, limit BatchLimit) ([]Chunk, error)
}
