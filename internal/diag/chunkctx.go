package diag

import (
	"context"
	"strconv"
)

type chunkKey struct{}

// WithChunk 将块序号挂到 ctx，供重试等旁路诊断使用。
func WithChunk(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, chunkKey{}, index)
}

// ChunkFrom 取出块序号；未设置返回 -1。
func ChunkFrom(ctx context.Context) int {
	if v, ok := ctx.Value(chunkKey{}).(int); ok {
		return v
	}
	return -1
}

// ChunkLabel 以 1 起始的块编号文本（日志 chunk 字段）；未设置返回空串。
func ChunkLabel(index int) string {
	if index < 0 {
		return ""
	}
	return strconv.Itoa(index + 1)
}
