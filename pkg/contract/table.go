package contract

import "context"

// TableReader: 读取分隔文本为 Table。首行为表头。
type TableReader interface {
	Read(ctx context.Context, path string) (Table, error)
}

// TableWriter: 一次性写出 Table，列顺序取 Table.Columns。
// 约束：单写者；失败直接上抛（不做重试/回退）。
type TableWriter interface {
	Write(ctx context.Context, path string, t Table) error
}
