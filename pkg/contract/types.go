package contract

// Row: 单行记录，值按 Table.Columns 顺序排列（列名→值的有序映射）。
type Row []string

// Table: 有序行集合；所有行共享同一列集合，首列为隐式标识列。
// 约束：
//  1. len(Row) == len(Columns)（由 Reader 负责对齐）；
//  2. 行序即输入顺序，任何阶段不得重排。
type Table struct {
	Columns []string
	Rows    []Row
}

// ColumnIndex 返回列下标；不存在返回 -1。
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// ID 返回行的标识值（首列）。
func (t Table) ID(r Row) string {
	if len(t.Columns) == 0 || len(r) == 0 {
		return ""
	}
	return r[0]
}

// Value 按列名取值；列不存在或越界返回空串。
func (t Table) Value(r Row, column string) string {
	i := t.ColumnIndex(column)
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// EnsureColumn 返回列下标；不存在时在末尾追加该列，并为已有行补空值。
func (t *Table) EnsureColumn(name string) int {
	if i := t.ColumnIndex(name); i >= 0 {
		return i
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return len(t.Columns) - 1
}

// Clone 深拷贝，避免下游修改影响输入表。
func (t Table) Clone() Table {
	out := Table{Columns: append([]string(nil), t.Columns...)}
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append(Row(nil), r...)
	}
	return out
}

// Chunk: 连续、定长（≤ N）的行切片；Index 自 0 递增，仅用于诊断。
// From 为首行在表内的偏移。
type Chunk struct {
	Index int
	From  int
	Rows  []Row
}

// Len 返回块内行数。
func (c Chunk) Len() int { return len(c.Rows) }
