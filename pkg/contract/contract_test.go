package contract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTableAccessors 验证列查找、标识列与按列取值。
func TestTableAccessors(t *testing.T) {
	tb := Table{
		Columns: []string{"شناسه", "نام"},
		Rows:    []Row{{"1", "کفش"}, {"2", "کیف"}},
	}
	assert.Equal(t, 1, tb.ColumnIndex("نام"))
	assert.Equal(t, -1, tb.ColumnIndex("x"))
	assert.Equal(t, "2", tb.ID(tb.Rows[1]))
	assert.Equal(t, "کفش", tb.Value(tb.Rows[0], "نام"))
	assert.Equal(t, "", tb.Value(tb.Rows[0], "missing"))
	assert.Equal(t, "", Table{}.ID(nil))
}

// TestEnsureColumn 追加新列并为已有行补空值；已存在则复用下标。
func TestEnsureColumn(t *testing.T) {
	tb := Table{Columns: []string{"id", "name"}, Rows: []Row{{"1", "a"}, {"2", "b"}}}
	i := tb.EnsureColumn("slug")
	require.Equal(t, 2, i)
	assert.Equal(t, []string{"id", "name", "slug"}, tb.Columns)
	for _, r := range tb.Rows {
		assert.Len(t, r, 3)
		assert.Equal(t, "", r[2])
	}
	assert.Equal(t, 1, tb.EnsureColumn("name"))
	assert.Len(t, tb.Columns, 3)
}

// TestClone 深拷贝独立。
func TestClone(t *testing.T) {
	tb := Table{Columns: []string{"id"}, Rows: []Row{{"1"}}}
	c := tb.Clone()
	c.Rows[0][0] = "x"
	c.Columns[0] = "y"
	assert.Equal(t, "1", tb.Rows[0][0])
	assert.Equal(t, "id", tb.Columns[0])
}

// TestHTTPError 验证 errors.Is / errors.As 与 UpstreamError 视图。
func TestHTTPError(t *testing.T) {
	err := fmt.Errorf("invoke: %w", &HTTPError{Provider: "openai", Status: 503, Msg: "busy"})
	assert.True(t, errors.Is(err, ErrHTTPStatus))
	assert.False(t, errors.Is(err, ErrTransport))

	var ue UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 503, ue.UpstreamStatus())
	assert.Equal(t, "busy", ue.UpstreamMessage())
	assert.Equal(t, "openai upstream 503: busy", ue.Error())
	assert.Equal(t, "talkai upstream 502", (&HTTPError{Provider: "talkai", Status: 502}).Error())
}
