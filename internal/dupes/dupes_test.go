package dupes

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmcsv/pkg/contract"
	rfs "llmcsv/plugins/reader/filesystem"
)

func sample() contract.Table {
	t := contract.Table{Columns: []string{"شناسه", "نام", "نامک"}}
	for i, s := range []string{"a", "b", "a", "c", "b", "b", ""} {
		t.Rows = append(t.Rows, contract.Row{string(rune('1' + i)), "x", s})
	}
	t.Rows = append(t.Rows, contract.Row{"8", "x", ""})
	return t
}

func TestFind(t *testing.T) {
	groups, err := Find(sample(), "نامک")
	require.NoError(t, err)
	assert.Equal(t, []Group{
		{Value: "a", IDs: []string{"1", "3"}},
		{Value: "b", IDs: []string{"2", "5", "6"}},
	}, groups)
}

func TestFindMissingColumn(t *testing.T) {
	_, err := Find(sample(), "slug")
	assert.ErrorIs(t, err, ErrColumnMissing)
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Report(&buf, []Group{{Value: "a", IDs: []string{"1", "3"}}}, "نامک", "شناسه"))
	assert.Equal(t, "نامک: a\nشناسه: 1, 3\n\n", buf.String())

	buf.Reset()
	require.NoError(t, Report(&buf, nil, "نامک", "شناسه"))
	assert.Equal(t, "✅ No duplicate 'نامک' entries found.\n", buf.String())
}

func write(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "output.csv")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestCheck(t *testing.T) {
	r, err := rfs.New(nil)
	require.NoError(t, err)
	ctx := context.Background()

	var buf bytes.Buffer
	groups, err := Check(ctx, r, write(t, "شناسه,نامک\n10,x\n11,y\n12,x\n"), "نامک", &buf, nil)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
	assert.Equal(t, "نامک: x\nشناسه: 10, 12\n\n", buf.String())

	fatal := map[string]string{
		"no headers":     "",
		"empty":          "شناسه,نامک\n",
		"missing column": "شناسه,نام\n1,a\n",
	}
	for name, content := range fatal {
		t.Run(name, func(t *testing.T) {
			_, err := Check(ctx, r, write(t, content), "نامک", &bytes.Buffer{}, nil)
			assert.ErrorIs(t, err, contract.ErrFatalConfig)
		})
	}
	_, err = Check(ctx, r, filepath.Join(t.TempDir(), "missing.csv"), "نامک", &bytes.Buffer{}, nil)
	assert.ErrorIs(t, err, contract.ErrFatalConfig)
}
