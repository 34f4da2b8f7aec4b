package filesystem

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"llmcsv/pkg/contract"
)

// Options 为 CSV Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// Comma: 字段分隔符（单个字符），默认 ","。
	Comma string `json:"comma"`
	// LazyQuotes: 容忍不规范引号。
	LazyQuotes bool `json:"lazy_quotes"`
	// NormalizeNFC: 读入时将表头与值统一为 Unicode NFC。
	NormalizeNFC bool `json:"normalize_nfc"`
}

// FileSystem 实现基于文件系统与 STDIN 的 TableReader。
// - 首行为表头，去除 UTF-8 BOM；
// - 空文件返回零列 Table（由调用方决定是否致命）；
// - 行宽与表头不一致时补空/截断，保证 len(Row)==len(Columns)。
type FileSystem struct {
	bufSize int
	comma   rune
	lazy    bool
	nfc     bool
}

// New 创建 CSV Reader。
func New(opts *Options) (*FileSystem, error) {
	const defaultBuf = 64 * 1024
	r := &FileSystem{bufSize: defaultBuf, comma: ','}
	if opts == nil {
		return r, nil
	}
	if opts.BufSize > 0 {
		r.bufSize = opts.BufSize
	}
	if opts.Comma != "" {
		c, n := utf8.DecodeRuneInString(opts.Comma)
		if n != len(opts.Comma) || c == utf8.RuneError || c == '"' || c == '\r' || c == '\n' {
			return nil, fmt.Errorf("reader: invalid comma %q: %w", opts.Comma, contract.ErrInvalidInput)
		}
		r.comma = c
	}
	r.lazy = opts.LazyQuotes
	r.nfc = opts.NormalizeNFC
	return r, nil
}

var _ contract.TableReader = (*FileSystem)(nil)

// Read 读取 path（"-" 表示 STDIN）为 Table。
func (r *FileSystem) Read(ctx context.Context, path string) (contract.Table, error) {
	select {
	case <-ctx.Done():
		return contract.Table{}, ctx.Err()
	default:
	}
	if strings.TrimSpace(path) == "-" {
		return r.decode(ctx, os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return contract.Table{}, err
	}
	defer f.Close()
	return r.decode(ctx, f)
}

func (r *FileSystem) decode(ctx context.Context, src io.Reader) (contract.Table, error) {
	cr := csv.NewReader(bufio.NewReaderSize(src, r.bufSize))
	cr.Comma = r.comma
	cr.LazyQuotes = r.lazy
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return contract.Table{}, nil
	}
	if err != nil {
		return contract.Table{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := contract.Table{Columns: r.norm(header)}
	for {
		if err := ctxErr(ctx); err != nil {
			return contract.Table{}, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return contract.Table{}, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, fit(r.norm(rec), len(t.Columns)))
	}
	return t, nil
}

func (r *FileSystem) norm(ss []string) []string {
	if !r.nfc {
		return ss
	}
	for i, s := range ss {
		ss[i] = norm.NFC.String(s)
	}
	return ss
}

// fit 将行宽对齐到表头宽度。
func fit(rec []string, width int) contract.Row {
	row := make(contract.Row, width)
	copy(row, rec)
	return row
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
