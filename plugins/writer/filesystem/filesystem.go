package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"llmcsv/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。
	// 默认值：true。未提供该字段时采用原子写；显式 false 可关闭。
	Atomic *bool `json:"atomic,omitempty"`
	// PermFile/PermDir: 可选权限；为 0 表示使用实现/平台默认。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用实现默认。
	BufSize int `json:"buf_size,omitempty"`
	// Comma: 字段分隔符，默认 ","。
	Comma string `json:"comma,omitempty"`
	// UseCRLF: 行尾使用 \r\n。
	UseCRLF bool `json:"use_crlf,omitempty"`
}

// FS 将 Table 序列化为 CSV 并写入单个目标文件（"-" 为 STDOUT）。
type FS struct {
	atomic  bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
	comma   rune
	crlf    bool
}

// New 创建文件系统 Writer 实现。
func New(opts *Options) (*FS, error) {
	if opts == nil {
		opts = &Options{}
	}
	bsz := opts.BufSize
	if bsz <= 0 {
		bsz = 64 * 1024
	}
	pf := opts.PermFile
	if pf == 0 {
		pf = 0o644
	}
	pd := opts.PermDir
	if pd == 0 {
		pd = 0o755
	}
	atomic := true
	if opts.Atomic != nil {
		atomic = *opts.Atomic
	}
	comma := ','
	if opts.Comma != "" {
		c, n := utf8.DecodeRuneInString(opts.Comma)
		if n != len(opts.Comma) || c == utf8.RuneError || c == '"' || c == '\r' || c == '\n' {
			return nil, fmt.Errorf("writer: invalid comma %q: %w", opts.Comma, contract.ErrInvalidInput)
		}
		comma = c
	}
	return &FS{atomic: atomic, permF: pf, permD: pd, bufSize: bsz, comma: comma, crlf: opts.UseCRLF}, nil
}

var _ contract.TableWriter = (*FS)(nil)

// Write 将表头与全部行一次性写入 path。
// 行宽与表头不一致视为不变量破坏，不落盘。
func (w *FS) Write(ctx context.Context, path string, t contract.Table) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("writer: table has no columns: %w", contract.ErrInvariantViolation)
	}
	data, err := w.encode(t)
	if err != nil {
		return err
	}
	if strings.TrimSpace(path) == "-" {
		_, err := io.Copy(os.Stdout, readerWithCtx(ctx, bytes.NewReader(data)))
		return err
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("writer: empty output path: %w", contract.ErrInvalidInput)
	}
	dest := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
		return err
	}
	if w.atomic {
		return w.writeAtomic(ctx, dest, bytes.NewReader(data))
	}
	return w.writeOverwrite(ctx, dest, bytes.NewReader(data))
}

func (w *FS) encode(t contract.Table) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Comma = w.comma
	cw.UseCRLF = w.crlf
	if err := cw.Write(t.Columns); err != nil {
		return nil, err
	}
	for i, r := range t.Rows {
		if len(r) != len(t.Columns) {
			return nil, fmt.Errorf("writer: row %d has %d fields, header has %d: %w",
				i+1, len(r), len(t.Columns), contract.ErrInvariantViolation)
		}
		if err := cw.Write(r); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *FS) writeOverwrite(ctx context.Context, dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return err
	}
	return bw.Flush()
}

func (w *FS) writeAtomic(ctx context.Context, dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".llmcsv-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, w.permF)

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	bw := bufio.NewWriterSize(tmp, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// os.Rename 在 Windows 上即 MoveFileEx(REPLACE_EXISTING)
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	_ = syncDir(dir)
	return nil
}

// syncDir: 最佳努力同步父目录元数据；Windows 不支持目录 fsync。
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}
	return cr.r.Read(p)
}
