package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	currentLog        = "llmcsv-current.log"
	defaultMaxBytes   = 10 * 1024 * 1024
	defaultMaxBackups = 5
)

// RotatingFile 实现 zapcore.WriteSyncer：事件追加到 dir/llmcsv-current.log，
// 超过 maxBytes 时改名为 llmcsv-<UTC 时间戳>.log 并重新打开；历史文件最多保留 maxBackups 个。
type RotatingFile struct {
	mu sync.Mutex

	dir        string
	maxBytes   int64
	maxBackups int

	f    *os.File
	size int64
}

// NewRotatingFile 延迟到首次写入时才创建目录与文件。maxBytes<=0 使用 10MiB。
func NewRotatingFile(dir string, maxBytes int64) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &RotatingFile{dir: dir, maxBytes: maxBytes, maxBackups: defaultMaxBackups}
}

// Write 写入一条已编码的事件（zap 每次传入完整一行）。
func (w *RotatingFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.open(); err != nil {
		return 0, err
	}
	// 当前文件非空才轮转，单行超限时不产生空文件
	if w.size > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

// Sync 将已写数据落盘。
func (w *RotatingFile) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	return w.f.Sync()
}

// Close 关闭当前文件；之后的 Write 会重新打开。
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *RotatingFile) open() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(w.dir, currentLog), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.f, w.size = f, 0
	if st, err := f.Stat(); err == nil {
		w.size = st.Size()
	}
	return nil
}

func (w *RotatingFile) rotate() error {
	_ = w.f.Close()
	w.f = nil
	// 纳秒精度，同一秒内多次轮转不互相覆盖
	ts := time.Now().UTC().Format("20060102-150405.000000000")
	cur := filepath.Join(w.dir, currentLog)
	if err := os.Rename(cur, filepath.Join(w.dir, fmt.Sprintf("llmcsv-%s.log", ts))); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}
	w.prune()
	return w.open()
}

// prune 删除超出保留数的最旧历史文件（文件名按时间戳字典序即时间序）。
func (w *RotatingFile) prune() {
	if w.maxBackups <= 0 {
		return
	}
	matches, err := filepath.Glob(filepath.Join(w.dir, "llmcsv-*.log"))
	if err != nil {
		return
	}
	backups := matches[:0]
	for _, m := range matches {
		if filepath.Base(m) != currentLog {
			backups = append(backups, m)
		}
	}
	if len(backups) <= w.maxBackups {
		return
	}
	sort.Strings(backups)
	for _, old := range backups[:len(backups)-w.maxBackups] {
		_ = os.Remove(old)
	}
}
