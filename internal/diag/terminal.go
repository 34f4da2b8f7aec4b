package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// Terminal: 终端信息提示（非日志）。
// - 输出到提供的 io.Writer（默认 stderr）。
// - 每次重试、每个块结果、运行结束各打印一行；TTY 下块进度单行 \r 覆盖。
// - 并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool

	chunksTotal int
	chunksDone  int
	degraded    int
	runStart    time.Time

	lastLen int

	mu sync.Mutex
}

// 进程级终端（可选，全局设置后供 pipeline/generate 旁路调用）。
var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal 设置全局终端指针（nil 可清除）。
func SetTerminal(t *Terminal) { termMu.Lock(); term = t; termMu.Unlock() }

// GetTerminal 返回全局终端（可能为 nil）。
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return term }

// NewTerminal 构造终端提示器。enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled}
	// CI 环境视为非 TTY
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			t.isTTY = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	return t
}

// RunStart: 记录运行上下文。
func (t *Terminal) RunStart(llm, input string, rows, chunks int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.chunksTotal = chunks
	t.chunksDone = 0
	t.degraded = 0
	t.runStart = time.Now()
	t.println(fmt.Sprintf("[run] llm=%s | 输入 %s | 行 %s | 块 %d",
		safe(llm), shortenBase(input, 48), humanize.Comma(int64(rows)), chunks))
}

// ChunkStart: 块开始处理。TTY 单行覆盖；非 TTY 打点一行。
func (t *Terminal) ChunkStart(index, rows int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	line := fmt.Sprintf("[chunk] #%d/%d | 行 %d | 降级 %d | 用时 %s",
		index+1, t.chunksTotal, rows, t.degraded, formatSince(t.runStart))
	if t.isTTY {
		t.printInline(line)
		return
	}
	t.println(line)
}

// Retry: 单次重试提示。
func (t *Terminal) Retry(index, attempt, attempts int, reason string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.clearInline()
	t.println(fmt.Sprintf("[retry] #%d | 第 %d/%d 次 | %s", index+1, attempt, attempts, safe(reason)))
}

// ChunkFinish: 块结果（succeeded/degraded），mismatch 非空时附带计数修复说明。
func (t *Terminal) ChunkFinish(index int, state, detail string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.chunksDone++
	if state == "degraded" {
		t.degraded++
	}
	t.clearInline()
	line := fmt.Sprintf("[%s] #%d/%d", state, index+1, t.chunksTotal)
	if d := strings.TrimSpace(detail); d != "" {
		line += " | " + safe(d)
	}
	t.println(line)
}

// RunFinish: 结束总览。
func (t *Terminal) RunFinish(ok bool, output string, size int64, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.clearInline()
	if !ok {
		t.println(fmt.Sprintf("[fail] 块 %d/%d | 总用时 %s", t.chunksDone, t.chunksTotal, formatDur(dur)))
		return
	}
	t.println(fmt.Sprintf("[done] 已写出 %s (%s) | 块 %d | 降级 %d | 总用时 %s",
		output, humanize.Bytes(uint64(max(size, 0))), t.chunksDone, t.degraded, formatDur(dur)))
}

func (t *Terminal) println(s string) {
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		// 写失败即禁用
		t.enabled = false
	}
	t.lastLen = 0
}

func (t *Terminal) clearInline() {
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
		_, _ = io.WriteString(t.w, "\r")
		t.lastLen = 0
	}
}

func (t *Terminal) printInline(s string) {
	// \r + 内容 + 清尾空格（新行比旧短时覆盖残留）
	pad := 0
	if l := visLen(s); t.lastLen > l {
		pad = t.lastLen - l
	}
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(s)
	if pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = visLen(s)
}

// shortenBase: 取基名并按可见宽度截断（尾部省略号）。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	if visLen(base) <= max {
		return base
	}
	rs := []rune(base)
	return string(rs[:max-1]) + "…"
}

func visLen(s string) int { return len([]rune(s)) }

func safe(s string) string {
	// 避免换行等控制字符污染终端
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}

func formatSince(t0 time.Time) string {
	if t0.IsZero() {
		return formatDur(0)
	}
	return formatDur(time.Since(t0))
}

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms < 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(d.Milliseconds())/1000.0)
}
