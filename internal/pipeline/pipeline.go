package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"llmcsv/internal/diag"
	"llmcsv/internal/prompt"
	"llmcsv/pkg/contract"
)

// - 严格顺序：块按 Index 依次请求，同一时刻至多一个在途请求。
// - 降级不丢行：块失败时该块派生值全部置空，其余块照常处理。
// - 单次写出：全部块结束后一次性写出整表；写出失败为致命错误。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader        contract.TableReader
	Batcher       contract.Batcher
	PromptBuilder contract.PromptBuilder
	Generator     contract.Generator
	Writer        contract.TableWriter
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Input         string
	Output        string
	SourceColumn  string
	DerivedColumn string
	// ChunkSize: 每块行数；<=0 使用 Batcher 默认。
	ChunkSize int
	// LLM: provider 名，仅用于诊断。
	LLM string
}

// State: 块状态机。
type State string

const (
	StatePending    State = "pending"
	StateRequesting State = "requesting"
	StateSucceeded  State = "succeeded"
	StateDegraded   State = "degraded"
)

// Summary 运行结果总览。
type Summary struct {
	Rows      int
	Chunks    int
	Succeeded int
	Degraded  int
	// Padded/Truncated: 结果项数与块行数不符而被补齐/截断的块数。
	Padded    int
	Truncated int
	Output    string
	Bytes     int64
}

// Run 执行：Reader → Batcher → (PromptBuilder → Generator → 对齐 → 合并)* → Writer。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Summary, error) {
	runStart := time.Now()
	sum := Summary{Output: set.Output}
	if err := sanity(comp, set); err != nil {
		return sum, fmt.Errorf("sanity: %w", err)
	}

	table, err := preflight(ctx, comp, set, logger)
	if err != nil {
		return sum, err
	}
	out := table.Clone()
	dst := out.EnsureColumn(set.DerivedColumn)
	src := out.ColumnIndex(set.SourceColumn)
	sum.Rows = len(out.Rows)

	btimer := logger.Start("batcher", "make")
	chunks, err := comp.Batcher.Make(ctx, out.Rows, contract.BatchLimit{MaxRows: set.ChunkSize})
	if err != nil {
		fail(logger, "batcher", err, "make failed", "")
		return sum, fmt.Errorf("batcher make: %w", err)
	}
	btimer.Finish("make", int64(len(chunks)))
	diag.IncOp("batcher", "finish", "success")
	sum.Chunks = len(chunks)

	term := diag.GetTerminal()
	term.RunStart(set.LLM, set.Input, sum.Rows, len(chunks))
	ok := false
	defer func() {
		if !ok {
			term.RunFinish(false, "", 0, time.Since(runStart))
		}
	}()

	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		state, mismatch := processChunk(ctx, comp, ch, src, dst, logger)
		switch state {
		case StateSucceeded:
			sum.Succeeded++
		case StateDegraded:
			sum.Degraded++
		}
		switch mismatch {
		case mismatchPadded:
			sum.Padded++
		case mismatchTruncated:
			sum.Truncated++
		}
		// 取消时不写出部分结果
		if err := ctx.Err(); err != nil {
			return sum, err
		}
	}

	wtimer := logger.StartWith("writer", "write", "")
	if err := comp.Writer.Write(ctx, set.Output, out); err != nil {
		fail(logger, "writer", err, "write failed", "")
		return sum, fmt.Errorf("writer write: %w", err)
	}
	wtimer.Finish("write", int64(len(out.Rows)))
	diag.IncOp("writer", "finish", "success")
	if fi, err := os.Stat(set.Output); err == nil {
		sum.Bytes = fi.Size()
	}

	ok = true
	term.RunFinish(true, set.Output, sum.Bytes, time.Since(runStart))
	logger.InfoFinish("pipeline", "finish", runStart, int64(sum.Rows))
	diag.IncOp("pipeline", "finish", "success")
	return sum, nil
}

// preflight: 读取输入并校验致命前置条件。
func preflight(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (contract.Table, error) {
	rtimer := logger.StartWith("reader", "read", "")
	table, err := comp.Reader.Read(ctx, set.Input)
	if err != nil {
		fail(logger, "reader", err, "read failed", "")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return table, err
		}
		return table, fmt.Errorf("read input %s: %v: %w", set.Input, err, contract.ErrFatalConfig)
	}
	rtimer.Finish("read", int64(len(table.Rows)))
	diag.IncOp("reader", "finish", "success")

	switch {
	case len(table.Columns) == 0:
		err = fmt.Errorf("input %s has no header: %w", set.Input, contract.ErrFatalConfig)
	case len(table.Rows) == 0:
		err = fmt.Errorf("input %s has no data rows: %w", set.Input, contract.ErrFatalConfig)
	case table.ColumnIndex(set.SourceColumn) < 0:
		err = fmt.Errorf("source column %q not found in %s: %w", set.SourceColumn, set.Input, contract.ErrFatalConfig)
	}
	if err != nil {
		fail(logger, "pipeline", err, err.Error(), "")
		return table, err
	}
	return table, nil
}

type mismatch int

const (
	mismatchNone mismatch = iota
	mismatchPadded
	mismatchTruncated
)

// processChunk 完成单块状态迁移，并将结果写入块内各行的派生列。
func processChunk(ctx context.Context, comp Components, ch contract.Chunk, src, dst int, logger *diag.Logger) (State, mismatch) {
	label := diag.ChunkLabel(ch.Index)
	term := diag.GetTerminal()
	state := StatePending
	logger.DebugStart("pipeline", "chunk", label, map[string]string{
		"state": string(state),
		"from":  strconv.Itoa(ch.From),
		"rows":  strconv.Itoa(ch.Len()),
	})
	term.ChunkStart(ch.Index, ch.Len())

	values := make([]string, ch.Len())
	for i, r := range ch.Rows {
		values[i] = r[src]
	}

	state = StateRequesting
	ctimer := logger.StartWithKV("pipeline", "chunk", label, map[string]string{"state": string(state)})
	result, err := generate(diag.WithChunk(ctx, ch.Index), comp, values, label, logger)

	mm := mismatchNone
	detail := ""
	if err != nil {
		state = StateDegraded
		result = make([]string, ch.Len())
		detail = describe(err)
		logger.Warn("pipeline", "degraded", string(diag.Classify(err)), "chunk degraded", label, map[string]string{"reason": detail})
		diag.IncOp("pipeline", "chunk", string(StateDegraded))
	} else {
		state = StateSucceeded
		var n int
		result, mm, n = reconcile(result, ch.Len())
		if mm != mismatchNone {
			detail = fmt.Sprintf("expected %d results, got %d", ch.Len(), n)
			logger.Warn("pipeline", "mismatch", "invariant", detail, label, map[string]string{
				"expected": strconv.Itoa(ch.Len()),
				"got":      strconv.Itoa(n),
			})
			diag.IncOp("pipeline", "mismatch", "mismatch")
		}
		diag.IncOp("pipeline", "chunk", string(StateSucceeded))
	}
	for i, r := range ch.Rows {
		r[dst] = result[i]
	}
	ctimer.Finish(string(state), int64(ch.Len()))
	term.ChunkFinish(ch.Index, string(state), detail)
	return state, mm
}

// generate: 构造 Prompt 并请求生成；任一步失败即返回错误（由调用方降级）。
func generate(ctx context.Context, comp Components, values []string, label string, logger *diag.Logger) ([]string, error) {
	ptimer := logger.StartWith("prompt_builder", "build", label)
	p, err := comp.PromptBuilder.Build(ctx, values)
	if err != nil {
		fail(logger, "prompt_builder", err, "build failed", label)
		return nil, fmt.Errorf("prompt build: %w", err)
	}
	ptimer.Finish("build", int64(len(values)))
	diag.IncOp("prompt_builder", "finish", "success")
	sz := prompt.Measure(string(p))
	logger.DebugStart("prompt_builder", "size", label, map[string]string{
		"bytes":      strconv.Itoa(sz.Bytes),
		"runes":      strconv.Itoa(sz.Runes),
		"est_tokens": strconv.Itoa(sz.Tokens),
	})
	return comp.Generator.Generate(ctx, p)
}

// reconcile 将结果对齐到 n 项：不足补空串，超出截断。返回原始项数。
func reconcile(result []string, n int) ([]string, mismatch, int) {
	got := len(result)
	switch {
	case got == n:
		return result, mismatchNone, got
	case got < n:
		out := make([]string, n)
		copy(out, result)
		return out, mismatchPadded, got
	default:
		return result[:n:n], mismatchTruncated, got
	}
}

func describe(err error) string {
	switch {
	case errors.Is(err, contract.ErrRetriesExhausted):
		return "retries exhausted"
	case errors.Is(err, contract.ErrTransport):
		return "transport error"
	default:
		msg := err.Error()
		if len(msg) > 120 {
			msg = msg[:120]
		}
		return strings.TrimSpace(msg)
	}
}

// fail: 统一错误日志与计数。
func fail(logger *diag.Logger, comp string, err error, msg, label string) {
	code := diag.Classify(err)
	logger.ErrorWith(comp, string(code), msg, nil, label)
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Batcher == nil || c.PromptBuilder == nil || c.Generator == nil || c.Writer == nil {
		return fmt.Errorf("missing component: %w", contract.ErrFatalConfig)
	}
	if strings.TrimSpace(s.Input) == "" || strings.TrimSpace(s.Output) == "" {
		return fmt.Errorf("input/output path required: %w", contract.ErrFatalConfig)
	}
	if s.SourceColumn == "" || s.DerivedColumn == "" {
		return fmt.Errorf("source/derived column required: %w", contract.ErrFatalConfig)
	}
	return nil
}
