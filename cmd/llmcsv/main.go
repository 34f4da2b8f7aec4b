package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"llmcsv/internal/config"
	"llmcsv/internal/diag"
	"llmcsv/internal/pipeline"
	"llmcsv/pkg/contract"
)

var pipelineRun = pipeline.Run

// 退出码：0 成功；3 配置或预检致命错误；1 运行期失败。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute 构造命令树并运行，返回进程退出码。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return exitCode(root.ExecuteContext(ctx))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, contract.ErrFatalConfig):
		return exitConfig
	default:
		return exitRuntime
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "llmcsv",
		Short:         "Fill a derived CSV column from a source column via an LLM, chunk by chunk",
		Long:          "llmcsv 读取输入 CSV，按块把源列送入 LLM，生成派生列并一次性写出输出 CSV。\n所有参数来自 llmcsv.yaml / LLMCSV_* 环境变量 / .env。",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runEnrich,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(newDupesCmd(), newInitCmd())
	return root
}

// session: 一次命令执行共享的配置与日志器。
type session struct {
	cfg    config.Config
	logger *diag.Logger
	start  time.Time
	stderr io.Writer
}

// openSession 加载 .env 与配置并建立日志器。
// 配置失败时仍以默认级别记录首个错误。
func openSession(stderr io.Writer) (*session, error) {
	s := &session{start: time.Now(), stderr: stderr}
	corrID := uuid.NewString()
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(stderr, "提示：.env 读取失败（已跳过）：%v\n", err)
	}
	cfg, err := config.Load("", os.Environ())
	if err != nil {
		def := config.Defaults()
		s.logger = diag.NewLogger(corrID, def.Logging.Level, def.Logging.Dir)
		fmt.Fprintf(stderr, "配置错误: %v\n", err)
		s.logger.Error("config", string(diag.Classify(err)), err.Error(), &s.start)
		_ = s.logger.Close()
		return nil, err
	}
	s.cfg = cfg
	s.logger = diag.NewLogger(corrID, cfg.Logging.Level, cfg.Logging.Dir)
	s.logger.DebugStart("config", "effective", "", config.Effective(cfg))
	return s, nil
}

// fail 记录首个错误并计数；取消不打印诊断行。
func (s *session) fail(comp, msg string, err error) error {
	code := diag.Classify(err)
	s.logger.Error(comp, string(code), "first error", &s.start)
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(s.stderr, "%s: %v\n", msg, err)
	}
	return err
}

// close 以 debug 级别转储计数器并关闭日志。
func (s *session) close() {
	snap := diag.Snapshot()
	if len(snap) > 0 {
		kv := make(map[string]string, len(snap))
		for _, k := range diag.SortedKeys(snap) {
			kv[k] = strconv.FormatInt(snap[k], 10)
		}
		s.logger.DebugStart("metrics", "counters", "", kv)
	}
	_ = s.logger.Close()
}

func runEnrich(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.close()

	comp, set, err := config.Assemble(s.cfg, s.logger)
	if err != nil {
		return s.fail("pipeline", "装配失败", err)
	}

	term := diag.NewTerminal(cmd.ErrOrStderr(), s.cfg.Status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	t := s.logger.Start("pipeline", "run")
	sum, err := pipelineRun(cmd.Context(), comp, set, s.logger)
	if err != nil {
		return s.fail("pipeline", "运行失败", err)
	}
	t.Finish("run", int64(sum.Rows))
	diag.ObserveDuration("pipeline", "run", time.Since(s.start).Milliseconds())

	out := cmd.OutOrStdout()
	if sum.Degraded > 0 {
		fmt.Fprintf(out, "⚠️ %d of %d chunks degraded (empty %s values).\n", sum.Degraded, sum.Chunks, set.DerivedColumn)
	}
	fmt.Fprintf(out, "✅ Done! Output written to: %s\n", sum.Output)
	return nil
}
