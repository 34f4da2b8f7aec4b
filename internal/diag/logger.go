package diag

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 为结构化事件日志器：zap JSON 编码，单行写入轮转文件。
// 所有方法对 nil 接收者安全，便于调用方按需关闭日志。
type Logger struct {
	corrID string
	z      *zap.Logger
	sink   *RotatingFile
}

// NewLogger 按 level 初始化，日志写入 dir/llmcsv-current.log，10MiB 轮转。
func NewLogger(corrID, level, dir string) *Logger {
	if strings.TrimSpace(dir) == "" {
		dir = "logs"
	}
	sink := NewRotatingFile(dir, 10*1024*1024)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(sink), parseLevel(level))
	return &Logger{corrID: corrID, z: zap.New(core), sink: sink}
}

// NewLoggerWithCore 使用外部 core 构造（测试中配合 zaptest/observer）。
func NewLoggerWithCore(corrID string, core zapcore.Core) *Logger {
	return &Logger{corrID: corrID, z: zap.New(core)}
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.RFC3339TimeEncoder
	ec.EncodeLevel = zapcore.LowercaseLevelEncoder
	ec.CallerKey = zapcore.OmitKey
	ec.StacktraceKey = zapcore.OmitKey
	return ec
}

func parseLevel(s string) zapcore.Level {
	lv, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lv
}

// Event 为标准事件结构；Stage 取 start|finish|retry|error。
type Event struct {
	Comp  string
	Stage string
	Code  string
	DurMS int64
	Count int64
	Chunk string
	Msg   string
	KV    map[string]string
}

func (l *Logger) log(lv zapcore.Level, ev Event) {
	if l == nil || l.z == nil {
		return
	}
	ce := l.z.Check(lv, ev.Msg)
	if ce == nil {
		return
	}
	fs := make([]zap.Field, 0, 8)
	fs = append(fs, zap.String("corr_id", l.corrID), zap.String("comp", ev.Comp), zap.String("stage", ev.Stage))
	if ev.Code != "" {
		fs = append(fs, zap.String("code", ev.Code))
	}
	if ev.DurMS != 0 {
		fs = append(fs, zap.Int64("dur_ms", ev.DurMS))
	}
	if ev.Count != 0 {
		fs = append(fs, zap.Int64("count", ev.Count))
	}
	if ev.Chunk != "" {
		fs = append(fs, zap.String("chunk", ev.Chunk))
	}
	if len(ev.KV) > 0 {
		fs = append(fs, zap.Any("kv", ev.KV))
	}
	ce.Write(fs...)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWithKV(comp, msg, "", nil)
}

// StartWith 记录带 chunk 的 start。
func (l *Logger) StartWith(comp, msg, chunk string) *Timer {
	return l.StartWithKV(comp, msg, chunk, nil)
}

// StartWithKV 记录带 chunk 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, chunk string, kv map[string]string) *Timer {
	if l == nil {
		return nil
	}
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "start", Chunk: chunk, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, chunk: chunk, t0: time.Now()}
}

// Warn 记录可恢复事件（重试、计数不符等）。
func (l *Logger) Warn(comp, stage, code, msg, chunk string, kv map[string]string) {
	l.log(zapcore.WarnLevel, Event{Comp: comp, Stage: stage, Code: code, Chunk: chunk, Msg: msg, KV: kv})
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", nil)
}

// ErrorWith 支持 chunk。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, chunk string) {
	l.ErrorWithKV(comp, code, msg, durSince, chunk, nil)
}

// ErrorWithKV 支持附带键值对（例如 HTTP 状态码、上游错误片段）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, chunk string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(zapcore.ErrorLevel, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, Chunk: chunk, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg})
}

// DebugStart 输出调试级别的 start 类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, chunk string, kv map[string]string) {
	l.log(zapcore.DebugLevel, Event{Comp: comp, Stage: "start", Chunk: chunk, Msg: msg, KV: kv})
}

// Close 刷新缓冲并关闭文件句柄。
func (l *Logger) Close() error {
	if l == nil || l.z == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l     *Logger
	comp  string
	chunk string
	t0    time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	ObserveDuration(t.comp, "finish", dur)
	t.l.log(zapcore.InfoLevel, Event{Comp: t.comp, Stage: "finish", DurMS: dur, Count: count, Chunk: t.chunk, Msg: msg})
}
