package rate

import (
	"context"
	"sync"
	"time"
)

// Limiter: 单个 provider 的请求节流（令牌桶，按分钟匀速补充，容量为 RPM）。
// nil 表示不限额；所有方法对 nil 接收者安全。
type Limiter struct {
	mu    sync.Mutex
	clk   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	cap   int
	level float64
	rate  float64 // 令牌/秒
	last  time.Time
}

// 最小睡眠粒度，避免忙等。
const minSleep = 10 * time.Millisecond

// New 按每分钟请求数构造；rpm<=0 返回 nil。clk 为空则使用 time.Now。
func New(rpm int, clk func() time.Time) *Limiter {
	if rpm <= 0 {
		return nil
	}
	if clk == nil {
		clk = time.Now
	}
	return &Limiter{
		clk:   clk,
		sleep: sleepCtx,
		cap:   rpm,
		level: float64(rpm),
		rate:  float64(rpm) / 60.0,
		last:  clk(),
	}
}

func (l *Limiter) refill(now time.Time) {
	if now.Before(l.last) {
		// 时钟回拨视为无时间流逝
		return
	}
	l.level += now.Sub(l.last).Seconds() * l.rate
	if l.level > float64(l.cap) {
		l.level = float64(l.cap)
	}
	l.last = now
}

// Try 非阻塞取一个令牌。
func (l *Limiter) Try() bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.clk())
	if l.level >= 1 {
		l.level--
		return true
	}
	return false
}

// Wait 阻塞直到取得一个令牌或 ctx 取消。
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.mu.Lock()
		l.refill(l.clk())
		if l.level >= 1 {
			l.level--
			l.mu.Unlock()
			return nil
		}
		d := time.Duration((1-l.level)/l.rate*float64(time.Second)) + minSleep
		l.mu.Unlock()
		if err := l.sleep(ctx, d); err != nil {
			return err
		}
	}
}

// Available 返回当前可用令牌数（向下取整，仅诊断）。
func (l *Limiter) Available() int {
	if l == nil {
		return -1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.clk())
	return int(l.level)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
