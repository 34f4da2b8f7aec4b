package diag

import (
	"sort"
	"sync"
)

// 进程内计数器：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累加）
var counters = struct {
	mu sync.Mutex
	m  map[string]int64
}{m: map[string]int64{}}

func add(key string, n int64) {
	counters.mu.Lock()
	counters.m[key] += n
	counters.mu.Unlock()
}

// IncOp 累加操作计数（result=success|error|degraded）。
func IncOp(comp, stage, result string) {
	add("op_total{"+comp+","+stage+","+result+"}", 1)
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	add("error_total{"+comp+","+code+"}", 1)
}

// ObserveDuration 累加阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	add("op_duration_ms{"+comp+","+stage+"}", durMS)
}

// Snapshot 返回当前计数副本（键有序，便于日志输出）。
func Snapshot() map[string]int64 {
	counters.mu.Lock()
	defer counters.mu.Unlock()
	out := make(map[string]int64, len(counters.m))
	for k, v := range counters.m {
		out[k] = v
	}
	return out
}

// SortedKeys 返回 Snapshot 的有序键。
func SortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResetCounters 清空计数（测试用）。
func ResetCounters() {
	counters.mu.Lock()
	counters.m = map[string]int64{}
	counters.mu.Unlock()
}
