package extract

import (
	"bufio"
	"strconv"
	"strings"
)

// DataPrefix: 事件流中承载载荷的行前缀。
const DataPrefix = "data: "

// Stream 将事件流响应体还原为答案文本：
// 仅保留 data 行，丢弃纯数字载荷（心跳），按序拼接后归一化。
func Stream(body string) string {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		payload, ok := strings.CutPrefix(line, DataPrefix)
		if !ok || isNumeric(payload) {
			continue
		}
		b.WriteString(payload)
	}
	return Normalize(b.String())
}

// isNumeric: 十进制整数/小数/指数形式，允许首尾空白；不接受 Inf/NaN/十六进制。
func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' && r != 'e' && r != 'E' {
			return false
		}
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
