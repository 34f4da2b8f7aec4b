package prompt

import "unicode/utf8"

// DefaultBytesPerToken: 近似换算比例（UTF-8 字节/token）。
const DefaultBytesPerToken = 4

// EstimateTokens 返回近似 token 数：ceil(len(utf8_bytes)/bytesPerToken)。
// bytesPerToken<=0 时采用 DefaultBytesPerToken。仅用于诊断日志。
func EstimateTokens(s string, bytesPerToken int) int {
	if bytesPerToken <= 0 {
		bytesPerToken = DefaultBytesPerToken
	}
	n := len(s)
	if n == 0 {
		return 0
	}
	return (n + bytesPerToken - 1) / bytesPerToken
}

// Size 汇总 Prompt 的字节数、字符数与估算 token 数。
type Size struct {
	Bytes  int
	Runes  int
	Tokens int
}

// Measure 计算 s 的 Size（默认换算比例）。
func Measure(s string) Size {
	return Size{Bytes: len(s), Runes: utf8.RuneCountInString(s), Tokens: EstimateTokens(s, 0)}
}
