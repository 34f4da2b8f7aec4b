package extract

import (
	"regexp"
	"strings"
)

var (
	reSpace  = regexp.MustCompile(`\s+`)
	reBullet = regexp.MustCompile(`(?m)^\s*[*\-•]\s*`)
	reFenceL = regexp.MustCompile("^```[A-Za-z0-9_-]*\\s*")
	reFenceR = regexp.MustCompile("\\s*```$")
)

// Normalize 清洗流式拼接文本，使其尽量可被 JSON 解析：
// 字面量 \n 与制表符替换为空格，折叠空白，去掉行首列表符号与代码围栏，首尾去空白。
func Normalize(s string) string {
	s = strings.ReplaceAll(s, `\n`, " ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = reSpace.ReplaceAllString(s, " ")
	s = reBullet.ReplaceAllString(s, "")
	return StripFences(s)
}

// StripFences 去除首尾 ``` 代码围栏（可带语言标记）并去空白。
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = reFenceL.ReplaceAllString(s, "")
	s = reFenceR.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
