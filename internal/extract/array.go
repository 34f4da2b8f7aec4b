package extract

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"llmcsv/pkg/contract"
)

// itemsSchema: 答案数组的元素约束；标量之外（对象/嵌套数组）视为格式错误。
const itemsSchema = `{
  "type": "array",
  "items": {"type": ["string", "number", "boolean", "null"]}
}`

var arraySchema = mustCompile(itemsSchema)

func mustCompile(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("items.json", strings.NewReader(raw)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("items.json")
}

// StringArray 将答案文本解析为有序字符串数组。
// 数字与布尔按字面文本，null 记为空串。
func StringArray(text string) ([]string, error) {
	text = StripFences(text)
	if text == "" {
		return nil, contract.ErrEmptyContent
	}
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("answer is not json: %w", contract.ErrMalformedOutput)
	}
	res := gjson.Parse(text)
	if !res.IsArray() {
		return nil, fmt.Errorf("answer is not an array: %w", contract.ErrMalformedOutput)
	}
	if err := arraySchema.Validate(res.Value()); err != nil {
		return nil, fmt.Errorf("answer items: %v: %w", err, contract.ErrMalformedOutput)
	}
	items := res.Array()
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.Type == gjson.Null {
			out = append(out, "")
			continue
		}
		out = append(out, it.String())
	}
	return out, nil
}
