package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"llmcsv/pkg/contract"
	fixed "llmcsv/plugins/batcher/fixed"
	flaky "llmcsv/plugins/llmclient/flaky"
	gmi "llmcsv/plugins/llmclient/gemini"
	mock "llmcsv/plugins/llmclient/mock"
	oai "llmcsv/plugins/llmclient/openai"
	tai "llmcsv/plugins/llmclient/talkai"
	pph "llmcsv/plugins/prompt/placeholder"
	rfs "llmcsv/plugins/reader/filesystem"
	wfs "llmcsv/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeOptions: 严格解码失败统一归为配置错误。
func decodeOptions(kind string, raw json.RawMessage, v any) error {
	if err := strictUnmarshal(raw, v); err != nil {
		return fmt.Errorf("%s options: %v: %w", kind, err, contract.ErrFatalConfig)
	}
	return nil
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.TableReader, error)

// NewBatcher 工厂签名：接收原样 JSON Options。
type NewBatcher func(raw json.RawMessage) (contract.Batcher, error)

// NewPromptBuilder 工厂签名：接收原样 JSON Options。
type NewPromptBuilder func(raw json.RawMessage) (contract.PromptBuilder, error)

// NewLLMClient 工厂签名：接收原样 JSON Options。
type NewLLMClient func(raw json.RawMessage) (contract.LLMClient, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.TableWriter, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN CSV Reader
	"fs": func(raw json.RawMessage) (contract.TableReader, error) {
		var opts rfs.Options
		if err := decodeOptions("reader", raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts)
	},
}

// Batcher 工厂注册表。
var Batcher = map[string]NewBatcher{
	// fixed: 固定行数连续分块
	"fixed": func(raw json.RawMessage) (contract.Batcher, error) {
		var opts fixed.Options
		if err := decodeOptions("batcher", raw, &opts); err != nil {
			return nil, err
		}
		return fixed.New(&opts), nil
	},
}

// PromptBuilder 工厂注册表。
var PromptBuilder = map[string]NewPromptBuilder{
	// placeholder: 模板中的 $INPUTS 替换为源值 JSON 数组
	"placeholder": func(raw json.RawMessage) (contract.PromptBuilder, error) {
		var opts pph.Options
		if err := decodeOptions("prompt", raw, &opts); err != nil {
			return nil, err
		}
		return pph.New(&opts)
	},
}

// LLMClient 工厂注册表。各 provider 自行严格解码。
var LLMClient = map[string]NewLLMClient{
	"openai": func(raw json.RawMessage) (contract.LLMClient, error) { return oai.New(raw) },
	"talkai": func(raw json.RawMessage) (contract.LLMClient, error) { return tai.New(raw) },
	"gemini": func(raw json.RawMessage) (contract.LLMClient, error) { return gmi.New(raw) },
	"mock":   func(raw json.RawMessage) (contract.LLMClient, error) { return mock.New(raw) },
	"flaky":  func(raw json.RawMessage) (contract.LLMClient, error) { return flaky.New(raw) },
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 CSV Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.TableWriter, error) {
		var opts wfs.Options
		if err := decodeOptions("writer", raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// LLMNames 返回已注册 provider 名（排序）。
func LLMNames() []string {
	out := make([]string, 0, len(LLMClient))
	for k := range LLMClient {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
