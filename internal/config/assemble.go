package config

import (
	"encoding/json"
	"fmt"

	"llmcsv/internal/diag"
	"llmcsv/internal/generate"
	"llmcsv/internal/pipeline"
	"llmcsv/pkg/contract"
	"llmcsv/pkg/registry"
)

func validateNames(cfg Config) error {
	d := Defaults().Components
	if name := effName(cfg.Components.Reader, d.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered: %w", name, contract.ErrFatalConfig)
	}
	if name := effName(cfg.Components.Batcher, d.Batcher); registry.Batcher[name] == nil {
		return fmt.Errorf("config: batcher %q not registered: %w", name, contract.ErrFatalConfig)
	}
	if name := effName(cfg.Components.PromptBuilder, d.PromptBuilder); registry.PromptBuilder[name] == nil {
		return fmt.Errorf("config: prompt_builder %q not registered: %w", name, contract.ErrFatalConfig)
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered: %w", name, contract.ErrFatalConfig)
	}
	prov := cfg.Provider[cfg.LLM]
	if registry.LLMClient[prov.Client] == nil {
		return fmt.Errorf("config: llm client %q not registered (known: %v): %w", prov.Client, registry.LLMNames(), contract.ErrFatalConfig)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只负责编码为 JSON。
func Assemble(cfg Config, logger *diag.Logger) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults().Components

	r, err := NewReader(cfg)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	b, err := registry.Batcher[effName(cfg.Components.Batcher, d.Batcher)](toRaw(batcherOptions(cfg)))
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	pb, err := registry.PromptBuilder[effName(cfg.Components.PromptBuilder, d.PromptBuilder)](toRaw(promptOptions(cfg)))
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Writer)](toRaw(cfg.Options.Writer))
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	prov := cfg.Provider[cfg.LLM]
	llm, err := registry.LLMClient[prov.Client](toRaw(prov.Options))
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("provider %q: %w", cfg.LLM, err)
	}
	gen := generate.New(llm, cfg.LLM, generate.Policy{MaxRetries: cfg.MaxRetries, Backoff: cfg.RetryBackoff, RPM: prov.RPM}, logger)

	comp := pipeline.Components{
		Reader:        r,
		Batcher:       b,
		PromptBuilder: pb,
		Generator:     gen,
		Writer:        w,
	}
	set := pipeline.Settings{
		Input:         cfg.Input,
		Output:        cfg.Output,
		SourceColumn:  cfg.SourceColumn,
		DerivedColumn: cfg.DerivedColumn,
		ChunkSize:     cfg.ChunkSize,
		LLM:           cfg.LLM,
	}
	return comp, set, nil
}

// NewReader 按配置构造表格读取器（dupes 子命令复用）。
func NewReader(cfg Config) (contract.TableReader, error) {
	return registry.Reader[effName(cfg.Components.Reader, Defaults().Components.Reader)](toRaw(cfg.Options.Reader))
}

// promptOptions: 未显式给出模板时使用 prompt_file。
func promptOptions(cfg Config) map[string]any {
	out := clone(cfg.Options.PromptBuilder)
	_, inline := out["inline_template"]
	_, path := out["template_path"]
	if !inline && !path && cfg.PromptFile != "" {
		out["template_path"] = cfg.PromptFile
	}
	return out
}

// batcherOptions: 未显式给出 max_rows 时使用 chunk_size。
func batcherOptions(cfg Config) map[string]any {
	out := clone(cfg.Options.Batcher)
	if _, ok := out["max_rows"]; !ok && cfg.ChunkSize > 0 {
		out["max_rows"] = cfg.ChunkSize
	}
	return out
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// toRaw: 空 map 视为未提供（工厂使用默认选项）。
func toRaw(m map[string]any) json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		// 由工厂报告解码错误
		return json.RawMessage(`"unencodable options"`)
	}
	return b
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}

// Effective 返回用于调试日志的配置摘要（不含密钥）。
func Effective(cfg Config) map[string]string {
	return map[string]string{
		"input":          cfg.Input,
		"output":         cfg.Output,
		"prompt_file":    cfg.PromptFile,
		"source_column":  cfg.SourceColumn,
		"derived_column": cfg.DerivedColumn,
		"chunk_size":     fmt.Sprint(cfg.ChunkSize),
		"max_retries":    fmt.Sprint(cfg.MaxRetries),
		"retry_backoff":  cfg.RetryBackoff.String(),
		"llm":            cfg.LLM,
		"client":         cfg.Provider[cfg.LLM].Client,
		"rpm":            fmt.Sprint(cfg.Provider[cfg.LLM].RPM),
	}
}
