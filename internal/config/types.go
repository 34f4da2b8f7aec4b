package config

import "time"

// Config: 运行期只读配置（一次解析，运行期不变）。
// 键使用 snake_case；来源优先级：默认值 < llmcsv.yaml < LLMCSV_* 环境变量。
type Config struct {
	Input         string `mapstructure:"input" yaml:"input" validate:"required"`
	Output        string `mapstructure:"output" yaml:"output" validate:"required"`
	PromptFile    string `mapstructure:"prompt_file" yaml:"prompt_file"`
	SourceColumn  string `mapstructure:"source_column" yaml:"source_column" validate:"required"`
	DerivedColumn string `mapstructure:"derived_column" yaml:"derived_column" validate:"required"`
	ChunkSize     int    `mapstructure:"chunk_size" yaml:"chunk_size" validate:"min=1"`
	// MaxRetries: 首次之外的最大重试次数（>=0）。0 表示不重试。
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"-" validate:"min=0"`
	// Status: 终端进度提示开关。
	Status  bool    `mapstructure:"status" yaml:"status"`
	Logging Logging `mapstructure:"logging" yaml:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `mapstructure:"components" yaml:"components"`

	// LLM Provider 选择与定义。
	LLM      string              `mapstructure:"llm" yaml:"llm" validate:"required"`
	Provider map[string]Provider `mapstructure:"provider" yaml:"provider" validate:"dive"`

	// 各组件 Options 子树，编码为 JSON 后交由工厂严格解码。
	Options Options `mapstructure:"options" yaml:"options"`
}

// Logging: 日志等级与目录。
type Logging struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `mapstructure:"dir" yaml:"dir" validate:"required"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader        string `mapstructure:"reader" yaml:"reader"`
	Batcher       string `mapstructure:"batcher" yaml:"batcher"`
	PromptBuilder string `mapstructure:"prompt_builder" yaml:"prompt_builder"`
	Writer        string `mapstructure:"writer" yaml:"writer"`
}

// Options: 各组件的自由 Options。
type Options struct {
	Reader        map[string]any `mapstructure:"reader" yaml:"reader,omitempty"`
	Batcher       map[string]any `mapstructure:"batcher" yaml:"batcher,omitempty"`
	PromptBuilder map[string]any `mapstructure:"prompt_builder" yaml:"prompt_builder,omitempty"`
	Writer        map[string]any `mapstructure:"writer" yaml:"writer,omitempty"`
}

// Provider: 命名 provider 定义（client 实现 + options）。
type Provider struct {
	Client  string         `mapstructure:"client" yaml:"client" validate:"required"`
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
	// RPM: 每分钟请求上限（含重试）；0 表示不限。
	RPM int `mapstructure:"rpm" yaml:"rpm,omitempty" validate:"min=0"`
}
