package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"llmcsv/pkg/contract"
)

const (
	// EnvPrefix: 环境变量前缀。
	EnvPrefix = "LLMCSV"
	// DefaultFile: 工作目录下的默认配置文件。
	DefaultFile = "llmcsv.yaml"
	// EnvConfigFile: 显式指定配置文件路径。
	EnvConfigFile = EnvPrefix + "_CONFIG_FILE"
)

// Defaults 返回带有安全默认值的 Config。
func Defaults() Config {
	return Config{
		Input:         "input.csv",
		Output:        "output.csv",
		PromptFile:    "PROMPT.txt",
		SourceColumn:  "نام",
		DerivedColumn: "نامک",
		ChunkSize:     10,
		MaxRetries:    3,
		RetryBackoff:  2 * time.Second,
		Status:        true,
		Logging:       Logging{Level: "info", Dir: "logs"},
		Components: Components{
			Reader:        "fs",
			Batcher:       "fixed",
			PromptBuilder: "placeholder",
			Writer:        "fs",
		},
		LLM: "talkai",
		Provider: map[string]Provider{
			"talkai": {Client: "talkai"},
			"openai": {Client: "openai"},
			"gemini": {Client: "gemini"},
			"mock":   {Client: "mock"},
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("input", d.Input)
	v.SetDefault("output", d.Output)
	v.SetDefault("prompt_file", d.PromptFile)
	v.SetDefault("source_column", d.SourceColumn)
	v.SetDefault("derived_column", d.DerivedColumn)
	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("retry_backoff", d.RetryBackoff)
	v.SetDefault("status", d.Status)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.dir", d.Logging.Dir)
	v.SetDefault("components.reader", d.Components.Reader)
	v.SetDefault("components.batcher", d.Components.Batcher)
	v.SetDefault("components.prompt_builder", d.Components.PromptBuilder)
	v.SetDefault("components.writer", d.Components.Writer)
	v.SetDefault("llm", d.LLM)
	for name, p := range d.Provider {
		v.SetDefault("provider."+name+".client", p.Client)
	}
}

// LoadDotEnv 读取 .env（不存在则忽略；不覆盖已存在的环境变量）。
func LoadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("dotenv %s: %v: %w", path, err, contract.ErrFatalConfig)
	}
	return nil
}

// Load 解析配置：默认值 → 配置文件 → LLMCSV_* 环境变量 → provider 环境覆盖，随后校验。
// path 为空时依次尝试 $LLMCSV_CONFIG_FILE 与 ./llmcsv.yaml（后者缺失不报错）。
func Load(path string, environ []string) (Config, error) {
	var cfg Config
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		if p := lookupEnv(environ, EnvConfigFile); p != "" {
			path, explicit = p, true
		} else {
			path = DefaultFile
		}
	}
	if _, err := os.Stat(path); err == nil || explicit {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config file failed (%s): %v: %w", path, err, contract.ErrFatalConfig)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config failed: %v: %w", err, contract.ErrFatalConfig)
	}
	if err := applyProviderEnv(&cfg, environ); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyProviderEnv 从环境变量覆盖 provider 定义。
// 支持 LLMCSV_PROVIDER__<name>__{CLIENT,RPM,OPTIONS_JSON}；name 不区分大小写。
func applyProviderEnv(cfg *Config, environ []string) error {
	prefix := EnvPrefix + "_PROVIDER__"
	for _, kv := range environ {
		if !strings.HasPrefix(kv, prefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		key, val := kv[len(prefix):eq], strings.TrimSpace(kv[eq+1:])
		parts := strings.SplitN(key, "__", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || val == "" {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		if cfg.Provider == nil {
			cfg.Provider = map[string]Provider{}
		}
		p := cfg.Provider[name]
		switch parts[1] {
		case "CLIENT":
			p.Client = val
		case "RPM":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("%s: %v: %w", kv[:eq], err, contract.ErrFatalConfig)
			}
			p.RPM = n
		case "OPTIONS_JSON":
			var m map[string]any
			if err := json.Unmarshal([]byte(val), &m); err != nil {
				return fmt.Errorf("%s: %v: %w", kv[:eq], err, contract.ErrFatalConfig)
			}
			p.Options = m
		default:
			continue
		}
		cfg.Provider[name] = p
	}
	return nil
}

func lookupEnv(environ []string, key string) string {
	for _, kv := range environ {
		if strings.HasPrefix(kv, key+"=") {
			return strings.TrimSpace(kv[len(key)+1:])
		}
	}
	return ""
}

var validate = validator.New()

// Validate 结构校验 + 注册表名称校验。
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return fmt.Errorf("config: %s failed %q (value %v): %w", fe.Namespace(), fe.Tag(), fe.Value(), contract.ErrFatalConfig)
		}
		return fmt.Errorf("config: %v: %w", err, contract.ErrFatalConfig)
	}
	if cfg.SourceColumn == cfg.DerivedColumn {
		return fmt.Errorf("config: source_column and derived_column must differ: %w", contract.ErrFatalConfig)
	}
	if _, ok := cfg.Provider[cfg.LLM]; !ok {
		return fmt.Errorf("config: provider %q not found: %w", cfg.LLM, contract.ErrFatalConfig)
	}
	return validateNames(cfg)
}
