package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds engine configuration. Fields left at their zero value
// are filled in by LoadConfig from the environment, the config file and
// finally the hardcoded defaults, in that order of precedence. For
// ContextSize, MaxTokens and Timeout a zero override means "use the
// default"; Temperature is a pointer because zero is a meaningful
// setting (greedy decoding) — set it with Float.
type Config struct {
	Engine      string        `mapstructure:"engine"`       // backend name: llama-cpp, openai, anthropic
	Model       string        `mapstructure:"model"`        // registry key or cloud model ID
	ModelPath   string        `mapstructure:"model_path"`   // explicit GGUF path, overrides registry resolution
	APIKey      string        `mapstructure:"api_key"`      // cloud backends only
	BaseURL     string        `mapstructure:"base_url"`     // custom endpoint, any backend
	CacheDir    string        `mapstructure:"cache_dir"`    // result cache and downloaded models live here
	ContextSize int           `mapstructure:"context_size"` // llama.cpp context window
	GPULayers   int           `mapstructure:"gpu_layers"`   // llama.cpp offloaded layers
	MaxTokens   int           `mapstructure:"max_tokens"`   // per-item generation bound
	Temperature *float64      `mapstructure:"temperature"`  // nil = default
	Timeout     time.Duration `mapstructure:"timeout"`
}

const defaultTemperature = 0.1

// Float returns a pointer to v, for the Config fields where zero and
// unset mean different things.
func Float(v float64) *float64 {
	return &v
}

// SamplingTemperature returns the effective sampling temperature.
func (c Config) SamplingTemperature() float64 {
	if c.Temperature == nil {
		return defaultTemperature
	}
	return *c.Temperature
}

// DefaultConfig returns the hardcoded defaults.
func DefaultConfig() Config {
	return Config{
		Engine:      "llama-cpp",
		Model:       "phi-3-mini",
		CacheDir:    defaultCacheDir(),
		ContextSize: 4096,
		MaxTokens:   256,
		Temperature: Float(defaultTemperature),
		Timeout:     120 * time.Second,
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "loclean")
	}
	return filepath.Join(".", ".loclean-cache")
}

// LoadConfig resolves the effective configuration. Precedence, highest
// first: non-zero fields of the overrides argument, LOCLEAN_* env vars,
// the .loclean.yaml config file, hardcoded defaults.
func LoadConfig(overrides Config) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LOCLEAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("engine", def.Engine)
	v.SetDefault("model", def.Model)
	v.SetDefault("model_path", "")
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("cache_dir", def.CacheDir)
	v.SetDefault("context_size", def.ContextSize)
	v.SetDefault("gpu_layers", def.GPULayers)
	v.SetDefault("max_tokens", def.MaxTokens)
	v.SetDefault("temperature", defaultTemperature)
	v.SetDefault("timeout", def.Timeout)

	v.SetConfigName(".loclean")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg.merge(overrides), nil
}

// merge applies the non-zero fields of overrides on top of cfg.
func (c Config) merge(overrides Config) Config {
	if overrides.Engine != "" {
		c.Engine = overrides.Engine
	}
	if overrides.Model != "" {
		c.Model = overrides.Model
	}
	if overrides.ModelPath != "" {
		c.ModelPath = overrides.ModelPath
	}
	if overrides.APIKey != "" {
		c.APIKey = overrides.APIKey
	}
	if overrides.BaseURL != "" {
		c.BaseURL = overrides.BaseURL
	}
	if overrides.CacheDir != "" {
		c.CacheDir = overrides.CacheDir
	}
	if overrides.ContextSize != 0 {
		c.ContextSize = overrides.ContextSize
	}
	if overrides.GPULayers != 0 {
		c.GPULayers = overrides.GPULayers
	}
	if overrides.MaxTokens != 0 {
		c.MaxTokens = overrides.MaxTokens
	}
	if overrides.Temperature != nil {
		c.Temperature = overrides.Temperature
	}
	if overrides.Timeout != 0 {
		c.Timeout = overrides.Timeout
	}
	return c
}
