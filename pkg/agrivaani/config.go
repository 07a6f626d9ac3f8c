package agrivaani

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/agrivaani/agrivaani/pkg/locale"
)

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	Recognizer  VendorConfig `mapstructure:"recognizer"`
	Synthesizer VendorConfig `mapstructure:"synthesizer"`
	Responder   VendorConfig `mapstructure:"responder"`
}

type ResponseConfig struct {
	MinDelayMS int `mapstructure:"min_delay_ms"`
	MaxDelayMS int `mapstructure:"max_delay_ms"`
}

type BridgeConfig struct {
	Addr string `mapstructure:"addr"`
}

type Config struct {
	Environment       string         `mapstructure:"environment"`
	LogLevel          string         `mapstructure:"log_level"`
	Language          string         `mapstructure:"language"`
	ContinuousCapture bool           `mapstructure:"continuous_capture"`
	Vendors           VendorsConfig  `mapstructure:"vendors"`
	Response          ResponseConfig `mapstructure:"response"`
	Bridge            BridgeConfig   `mapstructure:"bridge"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("language", locale.DefaultLanguage)
	v.SetDefault("continuous_capture", false)
	v.SetDefault("vendors.recognizer.provider", "sim")
	v.SetDefault("vendors.synthesizer.provider", "sim")
	v.SetDefault("vendors.responder.provider", "local")
	v.SetDefault("response.min_delay_ms", 1000)
	v.SetDefault("response.max_delay_ms", 3000)
	v.SetDefault("bridge.addr", "")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.Recognizer.Provider) == "" {
		return fmt.Errorf("vendors.recognizer.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Synthesizer.Provider) == "" {
		return fmt.Errorf("vendors.synthesizer.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Responder.Provider) == "" {
		return fmt.Errorf("vendors.responder.provider is required")
	}
	if !locale.Supported(c.Language) {
		return fmt.Errorf("language %q is not supported", c.Language)
	}
	if c.Response.MaxDelayMS < c.Response.MinDelayMS {
		return fmt.Errorf("response.max_delay_ms must be >= response.min_delay_ms")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	cfg.Environment = os.ExpandEnv(cfg.Environment)
	cfg.LogLevel = os.ExpandEnv(cfg.LogLevel)
	cfg.Language = os.ExpandEnv(cfg.Language)
	cfg.Bridge.Addr = os.ExpandEnv(cfg.Bridge.Addr)
	cfg.Vendors.Recognizer.Settings = expandSettings(cfg.Vendors.Recognizer.Settings)
	cfg.Vendors.Synthesizer.Settings = expandSettings(cfg.Vendors.Synthesizer.Settings)
	cfg.Vendors.Responder.Settings = expandSettings(cfg.Vendors.Responder.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}
