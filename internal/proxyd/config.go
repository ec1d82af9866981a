package proxyd

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config controls the proxy daemon. Values resolve in order: built-in
// defaults, then the optional YAML file, then PROXYD_* environment
// variables.
type Config struct {
	Addr           string        `yaml:"addr" envconfig:"ADDR"`
	AllowedOrigins []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	LogLevel       string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

func DefaultConfig() Config {
	return Config{
		Addr:           ":8787",
		AllowedOrigins: []string{"*"},
		RequestTimeout: 60 * time.Second,
		MaxBodyBytes:   32 << 20,
		LogLevel:       "info",
	}
}

// LoadConfig merges the optional YAML file at path (empty means none) and
// the environment on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("proxyd: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("proxyd: parse config: %w", err)
		}
	}

	if err := envconfig.Process("proxyd", &cfg); err != nil {
		return Config{}, fmt.Errorf("proxyd: env config: %w", err)
	}

	if cfg.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("proxyd: request_timeout must be positive")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("proxyd: max_body_bytes must be positive")
	}
	return cfg, nil
}
