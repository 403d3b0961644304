package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "DSFLOW",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (DSFLOW_*)
// 3. dsflow.yaml in the current directory, then ~/.config/dsflow
// 4. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("dsflow")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "dsflow"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("agent.max_improvements", 5)
	l.v.SetDefault("agent.max_execution_retries", 3)
	l.v.SetDefault("agent.max_rejections", 3)
	l.v.SetDefault("agent.recursion_limit", 1000)
	l.v.SetDefault("agent.language", "en")
	l.v.SetDefault("agent.translate_input", false)

	l.v.SetDefault("execution.backend", ExecutionLocal)
	l.v.SetDefault("execution.timeout", "3000s")
	l.v.SetDefault("execution.interpreter", "python3")
	l.v.SetDefault("execution.work_dir", ".dsflow/work")
	l.v.SetDefault("execution.datasets_dir", "datasets")
	l.v.SetDefault("execution.models_dir", "models")
	l.v.SetDefault("execution.scripts_file", "scripts.yaml")
	l.v.SetDefault("execution.remote_url", "")
	l.v.SetDefault("execution.remote_api_key", "")

	l.v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	l.v.SetDefault("llm.api_key", "")
	l.v.SetDefault("llm.model", "gpt-4o-mini")
	l.v.SetDefault("llm.temperature", 0.0)
	l.v.SetDefault("llm.model_overrides", map[string]string{})
	l.v.SetDefault("llm.retry.attempts", 5)
	l.v.SetDefault("llm.retry.base_delay", "4s")
	l.v.SetDefault("llm.retry.max_delay", "10s")

	l.v.SetDefault("store.backend", StoreMemory)
	l.v.SetDefault("store.path", ".dsflow/runs")
	l.v.SetDefault("store.redis.addr", "localhost:6379")
	l.v.SetDefault("store.redis.password", "")
	l.v.SetDefault("store.redis.db", 0)
	l.v.SetDefault("store.ttl", "0s")
	l.v.SetDefault("store.encryption_key", "")
	l.v.SetDefault("store.fallback_keys", []string{})
	l.v.SetDefault("store.pii_columns", []string{})

	l.v.SetDefault("server.addr", ":8080")
	l.v.SetDefault("log.level", "info")
}
