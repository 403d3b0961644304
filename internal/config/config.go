// Package config loads dsflow settings from defaults, an optional YAML file
// and DSFLOW_* environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/dsflow/internal/logging"
	"github.com/aretw0/dsflow/pkg/domain"
)

// Config is the complete application configuration.
type Config struct {
	Agent     AgentConfig     `mapstructure:"agent"`
	Execution ExecutionConfig `mapstructure:"execution"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Store     StoreConfig     `mapstructure:"store"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// AgentConfig bounds the workflow loops.
type AgentConfig struct {
	MaxImprovements     int    `mapstructure:"max_improvements"`
	MaxExecutionRetries int    `mapstructure:"max_execution_retries"`
	MaxRejections       int    `mapstructure:"max_rejections"`
	RecursionLimit      int    `mapstructure:"recursion_limit"`
	Language            string `mapstructure:"language"`
	TranslateInput      bool   `mapstructure:"translate_input"`
}

// Limits converts the agent bounds to domain limits.
func (a AgentConfig) Limits() domain.Limits {
	return domain.Limits{
		MaxImprovements:     a.MaxImprovements,
		MaxExecutionRetries: a.MaxExecutionRetries,
		MaxRejections:       a.MaxRejections,
	}
}

// ExecutionConfig selects and configures the sandbox backend.
type ExecutionConfig struct {
	Backend      string        `mapstructure:"backend"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Interpreter  string        `mapstructure:"interpreter"`
	WorkDir      string        `mapstructure:"work_dir"`
	DatasetsDir  string        `mapstructure:"datasets_dir"`
	ModelsDir    string        `mapstructure:"models_dir"`
	ScriptsFile  string        `mapstructure:"scripts_file"`
	RemoteURL    string        `mapstructure:"remote_url"`
	RemoteAPIKey string        `mapstructure:"remote_api_key"`
}

// LLMConfig configures the OpenAI-compatible model endpoint.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	// ModelOverrides maps a step ID to the model serving it.
	ModelOverrides map[string]string `mapstructure:"model_overrides"`
	Retry          RetryConfig       `mapstructure:"retry"`
}

// Overrides returns the per-step model table keyed by step.
func (l LLMConfig) Overrides() map[domain.StepID]string {
	out := make(map[domain.StepID]string, len(l.ModelOverrides))
	for k, v := range l.ModelOverrides {
		out[domain.StepID(k)] = v
	}
	return out
}

type RetryConfig struct {
	Attempts  int           `mapstructure:"attempts"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
	MaxDelay  time.Duration `mapstructure:"max_delay"`
}

// StoreConfig selects where finished runs are kept.
type StoreConfig struct {
	Backend string        `mapstructure:"backend"`
	Path    string        `mapstructure:"path"`
	Redis   RedisConfig   `mapstructure:"redis"`
	TTL     time.Duration `mapstructure:"ttl"`
	// EncryptionKey is a base64 AES-256 key. When set, states are sealed
	// at rest; FallbackKeys still decrypt states sealed before a rotation.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
	// PIIColumns are patterns of dataset columns whose preview values are
	// masked before saving.
	PIIColumns []string `mapstructure:"pii_columns"`
}

// Keys decodes the encryption keys. active is nil when encryption is off.
func (s StoreConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(s.EncryptionKey); err != nil {
		return nil, nil, err
	}
	for _, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Backends accepted by the loader.
const (
	ExecutionLocal  = "local"
	ExecutionRemote = "remote"

	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// ValidationError reports one invalid setting.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid setting.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for values the runtime cannot use.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if c.Agent.MaxImprovements < 0 {
		add("agent.max_improvements", c.Agent.MaxImprovements, "must be non-negative")
	}
	if c.Agent.MaxExecutionRetries < 0 {
		add("agent.max_execution_retries", c.Agent.MaxExecutionRetries, "must be non-negative")
	}
	if c.Agent.MaxRejections < 0 {
		add("agent.max_rejections", c.Agent.MaxRejections, "must be non-negative")
	}
	if c.Agent.RecursionLimit < 1 {
		add("agent.recursion_limit", c.Agent.RecursionLimit, "must be positive")
	}

	switch c.Execution.Backend {
	case ExecutionLocal:
	case ExecutionRemote:
		if c.Execution.RemoteURL == "" {
			add("execution.remote_url", c.Execution.RemoteURL, "required for the remote backend")
		}
	default:
		add("execution.backend", c.Execution.Backend, "must be local or remote")
	}
	if c.Execution.Timeout <= 0 {
		add("execution.timeout", c.Execution.Timeout, "must be positive")
	}

	switch c.Store.Backend {
	case StoreMemory, StoreFile, StoreSQLite:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			add("store.redis.addr", c.Store.Redis.Addr, "required for the redis store")
		}
	default:
		add("store.backend", c.Store.Backend, "must be memory, file, redis or sqlite")
	}

	if _, _, err := c.Store.Keys(); err != nil {
		add("store.encryption_key", "<redacted>", err.Error())
	}
	for _, p := range c.Store.PIIColumns {
		if _, err := regexp.Compile(p); err != nil {
			add("store.pii_columns", p, "invalid pattern")
		}
	}

	if c.LLM.Retry.Attempts < 1 {
		add("llm.retry.attempts", c.LLM.Retry.Attempts, "must be at least 1")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level", c.Log.Level, "must be debug, info, warn or error")
	}
	for step := range c.LLM.ModelOverrides {
		if id := domain.StepID(step); !id.Valid() || id == domain.StepEnd {
			add("llm.model_overrides", step, "unknown step")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
