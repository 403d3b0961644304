package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/dsflow"
	"github.com/aretw0/dsflow/internal/config"
	"github.com/aretw0/dsflow/internal/prompts"
	"github.com/aretw0/dsflow/internal/retry"
	"github.com/aretw0/dsflow/pkg/adapters/file"
	"github.com/aretw0/dsflow/pkg/adapters/memory"
	"github.com/aretw0/dsflow/pkg/adapters/openai"
	"github.com/aretw0/dsflow/pkg/adapters/process"
	"github.com/aretw0/dsflow/pkg/adapters/redis"
	"github.com/aretw0/dsflow/pkg/adapters/remote"
	"github.com/aretw0/dsflow/pkg/adapters/sqlite"
	"github.com/aretw0/dsflow/pkg/observability"
	"github.com/aretw0/dsflow/pkg/persistence/middleware"
	"github.com/aretw0/dsflow/pkg/ports"
)

// app bundles the assistant with the resources that must be released on
// exit.
type app struct {
	assistant *dsflow.Assistant
	store     ports.RunStore
	closers   []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// buildApp wires every adapter selected by cfg. Metrics are recorded only
// when reg is non-nil.
func buildApp(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*app, error) {
	a := &app{}

	store, locker, closer, err := buildStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	mws, err := storeMiddlewares(cfg.Store)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.store = middleware.Chain(store, mws...)

	sandboxes, err := buildSandboxProvider(cfg.Execution)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	registry, err := process.LoadScripts(cfg.Execution.ScriptsFile)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	scripts := process.NewScriptRunner(
		process.WithRegistry(registry),
		process.WithScriptTimeout(cfg.Execution.Timeout),
	)

	hooks := observability.LoggingHooks(logger)
	if reg != nil {
		metrics := observability.NewMetrics(reg)
		sandboxes = metrics.InstrumentProvider(sandboxes)
		hooks = hooks.Merge(metrics.Hooks())
	}

	opts := []dsflow.Option{
		dsflow.WithSandboxProvider(sandboxes),
		dsflow.WithScripts(scripts),
		dsflow.WithStore(a.store),
		dsflow.WithLogger(logger),
		dsflow.WithLifecycleHooks(hooks),
		dsflow.WithLimits(cfg.Agent.Limits()),
		dsflow.WithRecursionLimit(cfg.Agent.RecursionLimit),
		dsflow.WithTimeout(cfg.Execution.Timeout),
		dsflow.WithTranslateInput(cfg.Agent.TranslateInput),
		dsflow.WithPrompts(prompts.New(
			prompts.WithLanguage(cfg.Agent.Language),
			prompts.WithDirs(cfg.Execution.DatasetsDir, cfg.Execution.ModelsDir),
		)),
	}
	if locker != nil {
		opts = append(opts, dsflow.WithLocker(locker))
	}

	a.assistant, err = dsflow.New(buildModels(cfg.LLM, logger), opts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func buildModels(cfg config.LLMConfig, logger *slog.Logger) *openai.Provider {
	return openai.NewProvider(cfg.Overrides(),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithAPIKey(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithTemperature(cfg.Temperature),
		openai.WithRetryPolicy(retry.Policy{
			MaxAttempts: cfg.Retry.Attempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		}),
		openai.WithLogger(logger),
	)
}

func buildSandboxProvider(cfg config.ExecutionConfig) (ports.SandboxProvider, error) {
	switch cfg.Backend {
	case config.ExecutionRemote:
		return remote.NewProvider(cfg.RemoteURL,
			remote.WithAPIKey(cfg.RemoteAPIKey),
			remote.WithTimeout(cfg.Timeout),
		), nil
	case config.ExecutionLocal:
		if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
			return nil, fmt.Errorf("create work dir: %w", err)
		}
		return process.NewLocalProvider(cfg.WorkDir,
			process.WithInterpreter(cfg.Interpreter),
			process.WithTimeout(cfg.Timeout),
			process.WithWorkDir(cfg.DatasetsDir),
		), nil
	default:
		return nil, fmt.Errorf("unknown execution backend %q", cfg.Backend)
	}
}

// storeMiddlewares masks PII before sealing, so sealed states never hold
// the raw values.
func storeMiddlewares(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.PIIColumns) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.PIIColumns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	active, fallback, err := cfg.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

// buildStore returns the run store, an optional cross-process locker and
// an optional closer for the backing connection.
func buildStore(cfg config.StoreConfig) (ports.RunStore, ports.DistributedLocker, io.Closer, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return memory.NewStore(), nil, nil, nil
	case config.StoreFile:
		return file.New(cfg.Path), nil, nil, nil
	case config.StoreSQLite:
		s, err := sqlite.Open(filepath.Join(cfg.Path, "dsflow.db"))
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, s, nil
	case config.StoreRedis:
		s := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithTTL(cfg.TTL))
		return s, redis.NewLocker(s.Client(), "dsflow:lock:"), s, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
