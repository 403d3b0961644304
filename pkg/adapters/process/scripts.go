package process

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/dsflow/pkg/domain"
)

// ScriptRunner runs allow-listed external scripts, such as the AutoML
// trainers. Unknown names are reported as failures, never executed.
type ScriptRunner struct {
	registry map[string]RegisteredScript
	baseDir  string
	timeout  time.Duration
}

// RegisteredScript defines an allowed command. Call arguments are appended
// after Args.
type RegisteredScript struct {
	Command string
	Args    []string
	Env     []string
}

// ScriptOption configures the runner.
type ScriptOption func(*ScriptRunner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(scripts map[string]ScriptConfig) ScriptOption {
	return func(r *ScriptRunner) {
		for name, s := range scripts {
			var env []string
			for k, v := range s.Environment {
				env = append(env, k+"="+v)
			}
			r.registry[name] = RegisteredScript{Command: s.Command, Args: s.Args, Env: env}
		}
	}
}

// WithBaseDir sets the working directory for executed scripts.
func WithBaseDir(dir string) ScriptOption {
	return func(r *ScriptRunner) {
		r.baseDir = dir
	}
}

// WithScriptTimeout overrides DefaultTimeout for scripts.
func WithScriptTimeout(d time.Duration) ScriptOption {
	return func(r *ScriptRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewScriptRunner creates an empty runner.
func NewScriptRunner(opts ...ScriptOption) *ScriptRunner {
	r := &ScriptRunner{
		registry: make(map[string]RegisteredScript),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted script to the allow-list.
func (r *ScriptRunner) Register(name, command string, args ...string) {
	r.registry[name] = RegisteredScript{Command: command, Args: args}
}

// Registered reports whether name is allow-listed.
func (r *ScriptRunner) Registered(name string) bool {
	_, ok := r.registry[name]
	return ok
}

func (r *ScriptRunner) RunScript(ctx context.Context, name string, args ...string) domain.ExecutionResult {
	script, ok := r.registry[name]
	if !ok {
		return domain.ExecutionResult{ExitCode: -1, Err: fmt.Sprintf("script not registered: %s", name)}
	}
	all := append(append([]string(nil), script.Args...), args...)
	return run(ctx, r.timeout, r.baseDir, script.Env, script.Command, all...)
}
