// Package process runs generated code and registered scripts as local
// child processes.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// DefaultTimeout bounds a single execution.
const DefaultTimeout = 3000 * time.Second

// Sandbox executes code by writing it to a temporary file and running the
// configured interpreter on it. The file is removed on every path.
type Sandbox struct {
	interpreter string
	args        []string
	preamble    string
	epilogue    string
	tempDir     string
	workDir     string
	timeout     time.Duration
	env         []string
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithInterpreter sets the command used to run code files (default python3).
func WithInterpreter(command string, args ...string) Option {
	return func(s *Sandbox) {
		s.interpreter = command
		s.args = args
	}
}

// WithPreamble replaces the code prepended to every execution. The default
// is domain.PlotPreamble; an empty string disables it.
func WithPreamble(code string) Option {
	return func(s *Sandbox) {
		s.preamble = code
	}
}

// WithEpilogue replaces the code appended to every execution. The default
// is domain.PlotEpilogue; an empty string disables it.
func WithEpilogue(code string) Option {
	return func(s *Sandbox) {
		s.epilogue = code
	}
}

// WithTempDir sets where code files are written.
func WithTempDir(dir string) Option {
	return func(s *Sandbox) {
		s.tempDir = dir
	}
}

// WithWorkDir sets the working directory of executed code, usually the
// datasets directory.
func WithWorkDir(dir string) Option {
	return func(s *Sandbox) {
		s.workDir = dir
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Sandbox) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithEnv adds environment variables to executed code.
func WithEnv(env map[string]string) Option {
	return func(s *Sandbox) {
		for k, v := range env {
			s.env = append(s.env, k+"="+v)
		}
	}
}

// NewSandbox creates a local sandbox.
func NewSandbox(opts ...Option) *Sandbox {
	s := &Sandbox{
		interpreter: "python3",
		preamble:    domain.PlotPreamble,
		epilogue:    domain.PlotEpilogue,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout returns the configured execution bound.
func (s *Sandbox) Timeout() time.Duration {
	return s.timeout
}

func (s *Sandbox) Execute(ctx context.Context, code string) domain.ExecutionResult {
	f, err := os.CreateTemp(s.tempDir, "dsflow-*.code")
	if err != nil {
		return infraFailure("create code file", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(s.source(code)); err != nil {
		f.Close()
		return infraFailure("write code file", err)
	}
	if err := f.Close(); err != nil {
		return infraFailure("close code file", err)
	}

	args := append(append([]string(nil), s.args...), path)
	return run(ctx, s.timeout, s.workDir, s.env, s.interpreter, args...)
}

func (s *Sandbox) source(code string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.preamble, code, s.epilogue} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n") + "\n"
}

// run executes a command under a timeout and classifies the outcome.
func run(ctx context.Context, timeout time.Duration, dir string, env []string, command string, args ...string) domain.ExecutionResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(), env...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := domain.ExecutionResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return result
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.Timeout = timeout
		result.ExitCode = -1
		return result
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		result.ExitCode = exitErr.ExitCode()
		return result
	}
	result.ExitCode = -1
	result.Err = fmt.Sprintf("execution failed: %v", err)
	return result
}

func infraFailure(op string, err error) domain.ExecutionResult {
	return domain.ExecutionResult{ExitCode: -1, Err: fmt.Sprintf("execution failed: %s: %v", op, err)}
}

// LocalProvider opens local sessions. Each session writes its code files
// into a private scratch directory that is removed on Close.
type LocalProvider struct {
	opts    []Option
	baseDir string
}

// NewLocalProvider creates a provider whose sandboxes use opts.
func NewLocalProvider(baseDir string, opts ...Option) *LocalProvider {
	return &LocalProvider{baseDir: baseDir, opts: opts}
}

func (p *LocalProvider) Open(ctx context.Context, runID string) (ports.SandboxSession, error) {
	dir, err := os.MkdirTemp(p.baseDir, "run-"+filepath.Base(runID)+"-")
	if err != nil {
		return nil, fmt.Errorf("open local sandbox: %w", err)
	}
	opts := append(append([]Option(nil), p.opts...), WithTempDir(dir))
	return &localSession{Sandbox: NewSandbox(opts...), dir: dir}, nil
}

type localSession struct {
	*Sandbox
	dir string
}

func (s *localSession) Handle() *domain.SandboxHandle { return nil }

func (s *localSession) Close(ctx context.Context) error {
	return os.RemoveAll(s.dir)
}
