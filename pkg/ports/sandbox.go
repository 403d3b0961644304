package ports

import (
	"context"

	"github.com/aretw0/dsflow/pkg/domain"
)

// Sandbox executes untrusted code in isolation.
// Execute never returns a Go error: failures and timeouts are reported in
// the ExecutionResult.
type Sandbox interface {
	Execute(ctx context.Context, code string) domain.ExecutionResult
}

// SandboxSession is a sandbox owned by exactly one run.
type SandboxSession interface {
	Sandbox
	// Handle is nil for backends without a remote session.
	Handle() *domain.SandboxHandle
	Close(ctx context.Context) error
}

// SandboxProvider opens a fresh session for a run. Sessions are never
// shared across runs.
type SandboxProvider interface {
	Open(ctx context.Context, runID string) (SandboxSession, error)
}

// ScriptRunner runs a registered external script with positional
// parameters, under the same success/failure/timeout contract as Sandbox.
type ScriptRunner interface {
	RunScript(ctx context.Context, name string, args ...string) domain.ExecutionResult
}
