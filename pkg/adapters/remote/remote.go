// Package remote talks to a session-keyed code execution service over HTTP.
//
// Protocol:
//
//	POST   /sessions               -> {"session_id": "..."}
//	POST   /sessions/{id}/execute  {"code": "...", "timeout_seconds": N}
//	DELETE /sessions/{id}
//
// Each run opens its own session; sessions are never shared.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// Backend is the handle backend name for remote sessions.
const Backend = "remote"

// CreateSessionResponse is returned by POST /sessions.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// ExecuteRequest is the body of POST /sessions/{id}/execute.
type ExecuteRequest struct {
	Code           string `json:"code"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// ExecuteResponse carries logs and rich text artifacts.
type ExecuteResponse struct {
	Stdout    string            `json:"stdout"`
	Stderr    string            `json:"stderr"`
	ExitCode  int               `json:"exit_code"`
	TimedOut  bool              `json:"timed_out"`
	Error     string            `json:"error,omitempty"`
	Artifacts []domain.Artifact `json:"artifacts,omitempty"`
}

// Provider opens remote sessions.
type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
	grace   time.Duration
}

// DefaultTimeoutGrace is how long past the execution timeout the client
// waits for the service to report it before giving up on its own.
const DefaultTimeoutGrace = 30 * time.Second

// Option configures a Provider.
type Option func(*Provider)

// WithAPIKey sends a bearer token with every request.
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.apiKey = key
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// WithTimeout sets the per-execution bound. It is sent to the service and
// enforced locally after the grace period.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithTimeoutGrace overrides DefaultTimeoutGrace.
func WithTimeoutGrace(d time.Duration) Option {
	return func(p *Provider) {
		if d >= 0 {
			p.grace = d
		}
	}
}

// NewProvider creates a provider for the service at baseURL.
func NewProvider(baseURL string, opts ...Option) *Provider {
	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: 3000 * time.Second,
		grace:   DefaultTimeoutGrace,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Open(ctx context.Context, runID string) (ports.SandboxSession, error) {
	var out CreateSessionResponse
	if err := p.do(ctx, http.MethodPost, "/sessions", map[string]string{"run_id": runID}, &out); err != nil {
		return nil, fmt.Errorf("open remote session: %w", err)
	}
	if out.SessionID == "" {
		return nil, fmt.Errorf("open remote session: empty session id")
	}
	return &Session{provider: p, id: out.SessionID}, nil
}

func (p *Provider) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Session is one remote execution context.
type Session struct {
	provider *Provider
	id       string
}

func (s *Session) path() string {
	return "/sessions/" + url.PathEscape(s.id)
}

func (s *Session) Handle() *domain.SandboxHandle {
	return &domain.SandboxHandle{Backend: Backend, SessionID: s.id}
}

// Execute runs code framed by domain.HeadlessPlotting. A service that has
// not answered by the timeout plus the grace period is reported as a
// timeout.
func (s *Session) Execute(ctx context.Context, code string) domain.ExecutionResult {
	timeout := s.provider.timeout
	execCtx, cancel := context.WithTimeout(ctx, timeout+s.provider.grace)
	defer cancel()

	var out ExecuteResponse
	err := s.provider.do(execCtx, http.MethodPost, s.path()+"/execute", ExecuteRequest{
		Code:           domain.HeadlessPlotting(code),
		TimeoutSeconds: int(timeout.Seconds()),
	}, &out)
	if err != nil {
		if ctx.Err() == nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return domain.ExecutionResult{TimedOut: true, Timeout: timeout, ExitCode: -1}
		}
		return domain.ExecutionResult{ExitCode: -1, Err: fmt.Sprintf("execution failed: %v", err)}
	}

	result := domain.ExecutionResult{
		Stdout:    out.Stdout,
		Stderr:    out.Stderr,
		ExitCode:  out.ExitCode,
		TimedOut:  out.TimedOut,
		Err:       out.Error,
		Artifacts: out.Artifacts,
	}
	if result.TimedOut {
		result.Timeout = timeout
	}
	return result
}

func (s *Session) Close(ctx context.Context) error {
	if err := s.provider.do(ctx, http.MethodDelete, s.path(), nil, nil); err != nil {
		return fmt.Errorf("close remote session %s: %w", s.id, err)
	}
	return nil
}
