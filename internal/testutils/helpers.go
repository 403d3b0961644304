// Package testutils provides scripted collaborators for workflow tests.
package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// Substrings identifying the prompt of each model-calling step.
const (
	MatchExplain      = "explain machine learning work"
	MatchCodeRouter   = "Decide whether writing code"
	MatchNoCode       = "experienced data scientist and analyst"
	MatchAutoMLRouter = "LightAutoML, Fedot or automl"
	MatchAutoMLConfig = "produce a training config"
	MatchPlanner      = "step-by-step plan"
	MatchCodeGen      = "senior Python developer"
	MatchResults      = "which models were used and which metrics"
	MatchValidator    = "whether a solution to a data science task is correct"
	MatchImprovement  = "propose ONE concrete way"
	MatchFinal        = "Summarize the work done"
	MatchSplit        = "Split the code into two parts"
	MatchTranslate    = "Translate the user's request"
)

type rule struct {
	substr  string
	replies []string
	next    int
}

// ScriptedModel answers prompts by the first rule whose substring appears
// in the system or user prompt. A rule returns its replies in order and
// then keeps repeating the last one.
type ScriptedModel struct {
	mu       sync.Mutex
	rules    []*rule
	fallback string
	err      error
	calls    []ports.Prompt
}

// NewScriptedModel creates a model with no rules.
func NewScriptedModel() *ScriptedModel {
	return &ScriptedModel{}
}

// On registers replies for prompts containing substr.
func (m *ScriptedModel) On(substr string, replies ...string) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, &rule{substr: substr, replies: replies})
	return m
}

// Fallback sets the reply used when no rule matches.
func (m *ScriptedModel) Fallback(text string) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = text
	return m
}

// FailWith makes every call return err.
func (m *ScriptedModel) FailWith(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *ScriptedModel) Complete(ctx context.Context, p ports.Prompt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, p)
	if m.err != nil {
		return "", m.err
	}

	text := p.System + "\n" + p.User
	for _, r := range m.rules {
		if !strings.Contains(text, r.substr) || len(r.replies) == 0 {
			continue
		}
		i := r.next
		if i >= len(r.replies) {
			i = len(r.replies) - 1
		} else {
			r.next++
		}
		return r.replies[i], nil
	}
	return m.fallback, nil
}

// ForStep serves the same scripted client to every step.
func (m *ScriptedModel) ForStep(domain.StepID) ports.ModelClient {
	return m
}

// Calls returns every prompt received so far.
func (m *ScriptedModel) Calls() []ports.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.Prompt(nil), m.calls...)
}

// CallsMatching returns the prompts containing substr.
func (m *ScriptedModel) CallsMatching(substr string) []ports.Prompt {
	var out []ports.Prompt
	for _, p := range m.Calls() {
		if strings.Contains(p.System+"\n"+p.User, substr) {
			out = append(out, p)
		}
	}
	return out
}

// FakeSandbox returns canned results in order, repeating the last one.
type FakeSandbox struct {
	mu       sync.Mutex
	results  []domain.ExecutionResult
	next     int
	executed []string
	handle   *domain.SandboxHandle
	closed   bool
}

// NewFakeSandbox creates a sandbox that replays results.
func NewFakeSandbox(results ...domain.ExecutionResult) *FakeSandbox {
	return &FakeSandbox{results: results}
}

// WithHandle makes the sandbox report a remote session handle.
func (f *FakeSandbox) WithHandle(h *domain.SandboxHandle) *FakeSandbox {
	f.handle = h
	return f
}

func (f *FakeSandbox) Execute(ctx context.Context, code string) domain.ExecutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, code)
	if len(f.results) == 0 {
		return domain.ExecutionResult{}
	}
	i := f.next
	if i >= len(f.results) {
		i = len(f.results) - 1
	} else {
		f.next++
	}
	return f.results[i]
}

func (f *FakeSandbox) Handle() *domain.SandboxHandle { return f.handle }

func (f *FakeSandbox) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Executed returns every code blob received so far.
func (f *FakeSandbox) Executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

// Closed reports whether Close was called.
func (f *FakeSandbox) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Open hands out the sandbox itself, so FakeSandbox also serves as a
// provider in tests.
func (f *FakeSandbox) Open(ctx context.Context, runID string) (ports.SandboxSession, error) {
	return f, nil
}

// ScriptCall records one RunScript invocation.
type ScriptCall struct {
	Name string
	Args []string
}

// FakeScripts records script invocations and returns a fixed result.
type FakeScripts struct {
	mu     sync.Mutex
	Result domain.ExecutionResult
	calls  []ScriptCall
}

func (f *FakeScripts) RunScript(ctx context.Context, name string, args ...string) domain.ExecutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ScriptCall{Name: name, Args: append([]string(nil), args...)})
	return f.Result
}

// Calls returns the recorded invocations.
func (f *FakeScripts) Calls() []ScriptCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ScriptCall(nil), f.calls...)
}
