package dsflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/dsflow/internal/logging"
	"github.com/aretw0/dsflow/internal/prompts"
	"github.com/aretw0/dsflow/internal/runtime"
	"github.com/aretw0/dsflow/internal/steps"
	"github.com/aretw0/dsflow/internal/workflow"
	"github.com/aretw0/dsflow/pkg/adapters/memory"
	"github.com/aretw0/dsflow/pkg/adapters/process"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
	"github.com/aretw0/dsflow/pkg/runner"
	"github.com/aretw0/dsflow/pkg/session"
)

// Request starts one run.
type Request struct {
	// RunID is generated when empty.
	RunID   string `json:"run_id,omitempty"`
	Message string `json:"message"`
	// RecursionLimit overrides the assistant's step limit when positive.
	RecursionLimit int             `json:"recursion_limit,omitempty"`
	Dataset        *domain.Dataset `json:"dataset,omitempty"`
	TestDataset    *domain.Dataset `json:"test_dataset,omitempty"`
}

// Assistant is the high-level entry point of the library. It owns the
// collaborators every run needs and builds a fresh graph per run.
type Assistant struct {
	models         ports.ModelProvider
	sandboxes      ports.SandboxProvider
	scripts        ports.ScriptRunner
	store          ports.RunStore
	locker         ports.DistributedLocker
	sessions       *session.Manager
	prompts        *prompts.Catalog
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
	limits         domain.Limits
	recursionLimit int
	timeout        time.Duration
	translateInput bool
}

// Option defines a functional option for configuring the Assistant.
type Option func(*Assistant)

// WithSandboxProvider sets where generated code runs. The default is a
// local python3 process per run.
func WithSandboxProvider(p ports.SandboxProvider) Option {
	return func(a *Assistant) {
		a.sandboxes = p
	}
}

// WithScripts sets the runner for the managed AutoML scripts.
func WithScripts(r ports.ScriptRunner) Option {
	return func(a *Assistant) {
		a.scripts = r
	}
}

// WithStore persists every finished run. The default is in memory.
func WithStore(s ports.RunStore) Option {
	return func(a *Assistant) {
		a.store = s
	}
}

// WithLocker guards run IDs across processes.
func WithLocker(l ports.DistributedLocker) Option {
	return func(a *Assistant) {
		a.locker = l
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) {
		a.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Assistant) {
		a.hooks = hooks
	}
}

// WithLimits bounds the improvement and execution retry loops.
func WithLimits(l domain.Limits) Option {
	return func(a *Assistant) {
		a.limits = l
	}
}

// WithRecursionLimit sets the default step limit per run.
func WithRecursionLimit(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.recursionLimit = n
		}
	}
}

// WithPrompts replaces the prompt catalog, e.g. to change the language.
func WithPrompts(c *prompts.Catalog) Option {
	return func(a *Assistant) {
		a.prompts = c
	}
}

// WithTimeout is the execution timeout quoted to the model after a
// timed out execution. It should match the sandbox's own timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Assistant) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithTranslateInput rewrites the task into English before routing.
func WithTranslateInput(on bool) Option {
	return func(a *Assistant) {
		a.translateInput = on
	}
}

// New creates an assistant over a model provider.
func New(models ports.ModelProvider, opts ...Option) (*Assistant, error) {
	if models == nil {
		return nil, errors.New("model provider is required")
	}
	a := &Assistant{
		models:         models,
		limits:         domain.DefaultLimits(),
		recursionLimit: runtime.DefaultRecursionLimit,
		timeout:        process.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	if a.sandboxes == nil {
		a.sandboxes = process.NewLocalProvider("", process.WithTimeout(a.timeout))
	}
	if a.scripts == nil {
		a.scripts = process.NewScriptRunner(process.WithScriptTimeout(a.timeout))
	}
	if a.store == nil {
		a.store = memory.NewStore()
	}
	if a.prompts == nil {
		a.prompts = prompts.New()
	}

	sessionOpts := []session.Option{session.WithLogger(a.logger)}
	if a.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(a.locker))
	}
	a.sessions = session.NewManager(a.store, sessionOpts...)
	return a, nil
}

// Store returns the store runs are saved to.
func (a *Assistant) Store() ports.RunStore {
	return a.store
}

// Invoke starts a run in the background and streams its events. The
// channel is closed after the terminal event. Failures are reported as
// error or depth_exceeded events, never dropped.
func (a *Assistant) Invoke(ctx context.Context, req Request) <-chan domain.StepEvent {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	out := make(chan domain.StepEvent, 16)
	go func() {
		defer close(out)
		send := func(ev domain.StepEvent) {
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}
		if _, err := a.Run(ctx, req, send); err != nil {
			a.logger.Debug("run ended with error", "run_id", req.RunID, "err", err)
		}
	}()
	return out
}

// Run executes one run synchronously, calling emit for every event. The
// returned state is nil only when the request is rejected before the run
// starts.
func (a *Assistant) Run(ctx context.Context, req Request, emit func(domain.StepEvent)) (*domain.State, error) {
	if emit == nil {
		emit = func(domain.StepEvent) {}
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	state, err := a.admit(req)
	if err != nil {
		emit(terminalEvent(req.RunID, "", domain.EventError, err.Error()))
		return nil, fmt.Errorf("run %s: invalid request: %w", req.RunID, err)
	}

	logger := a.logger.With("run_id", req.RunID)
	logger.Info("run started", "recursion_limit", req.RecursionLimit)

	runErr := a.sessions.WithLock(ctx, req.RunID, func(ctx context.Context) error {
		return a.execute(ctx, state, req.RecursionLimit, emit, logger)
	})

	switch {
	case runErr == nil:
	case runtime.IsDepthExceeded(runErr):
		emit(terminalEvent(state.RunID, state.CurrentStep, domain.EventDepthExceeded, runErr.Error()))
	default:
		step := state.CurrentStep
		var se *domain.StepError
		if errors.As(runErr, &se) {
			step = se.Step
		}
		markFailed(state, runErr)
		emit(terminalEvent(state.RunID, step, domain.EventError, runErr.Error()))
	}
	emit(terminalEvent(state.RunID, state.CurrentStep, domain.EventDone, state.Report))

	logger.Info("run finished", "status", state.Status, "steps", state.Steps)
	return state, runErr
}

// admit cleans the inbound request into the initial state of a run.
func (a *Assistant) admit(req Request) (*domain.State, error) {
	msg, err := runner.SanitizeMessage(req.Message)
	if err != nil {
		return nil, err
	}
	train, err := runner.SanitizeDataset(runner.FieldDataset, req.Dataset)
	if err != nil {
		return nil, err
	}
	test, err := runner.SanitizeDataset(runner.FieldTestDataset, req.TestDataset)
	if err != nil {
		return nil, err
	}
	state := domain.NewState(req.RunID, msg, a.limits)
	state.Dataset = train
	state.TestDataset = test
	return state, nil
}

// execute runs the graph with a sandbox session owned by this run only.
// It is called under the run lock.
func (a *Assistant) execute(ctx context.Context, state *domain.State, limit int, emit func(domain.StepEvent), logger *slog.Logger) (err error) {
	sandbox, err := a.sandboxes.Open(ctx, state.RunID)
	if err != nil {
		return fmt.Errorf("open sandbox: %w", err)
	}
	state.Sandbox = sandbox.Handle()

	// Cleanup must survive a canceled run.
	cleanup := context.WithoutCancel(ctx)
	defer func() {
		if cerr := sandbox.Close(cleanup); cerr != nil {
			logger.Warn("failed to close sandbox", "err", cerr)
		}
		if err != nil {
			markFailed(state, err)
		}
		state.UpdatedAt = time.Now()
		if serr := a.store.Save(cleanup, state.RunID, state); serr != nil {
			logger.Error("failed to save run", "err", serr)
			if err == nil {
				err = fmt.Errorf("save run: %w", serr)
			}
		}
	}()

	graph, err := workflow.Build(steps.Catalog(steps.Deps{
		Prompts:        a.prompts,
		Sandbox:        sandbox,
		Scripts:        a.scripts,
		Timeout:        a.timeout,
		TranslateInput: a.translateInput,
		Logger:         logger,
	}))
	if err != nil {
		return err
	}

	engine := runtime.NewEngine(graph,
		runtime.WithLogger(logger),
		runtime.WithLifecycleHooks(a.hooks),
		runtime.WithRecursionLimit(a.recursionLimit),
	)
	_, err = engine.Run(ctx, state, a.models, limit, emit)
	return err
}

func markFailed(state *domain.State, err error) {
	if state.Status == domain.StatusActive {
		state.Status = domain.StatusFailed
		state.Error = err.Error()
	}
}

func terminalEvent(runID string, step domain.StepID, kind domain.EventKind, text string) domain.StepEvent {
	return domain.StepEvent{
		RunID:     runID,
		Step:      step,
		Kind:      kind,
		Text:      text,
		Timestamp: time.Now(),
	}
}
