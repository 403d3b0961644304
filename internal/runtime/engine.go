// Package runtime schedules workflow steps over a static graph.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/dsflow/internal/logging"
	"github.com/aretw0/dsflow/internal/steps"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// DefaultRecursionLimit caps step invocations per run.
const DefaultRecursionLimit = 1000

// Emitter receives one event per completed step.
type Emitter func(domain.StepEvent)

// Engine runs a graph to completion, one step at a time.
type Engine struct {
	graph          *Graph
	logger         *slog.Logger
	hooks          domain.LifecycleHooks
	recursionLimit int
	now            func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithRecursionLimit overrides DefaultRecursionLimit. Values below one are ignored.
func WithRecursionLimit(limit int) EngineOption {
	return func(e *Engine) {
		if limit > 0 {
			e.recursionLimit = limit
		}
	}
}

// NewEngine creates an engine for a validated graph.
func NewEngine(graph *Graph, opts ...EngineOption) *Engine {
	e := &Engine{
		graph:          graph,
		logger:         logging.NewNop(),
		recursionLimit: DefaultRecursionLimit,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the topology the engine runs.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Run executes steps from the graph entry until a terminal step, an error
// or the recursion limit. The state is mutated in place and returned.
// limit overrides the engine's recursion limit when positive.
func (e *Engine) Run(ctx context.Context, state *domain.State, models ports.ModelProvider, limit int, emit Emitter) (*domain.State, error) {
	if limit <= 0 {
		limit = e.recursionLimit
	}
	if emit == nil {
		emit = func(domain.StepEvent) {}
	}
	logger := e.logger.With("run_id", state.RunID)
	started := e.now()
	state.Status = domain.StatusActive

	id := e.graph.Entry()
	for {
		if err := ctx.Err(); err != nil {
			return e.fail(ctx, state, started, domain.StatusFailed, err)
		}
		if state.Steps >= limit {
			logger.Warn("recursion limit reached", "limit", limit, "step", id)
			return e.fail(ctx, state, started, domain.StatusDepthExceeded,
				fmt.Errorf("%w: %d steps", domain.ErrDepthExceeded, limit))
		}

		step, ok := e.graph.Step(id)
		if !ok {
			return e.fail(ctx, state, started, domain.StatusFailed, fmt.Errorf("%s: %w", id, domain.ErrUnknownStep))
		}

		state.Steps++
		state.CurrentStep = id
		state.Visited = append(state.Visited, id)

		hookEvent := &domain.StepHookEvent{RunID: state.RunID, Step: id, Invocation: invocations(state.Visited, id)}
		if e.hooks.OnStepEnter != nil {
			e.hooks.OnStepEnter(ctx, hookEvent)
		}
		logger.Debug("step enter", "step", id, "invocation", hookEvent.Invocation)

		t0 := e.now()
		update, err := invoke(ctx, step, state.Clone(), models.ForStep(id))
		hookEvent.Duration = e.now().Sub(t0)
		hookEvent.Err = err
		if e.hooks.OnStepLeave != nil {
			e.hooks.OnStepLeave(ctx, hookEvent)
		}
		if err != nil {
			logger.Error("step failed", "step", id, "err", err)
			return e.fail(ctx, state, started, domain.StatusFailed, &domain.StepError{Step: id, Cause: err})
		}

		state.Apply(update)
		emit(stepEvent(state.RunID, id, update, e.now()))

		next, err := e.graph.Next(state)
		if err != nil {
			return e.fail(ctx, state, started, domain.StatusFailed, err)
		}
		logger.Debug("step leave", "step", id, "next", next)
		if next == domain.StepEnd {
			state.Status = domain.StatusCompleted
			e.finish(ctx, state, started)
			return state, nil
		}
		id = next
	}
}

func (e *Engine) fail(ctx context.Context, state *domain.State, started time.Time, status domain.RunStatus, err error) (*domain.State, error) {
	state.Status = status
	state.Error = err.Error()
	e.finish(ctx, state, started)
	return state, err
}

func (e *Engine) finish(ctx context.Context, state *domain.State, started time.Time) {
	if e.hooks.OnRunFinish != nil {
		e.hooks.OnRunFinish(ctx, &domain.RunHookEvent{
			RunID:    state.RunID,
			Status:   state.Status,
			Steps:    state.Steps,
			Duration: e.now().Sub(started),
		})
	}
}

// invoke runs one step and turns a panic into an error.
func invoke(ctx context.Context, step steps.Step, state *domain.State, model ports.ModelClient) (update domain.Update, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.Run(ctx, state, model)
}

func invocations(visited []domain.StepID, id domain.StepID) int {
	n := 0
	for _, v := range visited {
		if v == id {
			n++
		}
	}
	return n
}

func stepEvent(runID string, id domain.StepID, u domain.Update, at time.Time) domain.StepEvent {
	texts := make([]string, 0, len(u.Messages))
	for _, m := range u.Messages {
		texts = append(texts, m.Content)
	}
	return domain.StepEvent{
		RunID:            runID,
		Step:             id,
		Kind:             domain.EventStep,
		Text:             strings.Join(texts, "\n\n"),
		HumanExplanation: strings.Join(u.HumanExplanations, "\n\n"),
		Timestamp:        at,
	}
}

// IsDepthExceeded reports whether err ended a run at the recursion limit.
func IsDepthExceeded(err error) bool {
	return errors.Is(err, domain.ErrDepthExceeded)
}
