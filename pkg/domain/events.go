package domain

import (
	"context"
	"time"
)

// EventKind categorizes a stream event.
type EventKind string

const (
	EventStep          EventKind = "step"
	EventError         EventKind = "error"
	EventDepthExceeded EventKind = "depth_exceeded"
	EventDone          EventKind = "done"
)

// StepEvent is one entry of the run's output stream.
type StepEvent struct {
	RunID            string    `json:"run_id"`
	Step             StepID    `json:"step_id"`
	Kind             EventKind `json:"kind"`
	Text             string    `json:"text"`
	HumanExplanation string    `json:"human_explanation,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// StepHookEvent describes a step invocation for lifecycle hooks.
type StepHookEvent struct {
	RunID      string
	Step       StepID
	Invocation int
	Duration   time.Duration // set on leave
	Err        error         // set on leave
}

// RunHookEvent describes a finished run.
type RunHookEvent struct {
	RunID    string
	Status   RunStatus
	Steps    int
	Duration time.Duration
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStepEnter func(context.Context, *StepHookEvent)
	OnStepLeave func(context.Context, *StepHookEvent)
	OnRunFinish func(context.Context, *RunHookEvent)
}

// Merge combines two hook sets, calling h first.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepEnter: chainStep(h.OnStepEnter, other.OnStepEnter),
		OnStepLeave: chainStep(h.OnStepLeave, other.OnStepLeave),
		OnRunFinish: chainRun(h.OnRunFinish, other.OnRunFinish),
	}
}

func chainStep(a, b func(context.Context, *StepHookEvent)) func(context.Context, *StepHookEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *StepHookEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainRun(a, b func(context.Context, *RunHookEvent)) func(context.Context, *RunHookEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *RunHookEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
