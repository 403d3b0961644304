package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/dsflow/pkg/domain"
)

// LoggingHooks logs step transitions and run completion.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepHookEvent) {
			logger.DebugContext(ctx, "step_enter", "run_id", e.RunID, "step", e.Step, "invocation", e.Invocation)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepHookEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "step_leave", "run_id", e.RunID, "step", e.Step, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "step_leave", "run_id", e.RunID, "step", e.Step, "duration", e.Duration)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunHookEvent) {
			logger.InfoContext(ctx, "run_finish", "run_id", e.RunID, "status", e.Status, "steps", e.Steps, "duration", e.Duration)
		},
	}
}
