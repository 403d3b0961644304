package observability

import (
	"context"
	"time"

	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Execution outcomes used as label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)

// Metrics holds the workflow collectors.
type Metrics struct {
	StepVisits        *prometheus.CounterVec
	StepDuration      *prometheus.HistogramVec
	StepErrors        *prometheus.CounterVec
	Runs              *prometheus.CounterVec
	RunSteps          prometheus.Histogram
	Executions        *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsflow_step_visits_total",
			Help: "Total number of step invocations.",
		}, []string{"step"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dsflow_step_duration_seconds",
			Help:    "Duration of step invocations.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"step"}),
		StepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsflow_step_errors_total",
			Help: "Step invocations that returned an error.",
		}, []string{"step"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsflow_runs_total",
			Help: "Finished runs by final status.",
		}, []string{"status"}),
		RunSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsflow_run_steps",
			Help:    "Step invocations per finished run.",
			Buckets: prometheus.LinearBuckets(5, 5, 12),
		}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsflow_sandbox_executions_total",
			Help: "Sandbox executions by outcome.",
		}, []string{"outcome"}),
		ExecutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsflow_sandbox_execution_seconds",
			Help:    "Duration of sandbox executions.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 16),
		}),
	}
	reg.MustRegister(m.StepVisits, m.StepDuration, m.StepErrors, m.Runs, m.RunSteps, m.Executions, m.ExecutionDuration)
	return m
}

// Hooks records step and run metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepHookEvent) {
			m.StepVisits.WithLabelValues(string(e.Step)).Inc()
		},
		OnStepLeave: func(_ context.Context, e *domain.StepHookEvent) {
			m.StepDuration.WithLabelValues(string(e.Step)).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.StepErrors.WithLabelValues(string(e.Step)).Inc()
			}
		},
		OnRunFinish: func(_ context.Context, e *domain.RunHookEvent) {
			m.Runs.WithLabelValues(string(e.Status)).Inc()
			m.RunSteps.Observe(float64(e.Steps))
		},
	}
}

// Outcome classifies an execution result for the outcome label.
func Outcome(r domain.ExecutionResult) string {
	switch {
	case r.TimedOut:
		return OutcomeTimeout
	case r.Failed():
		return OutcomeFailure
	default:
		return OutcomeSuccess
	}
}

// InstrumentProvider wraps every session the provider opens.
func (m *Metrics) InstrumentProvider(p ports.SandboxProvider) ports.SandboxProvider {
	return &instrumentedProvider{next: p, metrics: m}
}

type instrumentedProvider struct {
	next    ports.SandboxProvider
	metrics *Metrics
}

func (p *instrumentedProvider) Open(ctx context.Context, runID string) (ports.SandboxSession, error) {
	s, err := p.next.Open(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &instrumentedSession{SandboxSession: s, metrics: p.metrics}, nil
}

type instrumentedSession struct {
	ports.SandboxSession
	metrics *Metrics
}

func (s *instrumentedSession) Execute(ctx context.Context, code string) domain.ExecutionResult {
	start := time.Now()
	r := s.SandboxSession.Execute(ctx, code)
	s.metrics.ExecutionDuration.Observe(time.Since(start).Seconds())
	s.metrics.Executions.WithLabelValues(Outcome(r)).Inc()
	return r
}
