package dsflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/dsflow"
	"github.com/aretw0/dsflow/internal/extract"
	"github.com/aretw0/dsflow/internal/testutils"
	"github.com/aretw0/dsflow/pkg/adapters/memory"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

func newAssistant(t *testing.T, model *testutils.ScriptedModel, sandbox *testutils.FakeSandbox, opts ...dsflow.Option) (*dsflow.Assistant, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	base := []dsflow.Option{
		dsflow.WithSandboxProvider(sandbox),
		dsflow.WithScripts(&testutils.FakeScripts{}),
		dsflow.WithStore(store),
		dsflow.WithTimeout(time.Minute),
	}
	a, err := dsflow.New(model, append(base, opts...)...)
	require.NoError(t, err)
	return a, store
}

func collect(ch <-chan domain.StepEvent) []domain.StepEvent {
	var out []domain.StepEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func kinds(events []domain.StepEvent) []domain.EventKind {
	out := make([]domain.EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func codeModel(verdict string) *testutils.ScriptedModel {
	return testutils.NewScriptedModel().
		On(testutils.MatchExplain, "in plain words").
		On(testutils.MatchCodeRouter, "YES").
		On(testutils.MatchAutoMLRouter, "NO").
		On(testutils.MatchPlanner, "1. Fit").
		On(testutils.MatchCodeGen, extract.Fence("print('auc')")).
		On(testutils.MatchResults, "Metrics: auc 0.80").
		On(testutils.MatchValidator, verdict).
		On(testutils.MatchImprovement, "Tune.").
		On(testutils.MatchFinal, "Logistic regression reached 0.80.").
		Fallback("ok")
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := dsflow.New(nil)
	assert.Error(t, err)
}

func TestInvoke_StreamsOneEventPerStep(t *testing.T) {
	sandbox := testutils.NewFakeSandbox(domain.ExecutionResult{Stdout: "auc 0.80"}).
		WithHandle(&domain.SandboxHandle{Backend: "remote", SessionID: "s-1"})
	a, store := newAssistant(t, codeModel("VALID NO"), sandbox)

	events := collect(a.Invoke(context.Background(), dsflow.Request{RunID: "run-1", Message: "Predict churn"}))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventDone, last.Kind)
	assert.Contains(t, last.Text, "Logistic regression reached 0.80.")

	var steps []domain.StepID
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, domain.EventStep, ev.Kind)
		assert.Equal(t, "run-1", ev.RunID)
		steps = append(steps, ev.Step)
	}
	assert.Equal(t, []domain.StepID{
		domain.StepInput, domain.StepCodeRouter, domain.StepAutoMLRouter, domain.StepPlanner,
		domain.StepCodeGenerator, domain.StepExecutor, domain.StepResultSummarizer, domain.StepValidator,
		domain.StepFinalSummarizer,
	}, steps)

	assert.True(t, sandbox.Closed())

	saved, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, saved.Status)
	assert.Equal(t, "s-1", saved.Sandbox.SessionID)
	assert.Equal(t, len(steps), saved.Steps)
}

func TestRun_GeneratesRunID(t *testing.T) {
	model := testutils.NewScriptedModel().
		On(testutils.MatchCodeRouter, "NO").
		On(testutils.MatchNoCode, "An answer.")
	a, store := newAssistant(t, model, testutils.NewFakeSandbox())

	st, err := a.Run(context.Background(), dsflow.Request{Message: "What is AUC?"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, st.RunID)
	assert.Equal(t, "An answer.", st.Report)

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{st.RunID}, ids)
}

func TestRun_DepthExceeded(t *testing.T) {
	model := codeModel("WRONG")
	sandbox := testutils.NewFakeSandbox(domain.ExecutionResult{Stdout: "auc 0.5"})
	a, store := newAssistant(t, model, sandbox)

	var events []domain.StepEvent
	st, err := a.Run(context.Background(), dsflow.Request{RunID: "deep", Message: "Predict churn", RecursionLimit: 10},
		func(ev domain.StepEvent) { events = append(events, ev) })

	require.ErrorIs(t, err, domain.ErrDepthExceeded)
	assert.Equal(t, domain.StatusDepthExceeded, st.Status)
	assert.Equal(t, 10, st.Steps)
	assert.Equal(t, domain.EventDepthExceeded, events[len(events)-2].Kind)
	assert.Equal(t, domain.EventDone, events[len(events)-1].Kind)
	assert.True(t, sandbox.Closed())

	saved, err := store.Load(context.Background(), "deep")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDepthExceeded, saved.Status)
	assert.NotEmpty(t, saved.Messages)
}

func TestRun_StepErrorBecomesErrorEvent(t *testing.T) {
	model := testutils.NewScriptedModel().
		On(testutils.MatchCodeRouter, "YES").
		FailWith(errors.New("provider down"))
	a, _ := newAssistant(t, model, testutils.NewFakeSandbox())

	events := collect(a.Invoke(context.Background(), dsflow.Request{Message: "Predict churn"}))

	require.GreaterOrEqual(t, len(events), 2)
	errEv := events[len(events)-2]
	assert.Equal(t, domain.EventError, errEv.Kind)
	assert.Contains(t, errEv.Text, "provider down")
	assert.NotEmpty(t, errEv.Step)
	assert.Equal(t, domain.EventDone, events[len(events)-1].Kind)
}

func TestRun_RejectsInvalidMessages(t *testing.T) {
	a, store := newAssistant(t, testutils.NewScriptedModel(), testutils.NewFakeSandbox())

	for name, msg := range map[string]string{
		"empty":     "   ",
		"bad utf8":  "\xff",
		"too large": strings.Repeat("a", 1<<20),
	} {
		t.Run(name, func(t *testing.T) {
			var events []domain.StepEvent
			st, err := a.Run(context.Background(), dsflow.Request{Message: msg}, func(ev domain.StepEvent) {
				events = append(events, ev)
			})
			assert.Error(t, err)
			assert.Nil(t, st)
			require.Len(t, events, 1)
			assert.Equal(t, domain.EventError, events[0].Kind)
		})
	}

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRun_RejectsUnsafeDatasets(t *testing.T) {
	a, store := newAssistant(t, testutils.NewScriptedModel(), testutils.NewFakeSandbox())

	tests := []struct {
		name      string
		req       dsflow.Request
		wantField string
	}{
		{"traversal in name", dsflow.Request{Message: "Predict churn",
			Dataset: &domain.Dataset{Name: "../../etc/passwd", Columns: []string{"a"}}}, "dataset"},
		{"non csv path", dsflow.Request{Message: "Predict churn",
			Dataset: &domain.Dataset{Name: "churn.csv", Path: "/etc/shadow"}}, "dataset"},
		{"control chars in test name", dsflow.Request{Message: "Predict churn",
			Dataset:     &domain.Dataset{Name: "train.csv"},
			TestDataset: &domain.Dataset{Name: "test\x00.csv"}}, "test_dataset"},
		{"blank message", dsflow.Request{Message: "\x07 "}, "message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := a.Run(context.Background(), tt.req, nil)
			require.Error(t, err)
			assert.Nil(t, st)

			var inputErr *domain.InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tt.wantField, inputErr.Field)
			assert.Contains(t, err.Error(), "invalid "+tt.wantField)
		})
	}

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRun_SandboxOpenFailure(t *testing.T) {
	a, _ := newAssistant(t, testutils.NewScriptedModel(), testutils.NewFakeSandbox(),
		dsflow.WithSandboxProvider(failingProvider{}))

	st, err := a.Run(context.Background(), dsflow.Request{Message: "Predict churn"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open sandbox")
	assert.Equal(t, domain.StatusFailed, st.Status)
}

func TestRun_HooksAndLimits(t *testing.T) {
	var entered []domain.StepID
	var finished *domain.RunHookEvent
	hooks := domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepHookEvent) { entered = append(entered, e.Step) },
		OnRunFinish: func(_ context.Context, e *domain.RunHookEvent) { finished = e },
	}
	model := codeModel("VALID YES")
	a, _ := newAssistant(t, model, testutils.NewFakeSandbox(domain.ExecutionResult{Stdout: "ok"}),
		dsflow.WithLifecycleHooks(hooks),
		dsflow.WithLimits(domain.Limits{MaxImprovements: 1, MaxExecutionRetries: 1}))

	st, err := a.Run(context.Background(), dsflow.Request{Message: "Predict churn"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, st.ImprovementCount)
	assert.Equal(t, st.Visited, entered)
	require.NotNil(t, finished)
	assert.Equal(t, domain.StatusCompleted, finished.Status)
}

func TestInvoke_ConcurrentRunsAreIsolated(t *testing.T) {
	model := testutils.NewScriptedModel().
		On(testutils.MatchCodeRouter, "NO").
		On(testutils.MatchNoCode, "An answer.")
	a, store := newAssistant(t, model, testutils.NewFakeSandbox())

	streams := make([]<-chan domain.StepEvent, 8)
	for i := range streams {
		streams[i] = a.Invoke(context.Background(), dsflow.Request{Message: "What is AUC?"})
	}
	for _, s := range streams {
		events := collect(s)
		assert.Equal(t, []domain.EventKind{domain.EventStep, domain.EventStep, domain.EventStep, domain.EventDone}, kinds(events))
	}

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, len(streams))
}

type failingProvider struct{}

func (failingProvider) Open(context.Context, string) (ports.SandboxSession, error) {
	return nil, errors.New("no capacity")
}
