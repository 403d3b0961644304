package steps_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/dsflow/internal/extract"
	"github.com/aretw0/dsflow/internal/prompts"
	"github.com/aretw0/dsflow/internal/steps"
	"github.com/aretw0/dsflow/internal/testutils"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customers() *domain.Dataset {
	return &domain.Dataset{
		Name:    "customers.csv",
		Columns: []string{"id", "tenure", "churn"},
		Head:    [][]string{{"1", "12", "0"}, {"2", "3", "1"}},
	}
}

type fixture struct {
	model   *testutils.ScriptedModel
	sandbox *testutils.FakeSandbox
	scripts *testutils.FakeScripts
	catalog map[domain.StepID]steps.Step
}

func newFixture(results ...domain.ExecutionResult) *fixture {
	f := &fixture{
		model:   testutils.NewScriptedModel().On(testutils.MatchExplain, "plain words"),
		sandbox: testutils.NewFakeSandbox(results...),
		scripts: &testutils.FakeScripts{Result: domain.ExecutionResult{Stdout: "auc 0.91"}},
	}
	f.catalog = steps.Catalog(steps.Deps{
		Prompts: prompts.New(),
		Sandbox: f.sandbox,
		Scripts: f.scripts,
		Timeout: 3000 * time.Second,
	})
	return f
}

// run mimics the scheduler: record the step, invoke it, merge the update.
func (f *fixture) run(t *testing.T, st *domain.State, id domain.StepID) domain.Update {
	t.Helper()
	st.CurrentStep = id
	u, err := f.catalog[id].Run(context.Background(), st, f.model)
	require.NoError(t, err)
	st.Apply(u)
	return u
}

func newState(msg string) *domain.State {
	st := domain.NewState("run-1", msg, domain.DefaultLimits())
	st.Dataset = customers()
	return st
}

func TestCatalog_CoversEveryStep(t *testing.T) {
	catalog := steps.Catalog(steps.Deps{})
	for _, id := range domain.AllSteps() {
		s, ok := catalog[id]
		require.True(t, ok, "missing step %s", id)
		assert.Equal(t, id, s.ID())
	}
}

func TestInput_ExtractsTaskAndIsIdempotent(t *testing.T) {
	f := newFixture()
	st := newState("  classify churn  ")

	f.run(t, st, domain.StepInput)
	assert.Equal(t, "classify churn", st.Task)
	assert.True(t, st.Initialized)

	st.Apply(domain.Update{
		IncrementImprovement: true,
		Feedback:             []domain.FeedbackEntry{{Kind: domain.FeedbackResult, Text: "r"}},
		HumanExplanations:    []string{"e"},
	})
	f.run(t, st, domain.StepInput)

	assert.Equal(t, 1, st.ImprovementCount)
	assert.Len(t, st.Feedback, 1)
	assert.Equal(t, []string{"e"}, st.HumanExplanations)
}

func TestInput_Translates(t *testing.T) {
	model := testutils.NewScriptedModel().On(testutils.MatchTranslate, "classifique churn")
	catalog := steps.Catalog(steps.Deps{Prompts: prompts.New(prompts.WithLanguage("pt")), TranslateInput: true})

	st := newState("classify churn")
	u, err := catalog[domain.StepInput].Run(context.Background(), st, model)
	require.NoError(t, err)
	require.NotNil(t, u.Task)
	assert.Equal(t, "classifique churn", *u.Task)
}

func TestInput_NoMessage(t *testing.T) {
	f := newFixture()
	st := domain.NewState("run-1", "", domain.DefaultLimits())
	_, err := f.catalog[domain.StepInput].Run(context.Background(), st, f.model)
	assert.ErrorIs(t, err, domain.ErrEmptyTask)
}

func TestRouters_SetSignals(t *testing.T) {
	f := newFixture()
	f.model.On(testutils.MatchCodeRouter, "NO").On(testutils.MatchAutoMLRouter, "FEDOT")
	st := newState("what is churn?")
	st.Task = "what is churn?"

	f.run(t, st, domain.StepCodeRouter)
	f.run(t, st, domain.StepAutoMLRouter)

	assert.Equal(t, domain.CodeNotRequired, st.CodeNeed)
	assert.Equal(t, domain.AutoMLFedot, st.AutoML)
}

func TestNoCode_SetsReport(t *testing.T) {
	f := newFixture()
	f.model.On(testutils.MatchNoCode, "Churn is when customers leave.")
	st := newState("what is churn?")

	f.run(t, st, domain.StepNoCode)
	assert.Equal(t, "Churn is when customers leave.", st.Report)
}

func TestAutoMLConfig_TargetRoundTrip(t *testing.T) {
	for _, target := range []string{"id", "tenure", "churn"} {
		f := newFixture()
		f.model.On(testutils.MatchAutoMLConfig, "```json\n{\"task_type\": \"binary\", \"target\": \""+target+"\", \"task_metric\": \"auc\"}\n```")
		st := newState("use lightautoml")

		f.run(t, st, domain.StepAutoMLConfig)
		require.NotNil(t, st.AutoMLConfig)
		assert.Equal(t, target, st.AutoMLConfig.Target)
	}
}

func TestAutoMLConfig_HardErrors(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		ds      *domain.Dataset
		wantErr error
	}{
		{"absent target", "```json\n{\"task_type\": \"binary\", \"target\": \"revenue\", \"task_metric\": \"auc\"}\n```", customers(), domain.ErrTargetNotFound},
		{"no json block", "task_type=binary target=churn", customers(), domain.ErrMalformedConfig},
		{"invalid json", "```json\n{task_type: binary\n```", customers(), domain.ErrMalformedConfig},
		{"missing field", "```json\n{\"task_type\": \"binary\", \"target\": \"churn\"}\n```", customers(), domain.ErrMalformedConfig},
		{"wrong type", "```json\n{\"task_type\": \"binary\", \"target\": 3, \"task_metric\": \"auc\"}\n```", customers(), domain.ErrMalformedConfig},
		{"no dataset", "", nil, domain.ErrMissingDataset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.model.On(testutils.MatchAutoMLConfig, tt.reply)
			st := newState("use lightautoml")
			st.Dataset = tt.ds

			_, err := f.catalog[domain.StepAutoMLConfig].Run(context.Background(), st, f.model)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAutoMLExecutor_RunsScriptWithPositionalParameters(t *testing.T) {
	f := newFixture()
	st := newState("use fedot")
	st.AutoML = domain.AutoMLFedot
	st.AutoMLConfig = &domain.AutoMLConfig{TaskType: "binary", Target: "churn", TaskMetric: "auc"}

	f.run(t, st, domain.StepAutoMLExecutor)

	calls := f.scripts.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, steps.ScriptFedot, calls[0].Name)
	assert.Equal(t, []string{"--df_name", "customers.csv", "--task_type", "binary", "--target", "churn", "--task_metric", "auc"}, calls[0].Args)
	assert.Contains(t, st.Report, "auc 0.91")
	assert.Equal(t, []string{"plain words"}, st.HumanExplanations)
}

func TestPlanner_StripsCodeAndUsesPlanningTemplate(t *testing.T) {
	f := newFixture()
	f.model.On(testutils.MatchPlanner, "1. Load data\n```python\nimport pandas\n```\n2. Fit model")
	st := newState("classify churn")

	f.run(t, st, domain.StepPlanner)

	assert.Equal(t, "1. Load data\n\n2. Fit model", st.RephrasedPlan)
	assert.NotContains(t, st.RephrasedPlan, "```")
	explains := f.model.CallsMatching(testutils.MatchExplain)
	require.Len(t, explains, 1)
	assert.Contains(t, explains[0].User, "plan for solving the task")
	assert.Equal(t, []string{"plain words"}, st.HumanExplanations)
}

func TestCodeGenerator_SkipsRouterReplies(t *testing.T) {
	f := newFixture()
	f.model.On(testutils.MatchCodeGen, extract.Fence("print(1)"))
	st := newState("classify churn")
	st.Apply(domain.Update{Messages: []domain.Message{
		domain.StepMessage(domain.StepCodeRouter, "YES"),
		domain.StepMessage(domain.StepPlanner, "1. plan"),
	}})

	f.run(t, st, domain.StepCodeGenerator)

	calls := f.model.CallsMatching(testutils.MatchCodeGen)
	require.Len(t, calls, 1)
	for _, m := range calls[0].History {
		assert.NotEqual(t, domain.StepCodeRouter, m.Step)
	}
	assert.Len(t, calls[0].History, 2)
	last, _ := st.LastMessage()
	assert.True(t, extract.HasCode(last.Content))
}

func TestExecutor_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		result      domain.ExecutionResult
		wantPrefix  string
		wantRetries int
	}{
		{"success", domain.ExecutionResult{Stdout: "accuracy 0.9"}, "Result of code execution:", 0},
		{"failure", domain.ExecutionResult{ExitCode: 1, Stderr: "Traceback (most recent call last):\nValueError: x"}, "An error occurred during code execution:", 3},
		{"timeout", domain.ExecutionResult{TimedOut: true, Timeout: 5 * time.Second}, "Code exceeded execution time (5 seconds)", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.result)
			st := newState("classify churn")
			st.ExecutionRetries = 2
			st.Apply(domain.Update{Messages: []domain.Message{domain.StepMessage(domain.StepCodeGenerator, extract.Fence("print('hi')"))}})

			f.run(t, st, domain.StepExecutor)

			assert.Equal(t, []string{"print('hi')"}, f.sandbox.Executed())
			assert.Equal(t, "print('hi')", st.GeneratedCode.Source)
			assert.True(t, len(st.CodeResults) > 0)
			assert.Contains(t, st.CodeResults, tt.wantPrefix)
			assert.Equal(t, tt.wantRetries, st.ExecutionRetries)
			require.NotNil(t, st.LastExecution)
		})
	}
}

func TestExecutor_FailureFraming(t *testing.T) {
	text := steps.FormatResult(domain.ExecutionResult{ExitCode: 1, Stderr: "KeyError: 'churn'"}, time.Second)
	assert.Equal(t, "An error occurred during code execution:\n```\nKeyError: 'churn'\n```\nFix the error", text)

	text = steps.FormatResult(domain.ExecutionResult{Stdout: "rmse 1.2\n", Artifacts: []domain.Artifact{{Kind: "text", Text: "<Figure>"}}}, time.Second)
	assert.Equal(t, "Result of code execution:\n```\nrmse 1.2\n<Figure>\n```", text)
}

func TestExecutor_NoCodeIsAnExecutionFailure(t *testing.T) {
	f := newFixture()
	st := newState("classify churn")

	f.run(t, st, domain.StepExecutor)

	assert.Empty(t, f.sandbox.Executed())
	assert.Contains(t, st.CodeResults, "no executable code block found")
	assert.Equal(t, 1, st.ExecutionRetries)
}

func TestResultSummarizer_RecordsIterationResult(t *testing.T) {
	f := newFixture()
	f.model.On(testutils.MatchResults, "Models:\n- model_1: LogisticRegression\nMetrics:\n- metric_1: ROC-AUC 0.84")
	st := newState("classify churn")
	st.ImprovementCount = 2

	f.run(t, st, domain.StepResultSummarizer)

	require.Len(t, st.Feedback, 1)
	assert.Equal(t, "Result 2", st.Feedback[0].Label())
	assert.Contains(t, st.Feedback[0].Text, "LogisticRegression")
	assert.Len(t, st.HumanExplanations, 1)
}

func TestValidator_Verdicts(t *testing.T) {
	tests := []struct {
		reply          string
		want           domain.Verdict
		explanation    bool
		wantRejections int
	}{
		{"VALID NO", domain.VerdictValidNo, true, 0},
		{"VALID YES", domain.VerdictValidYes, true, 0},
		{"WRONG: metric not printed", domain.VerdictWrong, false, 2},
		{"I am not sure", domain.VerdictWrong, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			f := newFixture()
			f.model.On(testutils.MatchValidator, tt.reply)
			st := newState("classify churn")
			st.Rejections = 1

			f.run(t, st, domain.StepValidator)

			assert.Equal(t, tt.want, st.Verdict)
			assert.Equal(t, tt.explanation, len(st.HumanExplanations) == 1)
			assert.Equal(t, tt.wantRejections, st.Rejections)
		})
	}
}

func TestImprovementAgent_CountsAndLogs(t *testing.T) {
	f := newFixture()
	f.model.On(testutils.MatchImprovement, "Add tenure buckets as a feature.")
	st := newState("classify churn, improve it")
	st.Feedback = []domain.FeedbackEntry{{Iteration: 0, Kind: domain.FeedbackResult, Text: "ROC-AUC 0.80"}}

	f.run(t, st, domain.StepImprovement)

	assert.Equal(t, 1, st.ImprovementCount)
	require.Len(t, st.Feedback, 2)
	assert.Equal(t, "Improvement 1", st.Feedback[1].Label())
	calls := f.model.CallsMatching(testutils.MatchImprovement)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].User, "Result 0:\nROC-AUC 0.80")
}

func TestFinalSummarizer_SingleResultHasNoBaseline(t *testing.T) {
	f := newFixture()
	f.model.On(testutils.MatchFinal, "Logistic regression reached ROC-AUC 0.84.")
	st := newState("classify churn")
	st.Task = "classify churn"
	st.Feedback = []domain.FeedbackEntry{{Iteration: 0, Kind: domain.FeedbackResult, Text: "ROC-AUC 0.84"}}

	f.run(t, st, domain.StepFinalSummarizer)

	assert.Contains(t, st.Report, "## Result\n\nROC-AUC 0.84")
	assert.NotContains(t, st.Report, "Baseline")
	assert.NotContains(t, st.Report, "baseline")
	assert.Contains(t, st.Report, "Logistic regression reached ROC-AUC 0.84.")
}

func TestRenderOutline_OrdersImprovementPairs(t *testing.T) {
	st := newState("classify churn")
	st.Task = "classify churn"
	st.Feedback = []domain.FeedbackEntry{
		{Iteration: 0, Kind: domain.FeedbackResult, Text: "stale"},
		{Iteration: 0, Kind: domain.FeedbackResult, Text: "auc 0.80"},
		{Iteration: 1, Kind: domain.FeedbackImprovement, Text: "add features"},
		{Iteration: 1, Kind: domain.FeedbackResult, Text: "auc 0.83"},
		{Iteration: 2, Kind: domain.FeedbackImprovement, Text: "tune depth"},
		{Iteration: 2, Kind: domain.FeedbackResult, Text: "auc 0.85"},
	}

	out := steps.RenderOutline(st)

	assert.NotContains(t, out, "stale")
	order := []string{"## User's task", "## Baseline result\n\nauc 0.80", "## Improvement 1\n\nadd features", "## Result 1\n\nauc 0.83", "## Improvement 2\n\ntune depth", "## Result 2\n\nauc 0.85"}
	last := -1
	for _, part := range order {
		idx := strings.Index(out, part)
		require.GreaterOrEqual(t, idx, 0, "missing %q", part)
		assert.Greater(t, idx, last, "%q out of order", part)
		last = idx
	}
}

func TestRenderOutline_LastImprovementAtLimitIsNotAFailure(t *testing.T) {
	st := domain.NewState("run-1", "classify churn", domain.Limits{MaxImprovements: 2, MaxExecutionRetries: 3, MaxRejections: 3})
	st.Task = "classify churn"
	st.ImprovementCount = 2
	st.LastExecution = &domain.ExecutionResult{Stdout: "auc 0.83"}
	st.Feedback = []domain.FeedbackEntry{
		{Iteration: 0, Kind: domain.FeedbackResult, Text: "auc 0.80"},
		{Iteration: 1, Kind: domain.FeedbackImprovement, Text: "add features"},
		{Iteration: 1, Kind: domain.FeedbackResult, Text: "auc 0.83"},
		{Iteration: 2, Kind: domain.FeedbackImprovement, Text: "tune depth"},
	}

	out := steps.RenderOutline(st)

	assert.Contains(t, out, "## Improvement 2\n\ntune depth\n\n## Result 2\n\nProposed, not executed (improvement limit reached).")
	assert.NotContains(t, out, "No result was obtained")
}

func TestRenderOutline_FailedImprovementBelowLimit(t *testing.T) {
	st := newState("classify churn")
	st.Task = "classify churn"
	st.ImprovementCount = 1
	st.LastExecution = &domain.ExecutionResult{ExitCode: 1, Stderr: "MemoryError"}
	st.Feedback = []domain.FeedbackEntry{
		{Iteration: 0, Kind: domain.FeedbackResult, Text: "auc 0.80"},
		{Iteration: 1, Kind: domain.FeedbackImprovement, Text: "bigger forest"},
	}

	out := steps.RenderOutline(st)

	assert.Contains(t, out, "## Result 1\n\nNo result was obtained. Last execution error")
	assert.NotContains(t, out, "not executed")
}

func TestRenderOutline_NoResultMentionsLastError(t *testing.T) {
	st := newState("classify churn")
	st.LastExecution = &domain.ExecutionResult{ExitCode: 1, Stderr: "ValueError: boom"}

	out := steps.RenderOutline(st)
	assert.Contains(t, out, "## Result")
	assert.Contains(t, out, "ValueError: boom")
}

func TestSplit_RunsTrainThenTest(t *testing.T) {
	f := newFixture(domain.ExecutionResult{Stdout: "saved model"}, domain.ExecutionResult{Stdout: "wrote predictions"})
	f.model.On(testutils.MatchSplit, "train_code:\n"+extract.Fence("fit()")+"\ntest_code:\n"+extract.Fence("predict()"))
	st := newState("classify churn")
	st.TestDataset = &domain.Dataset{Name: "customers_test.csv", Columns: []string{"id", "tenure"}}
	st.GeneratedCode = domain.Code{Source: "fit(); predict()"}

	f.run(t, st, domain.StepTrainTestSplit)
	f.run(t, st, domain.StepSplitExecutor)

	assert.Equal(t, []string{"fit()", "predict()"}, f.sandbox.Executed())
	assert.Equal(t, domain.Code{Source: "fit(); predict()", Train: "fit()", Test: "predict()"}, st.GeneratedCode)
	assert.Contains(t, st.CodeResults, "saved model")
	assert.Contains(t, st.CodeResults, "wrote predictions")
}

func TestSplit_RequiresTestDataset(t *testing.T) {
	f := newFixture()
	st := newState("classify churn")
	_, err := f.catalog[domain.StepTrainTestSplit].Run(context.Background(), st, f.model)
	assert.ErrorIs(t, err, domain.ErrMissingDataset)
}

func TestTemplateFor(t *testing.T) {
	assert.Equal(t, prompts.ExplainPlanning, steps.TemplateFor(domain.StepPlanner))
	assert.Equal(t, prompts.ExplainResults, steps.TemplateFor(domain.StepResultSummarizer))
	assert.Equal(t, prompts.ExplainValidator, steps.TemplateFor(domain.StepValidator))
	assert.Equal(t, prompts.ExplainImprovement, steps.TemplateFor(domain.StepImprovement))
	assert.Equal(t, prompts.ExplainGeneric, steps.TemplateFor(domain.StepInput))
}
