package domain

// StepID identifies one step of the workflow graph.
// The set is closed: every step the engine can run is listed below.
type StepID string

const (
	StepInput            StepID = "input"
	StepCodeRouter       StepID = "code_router"
	StepNoCode           StepID = "no_code"
	StepAutoMLRouter     StepID = "automl_router"
	StepAutoMLConfig     StepID = "automl_config"
	StepAutoMLExecutor   StepID = "automl_executor"
	StepPlanner          StepID = "planner"
	StepCodeGenerator    StepID = "code_generator"
	StepExecutor         StepID = "executor"
	StepResultSummarizer StepID = "result_summarizer"
	StepValidator        StepID = "validator"
	StepImprovement      StepID = "improvement"
	StepTrainTestSplit   StepID = "train_test_split"
	StepSplitExecutor    StepID = "split_executor"
	StepFinalSummarizer  StepID = "final_summarizer"

	// StepEnd is the routing sentinel for "no further step".
	StepEnd StepID = "__end__"
)

// AllSteps returns every runnable step in canonical order.
func AllSteps() []StepID {
	return []StepID{
		StepInput,
		StepCodeRouter,
		StepNoCode,
		StepAutoMLRouter,
		StepAutoMLConfig,
		StepAutoMLExecutor,
		StepPlanner,
		StepCodeGenerator,
		StepExecutor,
		StepResultSummarizer,
		StepValidator,
		StepImprovement,
		StepTrainTestSplit,
		StepSplitExecutor,
		StepFinalSummarizer,
	}
}

// Valid reports whether id is a known step or the end sentinel.
func (id StepID) Valid() bool {
	if id == StepEnd {
		return true
	}
	for _, s := range AllSteps() {
		if s == id {
			return true
		}
	}
	return false
}

func (id StepID) String() string {
	return string(id)
}
