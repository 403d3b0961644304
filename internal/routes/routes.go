// Package routes holds the router predicates of the workflow. Each maps
// every state to exactly one of the targets it declares; predicates read
// closed signals and counters, never model text, except for the execution
// output inspected for error signatures.
package routes

import (
	"github.com/aretw0/dsflow/internal/classify"
	"github.com/aretw0/dsflow/internal/extract"
	"github.com/aretw0/dsflow/pkg/domain"
)

// Predicate selects the next step from the state.
type Predicate func(*domain.State) domain.StepID

// Route is a predicate together with the targets it may select.
type Route struct {
	Name      string
	Predicate Predicate
	Targets   []domain.StepID
}

// AfterCodeRouter sends code tasks on to the AutoML Router.
var AfterCodeRouter = Route{
	Name:    "code needed",
	Targets: []domain.StepID{domain.StepAutoMLRouter, domain.StepNoCode},
	Predicate: func(s *domain.State) domain.StepID {
		if s.CodeNeed == domain.CodeNotRequired {
			return domain.StepNoCode
		}
		return domain.StepAutoMLRouter
	},
}

// AfterAutoMLRouter picks the managed branch or general code generation.
// The plan is written once per run.
var AfterAutoMLRouter = Route{
	Name:    "automl",
	Targets: []domain.StepID{domain.StepAutoMLConfig, domain.StepPlanner, domain.StepCodeGenerator},
	Predicate: func(s *domain.State) domain.StepID {
		switch {
		case s.AutoML.Managed():
			return domain.StepAutoMLConfig
		case s.RephrasedPlan == "":
			return domain.StepPlanner
		default:
			return domain.StepCodeGenerator
		}
	},
}

// AfterCodeGeneration executes code when the reply carries a block and
// otherwise lets the validator judge the textual answer.
var AfterCodeGeneration = Route{
	Name:    "has code",
	Targets: []domain.StepID{domain.StepExecutor, domain.StepValidator},
	Predicate: func(s *domain.State) domain.StepID {
		if msg, ok := s.LastStepMessage(domain.StepCodeGenerator); ok && extract.HasCode(msg.Content) {
			return domain.StepExecutor
		}
		return domain.StepValidator
	},
}

// AfterExecution is the Execution Retry Predicate. An error goes back to
// the code generator for up to MaxExecutionRetries retries, so a bound of
// N allows N+1 executions before the run is summarized.
var AfterExecution = Route{
	Name:    "execution ok",
	Targets: []domain.StepID{domain.StepResultSummarizer, domain.StepCodeGenerator, domain.StepFinalSummarizer},
	Predicate: func(s *domain.State) domain.StepID {
		if !ExecutionFailed(s) {
			return domain.StepResultSummarizer
		}
		if s.ExecutionRetries <= s.Limits.MaxExecutionRetries {
			return domain.StepCodeGenerator
		}
		return domain.StepFinalSummarizer
	},
}

// AfterValidation dispatches on the validator verdict. An improvement is
// only started while the bound allows one more. WRONG goes back to the
// code generator for up to MaxRejections consecutive verdicts, after which
// the run is summarized.
var AfterValidation = Route{
	Name:    "verdict",
	Targets: []domain.StepID{domain.StepImprovement, domain.StepCodeGenerator, domain.StepTrainTestSplit, domain.StepFinalSummarizer},
	Predicate: func(s *domain.State) domain.StepID {
		switch s.Verdict {
		case domain.VerdictValidYes:
			if s.ImprovementCount < s.Limits.MaxImprovements {
				return domain.StepImprovement
			}
			return finish(s)
		case domain.VerdictValidNo:
			return finish(s)
		default:
			if s.Rejections <= s.Limits.MaxRejections {
				return domain.StepCodeGenerator
			}
			return domain.StepFinalSummarizer
		}
	},
}

// AfterImprovement is the Improvement-Bound Check.
var AfterImprovement = Route{
	Name:    "improvements left",
	Targets: []domain.StepID{domain.StepCodeGenerator, domain.StepFinalSummarizer},
	Predicate: func(s *domain.State) domain.StepID {
		if s.ImprovementCount < s.Limits.MaxImprovements {
			return domain.StepCodeGenerator
		}
		return domain.StepFinalSummarizer
	},
}

// ExecutionFailed reports whether the latest execution result carries an
// error, either as recorded by the executor or as a signature in its
// transcript message.
func ExecutionFailed(s *domain.State) bool {
	if s.LastExecution != nil && s.LastExecution.Failed() {
		return true
	}
	if msg, ok := s.LastStepMessage(domain.StepExecutor); ok {
		return classify.HasErrorSignature(msg.Content)
	}
	return false
}

func finish(s *domain.State) domain.StepID {
	if s.TestDataset != nil && s.Dataset != nil && s.GeneratedCode.Source != "" {
		return domain.StepTrainTestSplit
	}
	return domain.StepFinalSummarizer
}
