package steps

import (
	"context"

	"github.com/aretw0/dsflow/internal/prompts"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// Explainer turns the output of the step that just ran into a short,
// jargon-free explanation for the end user.
type Explainer struct {
	prompts *prompts.Catalog
}

// TemplateFor selects the explanation template for a step.
func TemplateFor(step domain.StepID) string {
	switch step {
	case domain.StepPlanner:
		return prompts.ExplainPlanning
	case domain.StepResultSummarizer, domain.StepAutoMLExecutor:
		return prompts.ExplainResults
	case domain.StepValidator:
		return prompts.ExplainValidator
	case domain.StepImprovement:
		return prompts.ExplainImprovement
	default:
		return prompts.ExplainGeneric
	}
}

// Explain picks the template from st.CurrentStep.
func (e *Explainer) Explain(ctx context.Context, st *domain.State, model ports.ModelClient, text string) (string, error) {
	return complete(ctx, model, e.prompts.Explain(TemplateFor(st.CurrentStep), text))
}
