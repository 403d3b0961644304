package steps

import (
	"context"

	"github.com/aretw0/dsflow/internal/extract"
	"github.com/aretw0/dsflow/internal/prompts"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// Planner writes a short enumerated plan. Fenced blocks are dropped so the
// stored plan never carries code.
type Planner struct {
	prompts   *prompts.Catalog
	explainer *Explainer
}

func (s *Planner) ID() domain.StepID { return domain.StepPlanner }

func (s *Planner) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	reply, err := complete(ctx, model, s.prompts.Planner(st.Task, st.Dataset))
	if err != nil {
		return domain.Update{}, err
	}
	plan := extract.StripFences(reply)

	explanation, err := s.explainer.Explain(ctx, st, model, plan)
	if err != nil {
		return domain.Update{}, err
	}

	return domain.Update{
		Messages:          []domain.Message{domain.StepMessage(s.ID(), plan)},
		RephrasedPlan:     &plan,
		HumanExplanations: []string{explanation},
	}, nil
}

// CodeGenerator writes one executable block from the running transcript.
type CodeGenerator struct {
	prompts *prompts.Catalog
}

func (s *CodeGenerator) ID() domain.StepID { return domain.StepCodeGenerator }

func (s *CodeGenerator) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	reply, err := complete(ctx, model, s.prompts.CodeGenerator(st.Task, st.Dataset, st.TestDataset, conversation(st)))
	if err != nil {
		return domain.Update{}, err
	}
	return domain.Update{
		Messages: []domain.Message{domain.StepMessage(s.ID(), reply)},
	}, nil
}
