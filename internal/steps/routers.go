package steps

import (
	"context"

	"github.com/aretw0/dsflow/internal/classify"
	"github.com/aretw0/dsflow/internal/prompts"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// CodeRouter decides whether the task needs code.
type CodeRouter struct {
	prompts *prompts.Catalog
}

func (s *CodeRouter) ID() domain.StepID { return domain.StepCodeRouter }

func (s *CodeRouter) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	reply, err := complete(ctx, model, s.prompts.CodeRouter(st.Task))
	if err != nil {
		return domain.Update{}, err
	}
	need := classify.CodeNeed(reply)
	return domain.Update{
		Messages: []domain.Message{domain.StepMessage(s.ID(), reply)},
		CodeNeed: &need,
	}, nil
}

// NoCode answers directly when no code is required.
type NoCode struct {
	prompts *prompts.Catalog
}

func (s *NoCode) ID() domain.StepID { return domain.StepNoCode }

func (s *NoCode) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	answer, err := complete(ctx, model, s.prompts.NoCode(st.Task))
	if err != nil {
		return domain.Update{}, err
	}
	return domain.Update{
		Messages: []domain.Message{domain.StepMessage(s.ID(), answer)},
		Report:   &answer,
	}, nil
}

// AutoMLRouter decides between a managed AutoML system and general code
// generation.
type AutoMLRouter struct {
	prompts *prompts.Catalog
}

func (s *AutoMLRouter) ID() domain.StepID { return domain.StepAutoMLRouter }

func (s *AutoMLRouter) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	reply, err := complete(ctx, model, s.prompts.AutoMLRouter(st.Task))
	if err != nil {
		return domain.Update{}, err
	}
	choice := classify.AutoML(reply)
	return domain.Update{
		Messages: []domain.Message{domain.StepMessage(s.ID(), reply)},
		AutoML:   &choice,
	}, nil
}
