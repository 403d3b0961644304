package steps

import (
	"context"

	"github.com/aretw0/dsflow/internal/classify"
	"github.com/aretw0/dsflow/internal/prompts"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// ResultSummarizer reduces the latest execution output to the
// "Models: ... Metrics: ..." form and records it in the feedback log.
type ResultSummarizer struct {
	prompts   *prompts.Catalog
	explainer *Explainer
}

func (s *ResultSummarizer) ID() domain.StepID { return domain.StepResultSummarizer }

func (s *ResultSummarizer) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	summary, err := complete(ctx, model, s.prompts.ResultSummarizer(st.Task, st.CodeResults))
	if err != nil {
		return domain.Update{}, err
	}
	explanation, err := s.explainer.Explain(ctx, st, model, summary)
	if err != nil {
		return domain.Update{}, err
	}
	return domain.Update{
		Messages: []domain.Message{domain.StepMessage(s.ID(), summary)},
		Feedback: []domain.FeedbackEntry{{
			Iteration: st.ImprovementCount,
			Kind:      domain.FeedbackResult,
			Text:      summary,
		}},
		HumanExplanations: []string{explanation},
	}, nil
}

// Validator emits exactly one of VALID_NO, VALID_YES or WRONG and counts
// consecutive WRONG verdicts.
type Validator struct {
	prompts   *prompts.Catalog
	explainer *Explainer
}

func (s *Validator) ID() domain.StepID { return domain.StepValidator }

func (s *Validator) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	result := st.CodeResults
	if summary, ok := st.LastStepMessage(domain.StepResultSummarizer); ok {
		result += "\n" + summary.Content
	}
	reply, err := complete(ctx, model, s.prompts.Validator(st.Task, st.RephrasedPlan, st.GeneratedCode.Source, result))
	if err != nil {
		return domain.Update{}, err
	}
	verdict := classify.Verdict(reply)
	rejections := 0
	if verdict == domain.VerdictWrong {
		rejections = st.Rejections + 1
	}

	update := domain.Update{
		Messages:   []domain.Message{domain.StepMessage(s.ID(), reply)},
		Verdict:    &verdict,
		Rejections: &rejections,
	}
	if verdict != domain.VerdictWrong {
		explanation, err := s.explainer.Explain(ctx, st, model, reply)
		if err != nil {
			return domain.Update{}, err
		}
		update.HumanExplanations = []string{explanation}
	}
	return update, nil
}

// ImprovementAgent proposes one improvement direction and counts it.
type ImprovementAgent struct {
	prompts   *prompts.Catalog
	explainer *Explainer
}

func (s *ImprovementAgent) ID() domain.StepID { return domain.StepImprovement }

func (s *ImprovementAgent) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	reply, err := complete(ctx, model, s.prompts.Improvement(st.Task, st.GeneratedCode.Source, st.CodeResults, RenderFeedback(st.Feedback)))
	if err != nil {
		return domain.Update{}, err
	}
	explanation, err := s.explainer.Explain(ctx, st, model, reply)
	if err != nil {
		return domain.Update{}, err
	}
	return domain.Update{
		Messages: []domain.Message{domain.StepMessage(s.ID(), reply)},
		Feedback: []domain.FeedbackEntry{{
			Iteration: st.ImprovementCount + 1,
			Kind:      domain.FeedbackImprovement,
			Text:      reply,
		}},
		HumanExplanations:    []string{explanation},
		IncrementImprovement: true,
	}, nil
}

// TrainTestSplitter asks for the final code split into a training block
// and an inference block over the test dataset.
type TrainTestSplitter struct {
	prompts *prompts.Catalog
}

func (s *TrainTestSplitter) ID() domain.StepID { return domain.StepTrainTestSplit }

func (s *TrainTestSplitter) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	if st.Dataset == nil || st.TestDataset == nil {
		return domain.Update{}, domain.ErrMissingDataset
	}
	reply, err := complete(ctx, model, s.prompts.TrainTestSplit(st.GeneratedCode.Source, st.Dataset, st.TestDataset))
	if err != nil {
		return domain.Update{}, err
	}
	return domain.Update{
		Messages: []domain.Message{domain.StepMessage(s.ID(), reply)},
	}, nil
}
