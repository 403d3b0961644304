package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/dsflow/internal/prompts"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// Input extracts the task from the latest user message and initializes
// defaults. Running it again never resets counters or logs.
type Input struct {
	prompts   *prompts.Catalog
	translate bool
}

func (s *Input) ID() domain.StepID { return domain.StepInput }

func (s *Input) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	msg, ok := st.LastUserMessage()
	if !ok || strings.TrimSpace(msg.Content) == "" {
		return domain.Update{}, domain.ErrEmptyTask
	}
	task := strings.TrimSpace(msg.Content)

	if s.translate {
		translated, err := complete(ctx, model, s.prompts.Translate(task))
		if err != nil {
			return domain.Update{}, fmt.Errorf("translate task: %w", err)
		}
		if translated != "" {
			task = translated
		}
	}

	return domain.Update{
		Initialize: true,
		Task:       &task,
	}, nil
}
