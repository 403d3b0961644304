package ports

import (
	"context"

	"github.com/aretw0/dsflow/pkg/domain"
)

// Prompt is one request to a language model.
type Prompt struct {
	// System is optional.
	System string
	User   string
	// History is prepended to the user prompt in order.
	History []domain.Message
}

// ModelClient completes prompts. Implementations block until text is
// returned and retry transient failures themselves.
type ModelClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// ModelProvider hands out a model client bound to a step's role.
type ModelProvider interface {
	ForStep(step domain.StepID) ModelClient
}

// ModelClientFunc adapts a function to ModelClient.
type ModelClientFunc func(ctx context.Context, prompt Prompt) (string, error)

func (f ModelClientFunc) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// SingleModel serves the same client to every step.
type SingleModel struct {
	Client ModelClient
}

func (s SingleModel) ForStep(domain.StepID) ModelClient {
	return s.Client
}
