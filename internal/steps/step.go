// Package steps implements every workflow step as a transformation from the
// current run state to a partial update.
//
// Steps read the state and never mutate it; the scheduler applies the
// returned update. Only the execution steps touch a sandbox.
package steps

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/dsflow/internal/logging"
	"github.com/aretw0/dsflow/internal/prompts"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// Step is one node of the workflow graph.
type Step interface {
	ID() domain.StepID
	Run(ctx context.Context, state *domain.State, model ports.ModelClient) (domain.Update, error)
}

// Script names registered with the ScriptRunner for the managed AutoML branch.
const (
	ScriptLightAutoML = "lightautoml"
	ScriptFedot       = "fedot"
)

// Deps carries the collaborators steps are built with.
type Deps struct {
	Prompts *prompts.Catalog
	Sandbox ports.Sandbox
	Scripts ports.ScriptRunner
	// Timeout is the sandbox timeout, quoted in timeout messages.
	Timeout        time.Duration
	TranslateInput bool
	Logger         *slog.Logger
}

// Catalog builds one instance of every step.
func Catalog(d Deps) map[domain.StepID]Step {
	if d.Prompts == nil {
		d.Prompts = prompts.New()
	}
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	ex := &Explainer{prompts: d.Prompts}

	all := []Step{
		&Input{prompts: d.Prompts, translate: d.TranslateInput},
		&CodeRouter{prompts: d.Prompts},
		&NoCode{prompts: d.Prompts},
		&AutoMLRouter{prompts: d.Prompts},
		&AutoMLConfigGenerator{prompts: d.Prompts},
		&AutoMLExecutor{scripts: d.Scripts, explainer: ex, logger: d.Logger},
		&Planner{prompts: d.Prompts, explainer: ex},
		&CodeGenerator{prompts: d.Prompts},
		&Executor{sandbox: d.Sandbox, timeout: d.Timeout, logger: d.Logger},
		&ResultSummarizer{prompts: d.Prompts, explainer: ex},
		&Validator{prompts: d.Prompts, explainer: ex},
		&ImprovementAgent{prompts: d.Prompts, explainer: ex},
		&TrainTestSplitter{prompts: d.Prompts},
		&SplitExecutor{sandbox: d.Sandbox, timeout: d.Timeout, logger: d.Logger},
		&FinalSummarizer{prompts: d.Prompts},
	}

	out := make(map[domain.StepID]Step, len(all))
	for _, s := range all {
		out[s.ID()] = s
	}
	return out
}

func complete(ctx context.Context, model ports.ModelClient, p ports.Prompt) (string, error) {
	reply, err := model.Complete(ctx, p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// conversation is the transcript handed to the code generator, without the
// bare router replies.
func conversation(st *domain.State) []domain.Message {
	out := make([]domain.Message, 0, len(st.Messages))
	for _, m := range st.Messages {
		if m.Step == domain.StepCodeRouter || m.Step == domain.StepAutoMLRouter {
			continue
		}
		out = append(out, m)
	}
	return out
}
