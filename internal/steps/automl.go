package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aretw0/dsflow/internal/extract"
	"github.com/aretw0/dsflow/internal/prompts"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// AutoMLConfigGenerator asks the model for the structured training config.
// Anything short of a complete, canonical config whose target is a dataset
// column is a hard error.
type AutoMLConfigGenerator struct {
	prompts *prompts.Catalog
}

func (s *AutoMLConfigGenerator) ID() domain.StepID { return domain.StepAutoMLConfig }

func (s *AutoMLConfigGenerator) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	if st.Dataset == nil {
		return domain.Update{}, domain.ErrMissingDataset
	}

	reply, err := complete(ctx, model, s.prompts.AutoMLConfig(st.Task, st.Dataset))
	if err != nil {
		return domain.Update{}, err
	}

	cfg, err := ParseAutoMLConfig(reply)
	if err != nil {
		return domain.Update{}, err
	}
	if err := cfg.Validate(st.Dataset); err != nil {
		return domain.Update{}, err
	}

	return domain.Update{
		Messages:     []domain.Message{domain.StepMessage(s.ID(), reply)},
		AutoMLConfig: &cfg,
	}, nil
}

// ParseAutoMLConfig decodes the json block of a model reply.
func ParseAutoMLConfig(reply string) (domain.AutoMLConfig, error) {
	var cfg domain.AutoMLConfig

	body, ok := extract.JSON(reply)
	if !ok {
		return cfg, fmt.Errorf("%w: no json block in reply", domain.ErrMalformedConfig)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return cfg, fmt.Errorf("%w: %v", domain.ErrMalformedConfig, err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &cfg,
		ErrorUnset: true,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("%w: %v", domain.ErrMalformedConfig, err)
	}
	return cfg, nil
}

// AutoMLExecutor runs the external AutoML script for the chosen system.
// The managed branch ends here.
type AutoMLExecutor struct {
	scripts   ports.ScriptRunner
	explainer *Explainer
	logger    *slog.Logger
}

func (s *AutoMLExecutor) ID() domain.StepID { return domain.StepAutoMLExecutor }

func (s *AutoMLExecutor) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	cfg := st.AutoMLConfig
	if cfg == nil {
		return domain.Update{}, fmt.Errorf("%w: no config generated", domain.ErrMalformedConfig)
	}
	if st.Dataset == nil {
		return domain.Update{}, domain.ErrMissingDataset
	}
	if s.scripts == nil {
		return domain.Update{}, fmt.Errorf("no script runner configured")
	}

	script := ScriptLightAutoML
	if st.AutoML == domain.AutoMLFedot {
		script = ScriptFedot
	}

	s.logger.Debug("running automl script", "script", script, "target", cfg.Target, "task_type", cfg.TaskType)
	result := s.scripts.RunScript(ctx, script,
		"--df_name", st.Dataset.Name,
		"--task_type", cfg.TaskType,
		"--target", cfg.Target,
		"--task_metric", cfg.TaskMetric,
	)

	text := FormatScriptResult(script, result)
	update := domain.Update{
		Messages:      []domain.Message{domain.StepMessage(s.ID(), text)},
		CodeResults:   &text,
		LastExecution: &result,
		Report:        &text,
	}
	if !result.Failed() {
		explanation, err := s.explainer.Explain(ctx, st, model, text)
		if err != nil {
			return domain.Update{}, err
		}
		update.HumanExplanations = []string{explanation}
	}
	return update, nil
}
