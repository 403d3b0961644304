package prompts_test

import (
	"testing"

	"github.com/aretw0/dsflow/internal/prompts"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestCatalog_LanguageSuffix(t *testing.T) {
	en := prompts.New()
	ru := prompts.New(prompts.WithLanguage("ru"))

	assert.NotContains(t, en.Planner("task", nil).System, "following language")
	assert.Contains(t, ru.Planner("task", nil).System, "following language: ru")
	assert.Equal(t, "ru", ru.Language())
}

func TestCatalog_CodeGeneratorCarriesDatasetAndHistory(t *testing.T) {
	c := prompts.New(prompts.WithDirs("data", "out"))
	ds := &domain.Dataset{Name: "customers.csv", Columns: []string{"id", "churn"}}
	history := []domain.Message{domain.UserMessage("classify churn")}

	p := c.CodeGenerator("classify churn", ds, nil, history)

	assert.Contains(t, p.System, "data/customers.csv")
	assert.Contains(t, p.System, "python-execute")
	assert.Contains(t, p.System, "out/ folder")
	assert.Equal(t, history, p.History)
}

func TestCatalog_AutoMLConfigListsColumns(t *testing.T) {
	ds := &domain.Dataset{Name: "customers.csv", Columns: []string{"id", "tenure", "churn"}}
	p := prompts.New().AutoMLConfig("predict churn", ds)

	assert.Contains(t, p.User, "id, tenure, churn")
	assert.Contains(t, p.System, `"r2-score"`)
	assert.Contains(t, p.System, `"binary"`)
}

func TestCatalog_ExplainFallsBackToGeneric(t *testing.T) {
	c := prompts.New()
	assert.Contains(t, c.Explain("unknown", "x").User, "Explain this text briefly.")
	assert.Contains(t, c.Explain(prompts.ExplainResults, "x").User, "models")
}
