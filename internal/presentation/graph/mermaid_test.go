package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/dsflow/internal/presentation/graph"
	"github.com/aretw0/dsflow/internal/workflow"
	"github.com/aretw0/dsflow/pkg/domain"
)

func TestGenerateMermaid_Shapes(t *testing.T) {
	out := graph.GenerateMermaid(workflow.Topology(), nil)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	for _, want := range []string{
		`input(("input"))`,
		`executor[["executor"]]`,
		`automl_executor[["automl_executor"]]`,
		`validator{"validator"}`,
		`planner["planner"]`,
		`END(("END"))`,
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Overlay Styles")
}

func TestGenerateMermaid_Edges(t *testing.T) {
	out := graph.GenerateMermaid(workflow.Topology(), nil)

	assert.Contains(t, out, "    input --> code_router\n")
	assert.Contains(t, out, "    final_summarizer --> END\n")
	assert.Contains(t, out, "    no_code --> END\n")
	assert.Contains(t, out, ".-> code_generator\n")

	lines := 0
	for _, l := range strings.Split(out, "\n") {
		if strings.Contains(l, "-->") || strings.Contains(l, ".->") {
			lines++
		}
	}
	assert.Equal(t, len(workflow.Topology().Edges()), lines)
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	st := domain.NewState("r1", "task", domain.DefaultLimits())
	st.Visited = []domain.StepID{domain.StepInput, domain.StepCodeRouter, domain.StepInput}
	st.CurrentStep = domain.StepNoCode

	out := graph.GenerateMermaid(workflow.Topology(), graph.OverlayFromState(st))

	assert.Contains(t, out, "classDef visited")
	assert.Equal(t, 1, strings.Count(out, "class input visited;"))
	assert.Contains(t, out, "class code_router visited;")
	assert.Contains(t, out, "class no_code current;")
	assert.Nil(t, graph.OverlayFromState(nil))
}
