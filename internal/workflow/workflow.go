// Package workflow assembles the canonical data science workflow graph.
package workflow

import (
	"fmt"

	"github.com/aretw0/dsflow/internal/routes"
	"github.com/aretw0/dsflow/internal/runtime"
	"github.com/aretw0/dsflow/internal/steps"
	"github.com/aretw0/dsflow/pkg/domain"
)

type edge struct {
	from, to domain.StepID
}

var edges = []edge{
	{domain.StepInput, domain.StepCodeRouter},
	{domain.StepNoCode, domain.StepEnd},
	{domain.StepAutoMLConfig, domain.StepAutoMLExecutor},
	{domain.StepAutoMLExecutor, domain.StepEnd},
	{domain.StepPlanner, domain.StepCodeGenerator},
	{domain.StepResultSummarizer, domain.StepValidator},
	{domain.StepTrainTestSplit, domain.StepSplitExecutor},
	{domain.StepSplitExecutor, domain.StepFinalSummarizer},
	{domain.StepFinalSummarizer, domain.StepEnd},
}

var conditional = map[domain.StepID]routes.Route{
	domain.StepCodeRouter:    routes.AfterCodeRouter,
	domain.StepAutoMLRouter:  routes.AfterAutoMLRouter,
	domain.StepCodeGenerator: routes.AfterCodeGeneration,
	domain.StepExecutor:      routes.AfterExecution,
	domain.StepValidator:     routes.AfterValidation,
	domain.StepImprovement:   routes.AfterImprovement,
}

// Build wires the catalog into the workflow topology and validates it.
// The catalog must hold every step of domain.AllSteps.
func Build(catalog map[domain.StepID]steps.Step) (*runtime.Graph, error) {
	g := runtime.NewGraph(domain.StepInput)
	for _, id := range domain.AllSteps() {
		s, ok := catalog[id]
		if !ok {
			return nil, fmt.Errorf("catalog: %s: %w", id, domain.ErrUnknownStep)
		}
		if err := g.AddStep(s); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(e.from, e.to); err != nil {
			return nil, err
		}
	}
	for _, id := range domain.AllSteps() {
		r, ok := conditional[id]
		if !ok {
			continue
		}
		if err := g.AddRoute(id, r); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}
	return g, nil
}

// Topology builds the graph with a default catalog, for rendering and
// inspection without collaborators.
func Topology() *runtime.Graph {
	g, err := Build(steps.Catalog(steps.Deps{}))
	if err != nil {
		panic(err)
	}
	return g
}
