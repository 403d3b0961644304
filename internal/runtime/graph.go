package runtime

import (
	"fmt"

	"github.com/aretw0/dsflow/internal/routes"
	"github.com/aretw0/dsflow/internal/steps"
	"github.com/aretw0/dsflow/pkg/domain"
)

// Edge is one possible transition, used for rendering and validation.
type Edge struct {
	From  domain.StepID
	To    domain.StepID
	Label string // route name, empty for unconditional edges
}

// Graph is the static workflow topology: steps plus exactly one outgoing
// definition per step, either an unconditional edge or a route.
type Graph struct {
	entry  domain.StepID
	order  []domain.StepID
	steps  map[domain.StepID]steps.Step
	edges  map[domain.StepID]domain.StepID
	routes map[domain.StepID]routes.Route
}

// NewGraph creates an empty graph starting at entry.
func NewGraph(entry domain.StepID) *Graph {
	return &Graph{
		entry:  entry,
		steps:  make(map[domain.StepID]steps.Step),
		edges:  make(map[domain.StepID]domain.StepID),
		routes: make(map[domain.StepID]routes.Route),
	}
}

// AddStep registers a step under its own ID.
func (g *Graph) AddStep(s steps.Step) error {
	id := s.ID()
	if _, exists := g.steps[id]; exists {
		return fmt.Errorf("step %s already registered", id)
	}
	g.steps[id] = s
	g.order = append(g.order, id)
	return nil
}

// AddEdge declares an unconditional transition.
func (g *Graph) AddEdge(from, to domain.StepID) error {
	if err := g.checkFree(from); err != nil {
		return err
	}
	g.edges[from] = to
	return nil
}

// AddRoute declares a conditional transition.
func (g *Graph) AddRoute(from domain.StepID, r routes.Route) error {
	if err := g.checkFree(from); err != nil {
		return err
	}
	if r.Predicate == nil || len(r.Targets) == 0 {
		return fmt.Errorf("route %q from %s has no predicate or targets", r.Name, from)
	}
	g.routes[from] = r
	return nil
}

func (g *Graph) checkFree(from domain.StepID) error {
	if _, ok := g.edges[from]; ok {
		return fmt.Errorf("step %s already has an outgoing edge", from)
	}
	if _, ok := g.routes[from]; ok {
		return fmt.Errorf("step %s already has an outgoing route", from)
	}
	return nil
}

// Validate checks that every referenced step exists, that every step has
// an outgoing definition, and that every step is reachable from the entry.
func (g *Graph) Validate() error {
	if _, ok := g.steps[g.entry]; !ok {
		return fmt.Errorf("entry %s: %w", g.entry, domain.ErrUnknownStep)
	}
	for _, id := range g.order {
		_, hasEdge := g.edges[id]
		_, hasRoute := g.routes[id]
		if !hasEdge && !hasRoute {
			return fmt.Errorf("step %s has no outgoing edge", id)
		}
	}
	for _, e := range g.Edges() {
		if _, ok := g.steps[e.From]; !ok {
			return fmt.Errorf("edge source %s: %w", e.From, domain.ErrUnknownStep)
		}
		if e.To == domain.StepEnd {
			continue
		}
		if _, ok := g.steps[e.To]; !ok {
			return fmt.Errorf("edge %s -> %s: %w", e.From, e.To, domain.ErrUnknownStep)
		}
	}

	seen := map[domain.StepID]bool{g.entry: true}
	queue := []domain.StepID{g.entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.successors(id) {
			if next == domain.StepEnd || seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	for _, id := range g.order {
		if !seen[id] {
			return fmt.Errorf("step %s is unreachable from %s", id, g.entry)
		}
	}
	return nil
}

func (g *Graph) successors(id domain.StepID) []domain.StepID {
	if to, ok := g.edges[id]; ok {
		return []domain.StepID{to}
	}
	if r, ok := g.routes[id]; ok {
		return r.Targets
	}
	return nil
}

// Next resolves the step after state.CurrentStep.
func (g *Graph) Next(state *domain.State) (domain.StepID, error) {
	from := state.CurrentStep
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	r, ok := g.routes[from]
	if !ok {
		return "", fmt.Errorf("no transition from %s: %w", from, domain.ErrUnknownStep)
	}
	target := r.Predicate(state)
	for _, t := range r.Targets {
		if t == target {
			return target, nil
		}
	}
	return "", &domain.RouteError{From: from, Target: target}
}

// Entry returns the entry step.
func (g *Graph) Entry() domain.StepID {
	return g.entry
}

// Step returns the registered step for id.
func (g *Graph) Step(id domain.StepID) (steps.Step, bool) {
	s, ok := g.steps[id]
	return s, ok
}

// StepIDs lists the registered steps in registration order.
func (g *Graph) StepIDs() []domain.StepID {
	return append([]domain.StepID(nil), g.order...)
}

// Edges lists every possible transition in registration order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, id := range g.order {
		if to, ok := g.edges[id]; ok {
			out = append(out, Edge{From: id, To: to})
			continue
		}
		if r, ok := g.routes[id]; ok {
			for _, t := range r.Targets {
				out = append(out, Edge{From: id, To: t, Label: r.Name})
			}
		}
	}
	return out
}
