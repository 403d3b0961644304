// Package graph renders the workflow topology as a Mermaid flowchart.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/dsflow/internal/runtime"
	"github.com/aretw0/dsflow/pkg/domain"
)

// GraphOverlay contains run data to visualize on the graph.
type GraphOverlay struct {
	VisitedSteps []domain.StepID
	CurrentStep  domain.StepID
}

// OverlayFromState highlights the steps a run went through.
func OverlayFromState(s *domain.State) *GraphOverlay {
	if s == nil {
		return nil
	}
	return &GraphOverlay{
		VisitedSteps: append([]domain.StepID(nil), s.Visited...),
		CurrentStep:  s.CurrentStep,
	}
}

// executionSteps touch a sandbox or a script runner.
var executionSteps = map[domain.StepID]bool{
	domain.StepExecutor:       true,
	domain.StepSplitExecutor:  true,
	domain.StepAutoMLExecutor: true,
}

// GenerateMermaid produces a Mermaid flowchart from a graph.
// It applies semantic styling:
// - Entry: ((Circle))
// - Execution: [[Subroutine]]
// - Routed: {Rhombus}
// - Default: [Rectangle]
// Routed edges carry the route name and are dotted.
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(g *runtime.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	edges := g.Edges()
	routed := make(map[domain.StepID]bool)
	for _, e := range edges {
		if e.Label != "" {
			routed[e.From] = true
		}
	}

	for _, id := range g.StepIDs() {
		opener, closer := "[", "]"
		switch {
		case id == g.Entry():
			opener, closer = "((", "))"
		case executionSteps[id]:
			opener, closer = "[[", "]]"
		case routed[id]:
			opener, closer = "{", "}"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(id), opener, id, closer))
	}
	sb.WriteString(fmt.Sprintf("    %s((\"END\"))\n", sanitizeMermaidID(domain.StepEnd)))

	for _, e := range edges {
		arrow := "-->"
		if e.Label != "" {
			arrow = fmt.Sprintf("-. \"%s\" .->", strings.ReplaceAll(e.Label, "\"", "'"))
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedSteps {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}
		if overlay.CurrentStep != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentStep)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id domain.StepID) string {
	if id == domain.StepEnd {
		return "END"
	}
	s := strings.ReplaceAll(string(id), ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
