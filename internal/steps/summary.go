package steps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/dsflow/internal/prompts"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// FinalSummarizer builds the consolidated report from the feedback log.
type FinalSummarizer struct {
	prompts *prompts.Catalog
}

func (s *FinalSummarizer) ID() domain.StepID { return domain.StepFinalSummarizer }

func (s *FinalSummarizer) Run(ctx context.Context, st *domain.State, model ports.ModelClient) (domain.Update, error) {
	outline := RenderOutline(st)
	narrative, err := complete(ctx, model, s.prompts.FinalSummarizer(st.Task, outline))
	if err != nil {
		return domain.Update{}, err
	}
	report := outline
	if narrative != "" {
		report += "\n\n## Summary\n\n" + narrative
	}
	return domain.Update{
		Messages: []domain.Message{domain.StepMessage(s.ID(), report)},
		Report:   &report,
	}, nil
}

// RenderFeedback lists the feedback log in order for prompts.
func RenderFeedback(entries []domain.FeedbackEntry) string {
	if len(entries) == 0 {
		return "none"
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s:\n%s\n", e.Label(), e.Text)
	}
	return strings.TrimSpace(b.String())
}

// RenderOutline lays out the task, the baseline result and every
// improvement/result pair in order. With a single result there is no
// baseline wording. Repeated results for one iteration keep the newest.
func RenderOutline(st *domain.State) string {
	results := map[int]string{}
	improvements := map[int]string{}
	for _, e := range st.Feedback {
		switch e.Kind {
		case domain.FeedbackResult:
			results[e.Iteration] = e.Text
		case domain.FeedbackImprovement:
			improvements[e.Iteration] = e.Text
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## User's task\n\n%s\n", st.Task)

	switch {
	case len(improvements) == 0 && len(results) <= 1:
		text, ok := results[0]
		if !ok {
			text = missingResult(st)
		}
		fmt.Fprintf(&b, "\n## Result\n\n%s\n", text)
	default:
		iterations := make([]int, 0, len(improvements))
		for i := range improvements {
			iterations = append(iterations, i)
		}
		sort.Ints(iterations)

		base, ok := results[0]
		if !ok {
			base = missingResult(st)
		}
		fmt.Fprintf(&b, "\n## Baseline result\n\n%s\n", base)
		for _, i := range iterations {
			fmt.Fprintf(&b, "\n## Improvement %d\n\n%s\n", i, improvements[i])
			text, ok := results[i]
			switch {
			case ok:
			case i >= st.Limits.MaxImprovements:
				// The bound check ends the run right after this proposal.
				text = unexecutedImprovement
			default:
				text = missingResult(st)
			}
			fmt.Fprintf(&b, "\n## Result %d\n\n%s\n", i, text)
		}
	}

	if st.GeneratedCode.IsSplit() {
		fmt.Fprintf(&b, "\n## Training and inference\n\n%s\n", st.CodeResults)
	}
	return strings.TrimSpace(b.String())
}

const unexecutedImprovement = "Proposed, not executed (improvement limit reached)."

func missingResult(st *domain.State) string {
	if st.LastExecution != nil && st.LastExecution.Failed() {
		return "No result was obtained. Last execution error:\n\n" + FormatResult(*st.LastExecution, 0)
	}
	return "No result was obtained."
}
