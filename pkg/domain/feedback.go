package domain

import "fmt"

// FeedbackKind distinguishes the two entry types of the feedback log.
type FeedbackKind string

const (
	FeedbackImprovement FeedbackKind = "improvement"
	FeedbackResult      FeedbackKind = "result"
)

// FeedbackEntry is one past improvement attempt or its outcome.
// Iteration 0 is the baseline result.
type FeedbackEntry struct {
	Iteration int          `json:"iteration"`
	Kind      FeedbackKind `json:"kind"`
	Text      string       `json:"text"`
}

// Label renders the entry heading, e.g. "Improvement 2" or "Result 2".
func (e FeedbackEntry) Label() string {
	switch e.Kind {
	case FeedbackImprovement:
		return fmt.Sprintf("Improvement %d", e.Iteration)
	default:
		return fmt.Sprintf("Result %d", e.Iteration)
	}
}
