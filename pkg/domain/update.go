package domain

import "time"

// Update is the partial state change returned by a step.
// Nil pointers leave the corresponding field untouched.
type Update struct {
	Messages          []Message
	Feedback          []FeedbackEntry
	HumanExplanations []string

	Task          *string
	RephrasedPlan *string
	GeneratedCode *Code
	CodeResults   *string
	LastExecution *ExecutionResult
	AutoMLConfig  *AutoMLConfig
	Report        *string

	CodeNeed *CodeNeed
	AutoML   *AutoMLChoice
	Verdict  *Verdict

	ExecutionRetries *int
	// Rejections is the count of consecutive WRONG verdicts.
	Rejections *int

	// IncrementImprovement adds exactly one to ImprovementCount.
	IncrementImprovement bool
	// Initialize fills defaults for fields not yet present. It never resets
	// counters or logs of an already initialized state.
	Initialize bool
}

// Ptr returns a pointer to v, for filling Update fields.
func Ptr[T any](v T) *T {
	return &v
}

// Apply merges u into s: lists concatenate, scalars overwrite.
func (s *State) Apply(u Update) {
	if u.Initialize && !s.Initialized {
		if s.Messages == nil {
			s.Messages = []Message{}
		}
		if s.Feedback == nil {
			s.Feedback = []FeedbackEntry{}
		}
		if s.HumanExplanations == nil {
			s.HumanExplanations = []string{}
		}
		if s.Status == "" {
			s.Status = StatusActive
		}
		s.Initialized = true
	}

	s.Messages = append(s.Messages, u.Messages...)
	s.Feedback = append(s.Feedback, u.Feedback...)
	s.HumanExplanations = append(s.HumanExplanations, u.HumanExplanations...)

	if u.Task != nil {
		s.Task = *u.Task
	}
	if u.RephrasedPlan != nil {
		s.RephrasedPlan = *u.RephrasedPlan
	}
	if u.GeneratedCode != nil {
		s.GeneratedCode = *u.GeneratedCode
	}
	if u.CodeResults != nil {
		s.CodeResults = *u.CodeResults
	}
	if u.LastExecution != nil {
		s.LastExecution = u.LastExecution
	}
	if u.AutoMLConfig != nil {
		s.AutoMLConfig = u.AutoMLConfig
	}
	if u.Report != nil {
		s.Report = *u.Report
	}
	if u.CodeNeed != nil {
		s.CodeNeed = *u.CodeNeed
	}
	if u.AutoML != nil {
		s.AutoML = *u.AutoML
	}
	if u.Verdict != nil {
		s.Verdict = *u.Verdict
	}
	if u.ExecutionRetries != nil {
		s.ExecutionRetries = *u.ExecutionRetries
	}
	if u.Rejections != nil {
		s.Rejections = *u.Rejections
	}
	if u.IncrementImprovement {
		s.ImprovementCount++
	}
	s.UpdatedAt = time.Now()
}
