package domain

import "time"

// RunStatus describes where a run is in its lifecycle.
type RunStatus string

const (
	StatusActive        RunStatus = "active"
	StatusCompleted     RunStatus = "completed"      // terminal step reached
	StatusFailed        RunStatus = "failed"         // unhandled step error
	StatusDepthExceeded RunStatus = "depth_exceeded" // recursion limit reached
)

// Limits bounds the loops of the workflow. MaxExecutionRetries and
// MaxRejections count retries: a bound of N allows N attempts after the
// first failure or WRONG verdict.
type Limits struct {
	MaxImprovements     int `json:"max_improvements"`
	MaxExecutionRetries int `json:"max_execution_retries"`
	MaxRejections       int `json:"max_rejections"`
}

// DefaultLimits mirrors the configuration defaults.
func DefaultLimits() Limits {
	return Limits{MaxImprovements: 5, MaxExecutionRetries: 3, MaxRejections: 3}
}

// State is the shared record threaded through every step of one run.
// Only the scheduler mutates it, through Apply.
type State struct {
	RunID  string    `json:"run_id"`
	Status RunStatus `json:"status"`

	// Messages is the append-only transcript.
	Messages []Message `json:"messages"`

	Task          string   `json:"task"`
	Dataset       *Dataset `json:"dataset,omitempty"`
	TestDataset   *Dataset `json:"test_dataset,omitempty"`
	RephrasedPlan string   `json:"rephrased_plan,omitempty"`

	GeneratedCode Code             `json:"generated_code"`
	CodeResults   string           `json:"code_results,omitempty"`
	LastExecution *ExecutionResult `json:"last_execution,omitempty"`

	Feedback          []FeedbackEntry `json:"feedback"`
	ImprovementCount  int             `json:"improvement_count"`
	ExecutionRetries  int             `json:"execution_retries"`
	Rejections        int             `json:"rejections"`
	HumanExplanations []string        `json:"human_explanations"`

	CodeNeed     CodeNeed      `json:"code_need,omitempty"`
	AutoML       AutoMLChoice  `json:"automl,omitempty"`
	Verdict      Verdict       `json:"verdict,omitempty"`
	AutoMLConfig *AutoMLConfig `json:"automl_config,omitempty"`

	// CurrentStep is set by the scheduler right before a step runs.
	CurrentStep StepID `json:"current_step,omitempty"`
	// Visited lists every step invocation in order.
	Visited []StepID `json:"visited,omitempty"`
	// Steps counts step invocations against the recursion limit.
	Steps int `json:"steps"`

	Sandbox     *SandboxHandle `json:"sandbox,omitempty"`
	Limits      Limits         `json:"limits"`
	Initialized bool           `json:"initialized"`
	Report      string         `json:"report,omitempty"`
	Error       string         `json:"error,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// Sealed carries the encrypted state when a store encrypts at rest.
	Sealed string `json:"sealed,omitempty"`
}

// NewState creates a run state from the caller's message.
func NewState(runID, message string, limits Limits) *State {
	s := &State{
		RunID:             runID,
		Status:            StatusActive,
		Messages:          []Message{},
		Feedback:          []FeedbackEntry{},
		HumanExplanations: []string{},
		Limits:            limits,
		UpdatedAt:         time.Now(),
	}
	if message != "" {
		s.Messages = append(s.Messages, UserMessage(message))
	}
	return s
}

// LastMessage returns the newest transcript entry.
func (s *State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastUserMessage returns the newest entry authored by the user.
func (s *State) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// LastStepMessage returns the newest entry produced by the given step.
func (s *State) LastStepMessage(step StepID) (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Step == step {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// Results returns the result entries of the feedback log in order.
func (s *State) Results() []FeedbackEntry {
	var out []FeedbackEntry
	for _, e := range s.Feedback {
		if e.Kind == FeedbackResult {
			out = append(out, e)
		}
	}
	return out
}

// Terminal reports whether the run has stopped.
func (s *State) Terminal() bool {
	return s.Status != StatusActive
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	c.Feedback = append([]FeedbackEntry(nil), s.Feedback...)
	c.HumanExplanations = append([]string(nil), s.HumanExplanations...)
	c.Visited = append([]StepID(nil), s.Visited...)
	c.Dataset = cloneDataset(s.Dataset)
	c.TestDataset = cloneDataset(s.TestDataset)
	if s.LastExecution != nil {
		r := *s.LastExecution
		r.Artifacts = append([]Artifact(nil), s.LastExecution.Artifacts...)
		c.LastExecution = &r
	}
	if s.AutoMLConfig != nil {
		cfg := *s.AutoMLConfig
		c.AutoMLConfig = &cfg
	}
	if s.Sandbox != nil {
		h := *s.Sandbox
		c.Sandbox = &h
	}
	return &c
}

func cloneDataset(d *Dataset) *Dataset {
	if d == nil {
		return nil
	}
	c := *d
	c.Columns = append([]string(nil), d.Columns...)
	c.Head = make([][]string, len(d.Head))
	for i, row := range d.Head {
		c.Head[i] = append([]string(nil), row...)
	}
	return &c
}
