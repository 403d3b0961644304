package domain

// CodeNeed is the Code-Need Router's decision.
type CodeNeed string

const (
	CodeNeedUnknown CodeNeed = ""
	CodeRequired    CodeNeed = "required"
	CodeNotRequired CodeNeed = "not_required"
)

// AutoMLChoice is the AutoML Router's decision.
type AutoMLChoice string

const (
	AutoMLUnknown     AutoMLChoice = ""
	AutoMLNone        AutoMLChoice = "none"
	AutoMLLightAutoML AutoMLChoice = "lama"
	AutoMLFedot       AutoMLChoice = "fedot"
)

// Managed reports whether the choice delegates to an external AutoML system.
func (c AutoMLChoice) Managed() bool {
	return c == AutoMLLightAutoML || c == AutoMLFedot
}

// Verdict is the Validator's closed three-way classification.
type Verdict string

const (
	VerdictUnknown  Verdict = ""
	VerdictValidNo  Verdict = "valid_no"  // correct, no improvement needed
	VerdictValidYes Verdict = "valid_yes" // correct, improvement requested
	VerdictWrong    Verdict = "wrong"
)
