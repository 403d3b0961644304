package domain

// Role tags the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of the run transcript.
type Message struct {
	Role    Role   `json:"role"`
	Step    StepID `json:"step,omitempty"`
	Content string `json:"content"`
}

// UserMessage builds an inbound user entry.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// StepMessage builds an assistant entry attributed to a step.
func StepMessage(step StepID, content string) Message {
	return Message{Role: RoleAssistant, Step: step, Content: content}
}
