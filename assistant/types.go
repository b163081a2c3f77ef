package assistant

import "strings"

// Run statuses reported by the Assistants API. A run is terminal once it
// reaches completed, failed, cancelled or expired; everything else re-polls.
const (
	RunStatusQueued         = "queued"
	RunStatusInProgress     = "in_progress"
	RunStatusRequiresAction = "requires_action"
	RunStatusCancelling     = "cancelling"
	RunStatusCancelled      = "cancelled"
	RunStatusFailed         = "failed"
	RunStatusCompleted      = "completed"
	RunStatusExpired        = "expired"
)

// ErrCodeRateLimited is the structured code the backend attaches to a failed
// run when the account hit its rate limit.
const ErrCodeRateLimited = "rate_limit_exceeded"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Thread struct {
	ID string `json:"id"`
}

type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Status    string    `json:"status"`
	LastError *RunError `json:"last_error,omitempty"`
}

type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func IsTerminalRunStatus(status string) bool {
	switch status {
	case RunStatusCancelled, RunStatusFailed, RunStatusCompleted, RunStatusExpired:
		return true
	default:
		return false
	}
}

type Message struct {
	ID      string           `json:"id"`
	Role    string           `json:"role"`
	Content []MessageContent `json:"content"`
}

type MessageContent struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

type MessageText struct {
	Value string `json:"value"`
}

// PlainText joins the text parts of a message body, skipping non-text content.
func (m Message) PlainText() string {
	var parts []string
	for _, c := range m.Content {
		if c.Type != "text" || c.Text == nil {
			continue
		}
		parts = append(parts, c.Text.Value)
	}
	return strings.Join(parts, "\n")
}
