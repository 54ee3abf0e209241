package queue

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a queued trial.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return normalized, true
	}
	return "", false
}

// Trial is one reconstruction job persisted in SQLite.
type Trial struct {
	ID int64
	// TrialID is the stable external identifier, a UUID minted at enqueue
	// time and used to name output files.
	TrialID string
	// Session names the capture session directory the trial belongs to.
	Session string
	// Name is the trial's name within the session (e.g. "walking1").
	Name string
	// Activity selects the low-pass cutoff for synchronization; empty means
	// the default.
	Activity string
	Status   Status
	// ErrorUser and ErrorDev are the two halves of a failure payload:
	// ErrorUser is shown to the participant, ErrorDev goes to operators.
	ErrorUser string
	ErrorDev  string
	// ErrorKind is the machine-readable failure classification.
	ErrorKind string
	// OutputPath is the exported trajectory file once completed.
	OutputPath string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsTerminal reports whether the trial has finished, successfully or not.
func (t *Trial) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}
