// Package execution models agent execution attempts: the closed status set,
// the latest-attempt snapshot, and the orchestrator-side lifecycle.
package execution

import "fmt"

// Status is the state of one agent execution attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// AllStatuses lists every valid status.
var AllStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusTimeout,
	StatusSkipped,
	StatusCancelled,
}

// ParseStatus converts a stored status string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("execution: unknown status %q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed,
		StatusTimeout, StatusSkipped, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is made by the orchestrator.
// A timeout may still be retried by the watchdog.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusSkipped, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// Finishable reports whether s is a valid outcome for Finish.
func (s Status) Finishable() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped, StatusCancelled:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }
