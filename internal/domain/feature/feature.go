// Package feature defines the Feature domain entity and the pipeline
// status state machine that governs its lifecycle.
package feature

import "time"

// Status represents the pipeline phase a feature currently occupies.
type Status string

const (
	StatusPlanning     Status = "planning"
	StatusDesignReview Status = "design_review"
	StatusInProgress   Status = "in_progress"
	StatusQAReview     Status = "qa_review"
	StatusReview       Status = "review"
	StatusApproved     Status = "approved"
	StatusPRSubmitted  Status = "pr_submitted"
	StatusDone         Status = "done"
	StatusCancelled    Status = "cancelled"
)

// Statuses lists every valid status in pipeline order, cancelled last.
var Statuses = []Status{
	StatusPlanning,
	StatusDesignReview,
	StatusInProgress,
	StatusQAReview,
	StatusReview,
	StatusApproved,
	StatusPRSubmitted,
	StatusDone,
	StatusCancelled,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusDesignReview, StatusInProgress, StatusQAReview,
		StatusReview, StatusApproved, StatusPRSubmitted, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Verdict is the outcome recorded on a pipeline log entry.
type Verdict string

const (
	VerdictApproved Verdict = "APPROVED"
	VerdictComplete Verdict = "COMPLETE"
	VerdictShip     Verdict = "SHIP"
	VerdictRevise   Verdict = "REVISE"
	VerdictReject   Verdict = "REJECT"
)

// IsCompletion reports whether the verdict marks a step as finished.
func (v Verdict) IsCompletion() bool {
	return v == VerdictApproved || v == VerdictComplete || v == VerdictShip
}

// LogEntry is one immutable record in a feature's pipeline log.
// Entries are only ever appended, in strictly increasing timestamp order.
type LogEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Agent        string    `json:"agent"`
	Stage        string    `json:"stage"`
	Verdict      Verdict   `json:"verdict"`
	Issues       []string  `json:"issues,omitempty"`
	RevisionLoop int       `json:"revision_loop,omitempty"`
}

// Feature represents one unit of work moving through the pipeline.
type Feature struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         Status     `json:"status"`
	CurrentAgent   string     `json:"current_agent,omitempty"`
	RevisionCount  int        `json:"revision_count"`
	NeedsAttention bool       `json:"needs_attention"`
	ApprovedBy     string     `json:"approved_by,omitempty"`
	PipelineLog    []LogEntry `json:"pipeline_log"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a new feature.
type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// LastLogTime returns the timestamp of the most recent log entry,
// or the zero time when the log is empty.
func (f *Feature) LastLogTime() time.Time {
	if len(f.PipelineLog) == 0 {
		return time.Time{}
	}
	return f.PipelineLog[len(f.PipelineLog)-1].Timestamp
}
