// Package step derives the six-step execution view shown to operators from a
// feature's pipeline log and pointer fields. Derivation is pure: the same
// feature value and clock always produce the same result.
package step

import (
	"time"

	"github.com/Strob0t/FeatureForge/internal/domain/feature"
)

// ID identifies one of the six canonical pipeline steps. Steps are a coarser
// grouping than feature statuses: the eight forward phases summarize to six
// execution stages.
type ID string

const (
	Intake ID = "intake"
	Spec   ID = "spec"
	Design ID = "design"
	Build  ID = "build"
	QA     ID = "qa"
	Ship   ID = "ship"
)

// Status is the derived state of a single step.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// State is the derived per-step view. It is computed fresh on every read and
// never persisted, so it cannot drift from the pipeline log.
type State struct {
	ID            ID                 `json:"id"`
	StepStatus    Status             `json:"stepStatus"`
	Agent         string             `json:"agent"`
	StartedAt     *time.Time         `json:"startedAt,omitempty"`
	CompletedAt   *time.Time         `json:"completedAt,omitempty"`
	ElapsedMs     *int64             `json:"elapsedMs,omitempty"`
	RevisionCount int                `json:"revisionCount"`
	LogEntries    []feature.LogEntry `json:"logEntries"`
}
