// Package packet defines the HandoffPacket domain entity: the versioned
// artifact bundle one actor produces during one pipeline phase and hands to
// the next.
package packet

import (
	"fmt"
	"time"

	"github.com/Strob0t/FeatureForge/internal/diff"
	"github.com/Strob0t/FeatureForge/internal/domain"
	"github.com/Strob0t/FeatureForge/internal/domain/feature"
)

// Status represents the lifecycle state of a handoff packet.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusSkipped    Status = "skipped"
)

// AgentType distinguishes automated agents from humans.
type AgentType string

const (
	AgentTypeAI    AgentType = "ai_agent"
	AgentTypeHuman AgentType = "human"
)

// Artifact is one named output document inside a packet. Artifacts are
// matched by title when diffing against the previous version.
type Artifact struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ArtifactDiff is the structural diff of one artifact between versions.
// ContentDiff is null when the content could not be diffed as text.
type ArtifactDiff struct {
	Title       string    `json:"title"`
	ContentDiff []diff.Op `json:"contentDiff"`
}

// VersionDiff summarizes the change between a packet and its previous version.
type VersionDiff struct {
	Summary   []diff.Op      `json:"summary"`
	Artifacts []ArtifactDiff `json:"artifacts"`
}

// HandoffPacket is the versioned artifact bundle for one (feature, phase)
// attempt. Version numbers increase monotonically within (feature_id, phase),
// and at most one packet per pair is in_progress at any time.
type HandoffPacket struct {
	ID                string         `json:"id"`
	FeatureID         string         `json:"feature_id"`
	Phase             feature.Status `json:"phase"`
	Version           int            `json:"version"`
	Status            Status         `json:"status"`
	AgentID           string         `json:"agent_id"`
	AgentType         AgentType      `json:"agent_type"`
	StartedAt         time.Time      `json:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	DurationMs        *int64         `json:"duration_ms,omitempty"`
	OutputSummary     string         `json:"output_summary"`
	OutputArtifacts   []Artifact     `json:"output_artifacts"`
	OutputDecisions   []string       `json:"output_decisions"`
	RejectedReason    string         `json:"rejected_reason,omitempty"`
	PreviousVersionID string         `json:"previous_version_id,omitempty"`
	DiffFromPrevious  *VersionDiff   `json:"diff_from_previous,omitempty"`
}

// CreateRequest holds the fields needed to open a new packet version.
type CreateRequest struct {
	FeatureID string         `json:"feature_id"`
	Phase     feature.Status `json:"phase"`
	AgentID   string         `json:"agent_id"`
	AgentType AgentType      `json:"agent_type"`
}

// Output is the result payload recorded when a packet completes.
type Output struct {
	Summary   string     `json:"summary"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Decisions []string   `json:"decisions,omitempty"`
}

// Validate checks a CreateRequest for structural correctness. Cancelled is not
// a phase: no actor produces an artifact by cancelling.
func (r *CreateRequest) Validate() error {
	if r.FeatureID == "" {
		return fmt.Errorf("%w: feature_id is required", domain.ErrValidation)
	}
	if r.AgentID == "" {
		return fmt.Errorf("%w: agent_id is required", domain.ErrValidation)
	}
	if !r.Phase.Valid() || r.Phase == feature.StatusCancelled {
		return fmt.Errorf("%w: invalid phase %q", domain.ErrValidation, r.Phase)
	}
	switch r.AgentType {
	case AgentTypeAI, AgentTypeHuman:
	default:
		return fmt.Errorf("%w: invalid agent_type %q", domain.ErrValidation, r.AgentType)
	}
	return nil
}
