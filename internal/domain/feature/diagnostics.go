package feature

import "time"

// StallThreshold is how long a feature may sit with an assigned agent and no
// new log entry before it is flagged as stalled.
const StallThreshold = 5 * time.Minute

// EscalationRevisions is the number of REVISE verdicts within one phase cycle
// that routes a feature to human review.
const EscalationRevisions = 2

// Diagnostics are derived health flags for a feature. They are advisory:
// neither flag blocks transitions.
type Diagnostics struct {
	Stalled            bool `json:"stalled"`
	EscalationRequired bool `json:"escalation_required"`
}

// Diagnose computes the stall and escalation flags for f at the given instant.
func Diagnose(f *Feature, now time.Time) Diagnostics {
	var d Diagnostics

	if f.CurrentAgent != "" && len(f.PipelineLog) > 0 &&
		now.Sub(f.LastLogTime()) > StallThreshold {
		d.Stalled = true
	}

	if f.RevisionCount >= EscalationRevisions {
		d.EscalationRequired = true
	}

	return d
}
