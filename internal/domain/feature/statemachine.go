package feature

import (
	"fmt"

	"github.com/Strob0t/FeatureForge/internal/domain"
)

// transitions is the static adjacency table for feature statuses.
// done has no outgoing edges; the only edge out of cancelled restarts
// the workflow at planning.
var transitions = map[Status][]Status{
	StatusPlanning:     {StatusDesignReview, StatusCancelled},
	StatusDesignReview: {StatusPlanning, StatusInProgress, StatusCancelled},
	StatusInProgress:   {StatusQAReview, StatusDesignReview, StatusCancelled},
	StatusQAReview:     {StatusInProgress, StatusReview, StatusCancelled},
	StatusReview:       {StatusQAReview, StatusApproved, StatusCancelled},
	StatusApproved:     {StatusPRSubmitted, StatusReview, StatusCancelled},
	StatusPRSubmitted:  {StatusDone, StatusApproved, StatusCancelled},
	StatusDone:         {},
	StatusCancelled:    {StatusPlanning},
}

// AllowedTransitions returns the statuses reachable from s in one step.
// The returned slice is a copy; callers may mutate it freely.
func AllowedTransitions(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is an edge in the transition table.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Apply validates and applies a status transition on f.
// It mutates only the status field; appending the matching log entry is the
// caller's responsibility, which keeps Apply a pure validator over status.
func Apply(f *Feature, target Status) error {
	if !target.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, target)
	}
	if !CanTransition(f.Status, target) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, f.Status, target)
	}
	f.Status = target
	return nil
}
