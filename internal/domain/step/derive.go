package step

import (
	"time"

	"github.com/Strob0t/FeatureForge/internal/domain/feature"
)

// terminalForRunning lists statuses under which no automated step can be
// running. This is scoped strictly to running-detection: approved and
// pr_submitted remain transitionable in the state machine (a human can revert
// them), they just carry no further automated work.
func terminalForRunning(s feature.Status) bool {
	switch s {
	case feature.StatusDone, feature.StatusCancelled, feature.StatusApproved, feature.StatusPRSubmitted:
		return true
	}
	return false
}

// Derive computes the six-step view for f at the given instant. It reads only
// the pipeline log, current agent and status, performs no I/O, and takes the
// clock as an argument so elapsed-time assertions stay deterministic.
func Derive(f *feature.Feature, now time.Time) []State {
	currentIdx := indexOfAgent(f.CurrentAgent)
	terminal := terminalForRunning(f.Status)

	states := make([]State, len(pipeline))
	for i, meta := range pipeline {
		st := State{
			ID:         meta.ID,
			Agent:      meta.Agent,
			StepStatus: StatusPending,
			LogEntries: []feature.LogEntry{},
		}

		var started, completed *time.Time
		for j := range f.PipelineLog {
			entry := f.PipelineLog[j]
			if entry.Agent != meta.Agent {
				continue
			}
			st.LogEntries = append(st.LogEntries, entry)
			if started == nil {
				ts := entry.Timestamp
				started = &ts
			}
			if completed == nil && entry.Verdict.IsCompletion() {
				ts := entry.Timestamp
				completed = &ts
			}
			if entry.Verdict == feature.VerdictRevise {
				st.RevisionCount++
			}
		}
		st.StartedAt = started

		switch meta.ID {
		case Intake:
			// Intake represents classification, which precedes everything
			// else: any log entry at all means it already happened.
			switch {
			case len(f.PipelineLog) > 0:
				st.StepStatus = StatusCompleted
				if completed == nil {
					ts := f.PipelineLog[0].Timestamp
					completed = &ts
				}
			case f.CurrentAgent == meta.Agent && !terminal:
				st.StepStatus = StatusRunning
			}
		case Ship:
			switch {
			case f.Status == feature.StatusDone || f.Status == feature.StatusPRSubmitted:
				st.StepStatus = StatusCompleted
			case f.CurrentAgent == meta.Agent && !terminal && len(f.PipelineLog) > 0:
				st.StepStatus = StatusRunning
			}
		default:
			switch {
			case completed != nil:
				// Explicit completion entries win over advancement inference:
				// a step is never downgraded from completed.
				st.StepStatus = StatusCompleted
			case currentIdx > i:
				st.StepStatus = StatusCompleted
			case f.CurrentAgent == meta.Agent && !terminal:
				st.StepStatus = StatusRunning
			case isErrored(st.LogEntries, f):
				st.StepStatus = StatusError
			}
		}

		if st.StepStatus == StatusCompleted {
			st.CompletedAt = completed
			if started != nil && completed != nil {
				ms := completed.Sub(*started).Milliseconds()
				st.ElapsedMs = &ms
			}
		}
		if st.StepStatus == StatusRunning && started != nil {
			ms := now.Sub(*started).Milliseconds()
			st.ElapsedMs = &ms
		}

		states[i] = st
	}
	return states
}

// isErrored reports whether a step's most recent entry is a rejection with no
// later completion verdict anywhere in the log, on a non-cancelled feature.
func isErrored(entries []feature.LogEntry, f *feature.Feature) bool {
	if len(entries) == 0 || f.Status == feature.StatusCancelled {
		return false
	}
	last := entries[len(entries)-1]
	if last.Verdict != feature.VerdictReject {
		return false
	}
	for j := range f.PipelineLog {
		entry := f.PipelineLog[j]
		if entry.Timestamp.After(last.Timestamp) && entry.Verdict.IsCompletion() {
			return false
		}
	}
	return true
}
