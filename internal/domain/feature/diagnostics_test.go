package feature

import (
	"testing"
	"time"
)

func TestDiagnoseStalled(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &Feature{
		Status:       StatusInProgress,
		CurrentAgent: "IN2",
		PipelineLog: []LogEntry{
			{Timestamp: now.Add(-6 * time.Minute), Agent: "IN2", Verdict: VerdictRevise},
		},
	}
	d := Diagnose(f, now)
	if !d.Stalled {
		t.Fatal("expected stalled flag after 6 minutes of silence")
	}
}

func TestDiagnoseNotStalledWithoutAgent(t *testing.T) {
	now := time.Now()
	f := &Feature{
		Status: StatusReview,
		PipelineLog: []LogEntry{
			{Timestamp: now.Add(-time.Hour), Agent: "IN6", Verdict: VerdictApproved},
		},
	}
	if d := Diagnose(f, now); d.Stalled {
		t.Fatal("feature without a current agent must not be flagged as stalled")
	}
}

func TestDiagnoseNotStalledEmptyLog(t *testing.T) {
	f := &Feature{Status: StatusPlanning, CurrentAgent: "HBx"}
	if d := Diagnose(f, time.Now()); d.Stalled {
		t.Fatal("feature with an empty log must not be flagged as stalled")
	}
}

func TestDiagnoseEscalation(t *testing.T) {
	f := &Feature{Status: StatusInProgress, RevisionCount: 2}
	d := Diagnose(f, time.Now())
	if !d.EscalationRequired {
		t.Fatal("expected escalation at revision_count 2")
	}

	f.RevisionCount = 1
	if d := Diagnose(f, time.Now()); d.EscalationRequired {
		t.Fatal("did not expect escalation at revision_count 1")
	}
}
