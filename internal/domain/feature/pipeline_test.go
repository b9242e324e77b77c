package feature

import "testing"

func TestForwardEdgesAreLegalTransitions(t *testing.T) {
	for _, s := range Statuses {
		next, ok := NextPhase(s)
		if !ok {
			continue
		}
		if !CanTransition(s, next) {
			t.Errorf("forward edge %s -> %s is not in the transition table", s, next)
		}
	}
}

func TestAutomatablePhasesHaveAgents(t *testing.T) {
	for _, s := range Statuses {
		if Automatable(s) {
			if agent, ok := AgentForPhase(s); !ok || agent == "" {
				t.Errorf("automatable phase %s has no agent", s)
			}
			if _, ok := NextPhase(s); !ok {
				t.Errorf("automatable phase %s has no forward edge", s)
			}
		}
	}
}

func TestAdvances(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPlanning, StatusDesignReview, true},
		{StatusInProgress, StatusQAReview, true},
		{StatusPRSubmitted, StatusDone, true},
		{StatusReview, StatusInProgress, false},
		{StatusApproved, StatusReview, false},
		{StatusPlanning, StatusCancelled, false},
		{StatusCancelled, StatusPlanning, false},
		{StatusReview, StatusReview, false},
	}
	for _, tt := range tests {
		if got := Advances(tt.from, tt.to); got != tt.want {
			t.Errorf("Advances(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestHumanGatesAreNotAutomatable(t *testing.T) {
	for _, s := range Statuses {
		if HumanGated(s) && Automatable(s) {
			t.Errorf("phase %s is both human-gated and automatable", s)
		}
	}
	if HumanGated(StatusDone) || HumanGated(StatusCancelled) {
		t.Error("terminal states are not human gates")
	}
}
