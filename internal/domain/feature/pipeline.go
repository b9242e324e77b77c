package feature

// phaseAgents maps each automatable phase to the agent responsible for it.
// The remaining phases are human gates or terminal states and have no
// automated worker.
var phaseAgents = map[Status]string{
	StatusPlanning:     "IN1",
	StatusDesignReview: "IN5",
	StatusInProgress:   "IN2",
	StatusQAReview:     "IN6",
}

// forward maps each automatable phase to its normal forward transition.
var forward = map[Status]Status{
	StatusPlanning:     StatusDesignReview,
	StatusDesignReview: StatusInProgress,
	StatusInProgress:   StatusQAReview,
	StatusQAReview:     StatusReview,
}

// phaseOrder is the canonical position of every non-cancelled status in the
// pipeline. Cancelled sits outside the ordering.
var phaseOrder = map[Status]int{
	StatusPlanning:     0,
	StatusDesignReview: 1,
	StatusInProgress:   2,
	StatusQAReview:     3,
	StatusReview:       4,
	StatusApproved:     5,
	StatusPRSubmitted:  6,
	StatusDone:         7,
}

// Advances reports whether a from -> to transition moves the feature into a
// later phase. Backward edges (revise loops) and cancellation never advance.
func Advances(from, to Status) bool {
	a, okFrom := phaseOrder[from]
	b, okTo := phaseOrder[to]
	return okFrom && okTo && b > a
}

// AgentForPhase returns the automated agent that works the given phase.
// ok is false for human-gated and terminal phases.
func AgentForPhase(s Status) (agent string, ok bool) {
	agent, ok = phaseAgents[s]
	return agent, ok
}

// Automatable reports whether the pipeline runner may drive the given phase
// forward without human approval.
func Automatable(s Status) bool {
	_, ok := phaseAgents[s]
	return ok
}

// NextPhase returns the forward transition out of an automatable phase.
func NextPhase(s Status) (Status, bool) {
	next, ok := forward[s]
	return next, ok
}

// HumanGated reports whether the phase requires explicit human approval
// before the pipeline may advance past it.
func HumanGated(s Status) bool {
	switch s {
	case StatusReview, StatusApproved, StatusPRSubmitted:
		return true
	}
	return false
}
