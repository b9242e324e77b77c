package step

// Meta is presentation metadata for a canonical step. It is a lookup table
// consumed by the derivation engine and the dashboard; transition logic never
// depends on it.
type Meta struct {
	ID    ID     `json:"id"`
	Agent string `json:"agent"`
	Label string `json:"label"`
}

// pipeline is the canonical step order with the agent responsible for each.
// Intake and ship are both human-bridge (HBx) stages; the specialist agents
// own the middle of the pipeline.
var pipeline = []Meta{
	{ID: Intake, Agent: "HBx", Label: "Intake & Classification"},
	{ID: Spec, Agent: "IN1", Label: "Specification"},
	{ID: Design, Agent: "IN5", Label: "Design"},
	{ID: Build, Agent: "IN2", Label: "Build"},
	{ID: QA, Agent: "IN6", Label: "QA"},
	{ID: Ship, Agent: "HBx", Label: "Ship"},
}

// Pipeline returns the canonical step metadata in order.
func Pipeline() []Meta {
	out := make([]Meta, len(pipeline))
	copy(out, pipeline)
	return out
}

// AgentFor returns the agent identifier responsible for the given step.
func AgentFor(id ID) string {
	for _, m := range pipeline {
		if m.ID == id {
			return m.Agent
		}
	}
	return ""
}

// indexOfAgent returns the position in the canonical order of the first step
// owned by the given agent, or -1 when the agent owns no step.
func indexOfAgent(agent string) int {
	for i, m := range pipeline {
		if m.Agent == agent {
			return i
		}
	}
	return -1
}
