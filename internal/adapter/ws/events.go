package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Event types pushed to dashboard clients.
const (
	EventFeatureCreated = "feature.created"
	EventFeatureStatus  = "feature.status"
	EventFeatureLog     = "feature.log"
	EventPacketStatus   = "packet.status"
)

// FeatureStatusEvent is pushed whenever a feature's pipeline state changes.
type FeatureStatusEvent struct {
	FeatureID      string `json:"featureId"`
	Status         string `json:"status"`
	CurrentAgent   string `json:"currentAgent"`
	NeedsAttention bool   `json:"needsAttention"`
	RevisionCount  int    `json:"revisionCount"`
}

// FeatureLogEvent is pushed when an entry is appended to a pipeline log.
type FeatureLogEvent struct {
	FeatureID string    `json:"featureId"`
	Timestamp time.Time `json:"timestamp"`
	Agent     string    `json:"agent"`
	Stage     string    `json:"stage"`
	Verdict   string    `json:"verdict"`
}

// PacketStatusEvent is pushed when a handoff packet is opened or closed.
type PacketStatusEvent struct {
	PacketID  string `json:"packetId"`
	FeatureID string `json:"featureId"`
	Phase     string `json:"phase"`
	Version   int    `json:"version"`
	Status    string `json:"status"`
}

// BroadcastEvent implements the broadcast port. Payloads that fail to
// marshal are dropped with a log line; a bad event must not take down
// the write path that produced it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("websocket event marshal failed", "type", eventType, "error", err)
		return
	}
	h.Broadcast(ctx, Message{Type: eventType, Payload: data})
}
