package http

import (
	"net/http"

	"github.com/Strob0t/FeatureForge/internal/domain/feature"
	"github.com/Strob0t/FeatureForge/internal/domain/packet"
)

// CreatePacket handles POST /handoff-packets.
func (h *Handlers) CreatePacket(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[packet.CreateRequest](w, r)
	if !ok {
		return
	}

	p, err := h.Packets.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "feature not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetPacket handles GET /handoff-packets/{id}.
func (h *Handlers) GetPacket(w http.ResponseWriter, r *http.Request) {
	p, err := h.Packets.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "packet not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CompletePacket handles POST /handoff-packets/{id}/complete.
func (h *Handlers) CompletePacket(w http.ResponseWriter, r *http.Request) {
	out, ok := readJSON[packet.Output](w, r)
	if !ok {
		return
	}

	p, err := h.Packets.Complete(r.Context(), urlParam(r, "id"), out)
	if err != nil {
		writeDomainError(w, err, "packet not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectPacket handles POST /handoff-packets/{id}/reject.
func (h *Handlers) RejectPacket(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[rejectRequest](w, r)
	if !ok {
		return
	}

	p, err := h.Packets.Reject(r.Context(), urlParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, err, "packet not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetPacketDiff handles GET /handoff-packets/{id}/diff and its nested form
// GET /features/{id}/handoff-packets/{packetID}/diff.
func (h *Handlers) GetPacketDiff(w http.ResponseWriter, r *http.Request) {
	packetID := urlParam(r, "packetID")
	if packetID == "" {
		packetID = urlParam(r, "id")
	}

	payload, err := h.Packets.Diff(r.Context(), packetID)
	if err != nil {
		writeDomainError(w, err, "packet not found")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// ListPacketVersions handles GET /features/{id}/handoff-packets?phase=...
func (h *Handlers) ListPacketVersions(w http.ResponseWriter, r *http.Request) {
	phase := feature.Status(r.URL.Query().Get("phase"))
	if phase == "" {
		writeError(w, http.StatusBadRequest, "phase query parameter is required")
		return
	}

	packets, err := h.Packets.Versions(r.Context(), urlParam(r, "id"), phase)
	if err != nil {
		writeDomainError(w, err, "feature not found")
		return
	}
	if packets == nil {
		packets = []packet.HandoffPacket{}
	}
	writeJSON(w, http.StatusOK, packets)
}

// LatestPacket handles GET /features/{id}/handoff-packets/latest?phase=...
func (h *Handlers) LatestPacket(w http.ResponseWriter, r *http.Request) {
	phase := feature.Status(r.URL.Query().Get("phase"))
	if phase == "" {
		writeError(w, http.StatusBadRequest, "phase query parameter is required")
		return
	}

	p, err := h.Packets.Latest(r.Context(), urlParam(r, "id"), phase)
	if err != nil {
		writeDomainError(w, err, "packet not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
