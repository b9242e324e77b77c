package http

import (
	"net/http"

	"github.com/Strob0t/FeatureForge/internal/domain/feature"
	"github.com/Strob0t/FeatureForge/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Features *service.FeatureService
	Packets  *service.PacketService
	Pipeline *service.PipelineService
}

// ListFeatures handles GET /features.
func (h *Handlers) ListFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := h.Features.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "features not found")
		return
	}
	if features == nil {
		features = []feature.Feature{}
	}
	writeJSON(w, http.StatusOK, features)
}

// CreateFeature handles POST /features.
func (h *Handlers) CreateFeature(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[feature.CreateRequest](w, r)
	if !ok {
		return
	}

	f, err := h.Features.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "feature not found")
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// GetFeature handles GET /features/{id}.
func (h *Handlers) GetFeature(w http.ResponseWriter, r *http.Request) {
	f, err := h.Features.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "feature not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type transitionRequest struct {
	Status feature.Status `json:"status"`
}

// TransitionFeature handles PATCH /features/{id}. The only mutable field
// on this route is status; everything else is derived or append-only.
func (h *Handlers) TransitionFeature(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[transitionRequest](w, r)
	if !ok {
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	f, err := h.Features.Transition(r.Context(), urlParam(r, "id"), req.Status)
	if err != nil {
		writeDomainError(w, err, "feature not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type approveRequest struct {
	TargetStatus feature.Status `json:"target_status"`
	ApprovedBy   string         `json:"approved_by"`
}

// ApproveFeature handles POST /features/{id}/approve. The target status
// is validated through the state machine like a PATCH; the approver is
// recorded on the feature.
func (h *Handlers) ApproveFeature(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[approveRequest](w, r)
	if !ok {
		return
	}
	if req.TargetStatus == "" {
		writeError(w, http.StatusBadRequest, "target_status is required")
		return
	}

	f, err := h.Features.Approve(r.Context(), urlParam(r, "id"), req.TargetStatus, req.ApprovedBy)
	if err != nil {
		writeDomainError(w, err, "feature not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// RunPipeline handles POST /features/{id}/run-pipeline. The run executes
// within the request; the response carries the feature as it stands when
// the loop stops at a human gate or terminal status.
func (h *Handlers) RunPipeline(w http.ResponseWriter, r *http.Request) {
	f, err := h.Pipeline.Start(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "feature not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// ListSteps handles GET /features/{id}/steps.
func (h *Handlers) ListSteps(w http.ResponseWriter, r *http.Request) {
	states, err := h.Features.Steps(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "feature not found")
		return
	}
	writeJSON(w, http.StatusOK, states)
}

// ListLog handles GET /features/{id}/log.
func (h *Handlers) ListLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Features.Log(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "feature not found")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// AppendLog handles POST /features/{id}/log.
func (h *Handlers) AppendLog(w http.ResponseWriter, r *http.Request) {
	entry, ok := readJSON[feature.LogEntry](w, r)
	if !ok {
		return
	}

	f, err := h.Features.AppendLog(r.Context(), urlParam(r, "id"), entry)
	if err != nil {
		writeDomainError(w, err, "feature not found")
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// GetDiagnostics handles GET /features/{id}/diagnostics.
func (h *Handlers) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	d, err := h.Features.Diagnostics(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "feature not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}
