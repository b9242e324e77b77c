package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Features
		r.Get("/features", h.ListFeatures)
		r.Post("/features", h.CreateFeature)
		r.Get("/features/{id}", h.GetFeature)
		r.Patch("/features/{id}", h.TransitionFeature)
		r.Post("/features/{id}/approve", h.ApproveFeature)
		r.Post("/features/{id}/run-pipeline", h.RunPipeline)
		r.Get("/features/{id}/steps", h.ListSteps)
		r.Get("/features/{id}/log", h.ListLog)
		r.Post("/features/{id}/log", h.AppendLog)
		r.Get("/features/{id}/diagnostics", h.GetDiagnostics)

		// Handoff packets (nested under features + direct access)
		r.Get("/features/{id}/handoff-packets", h.ListPacketVersions)
		r.Get("/features/{id}/handoff-packets/latest", h.LatestPacket)
		r.Get("/features/{id}/handoff-packets/{packetID}/diff", h.GetPacketDiff)
		r.Post("/handoff-packets", h.CreatePacket)
		r.Get("/handoff-packets/{id}", h.GetPacket)
		r.Post("/handoff-packets/{id}/complete", h.CompletePacket)
		r.Post("/handoff-packets/{id}/reject", h.RejectPacket)
		r.Get("/handoff-packets/{id}/diff", h.GetPacketDiff)
	})
}
