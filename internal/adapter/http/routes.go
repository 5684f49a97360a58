package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the sync, streaming, analytics, and settings
// routes on r.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Team sync control
		r.Post("/team/{team_id}/sync", h.DispatchSync)
		r.Get("/team/{team_id}/sync-status", h.GetSyncStatus)
		r.Get("/team/{team_id}/check-updates", h.CheckUpdates)

		// Progress streaming
		r.Get("/sync/progress/{session_id}", h.StreamProgress)
		r.Get("/sync/status/{session_id}", h.GetSessionStatus)

		// Sprint analytics
		r.Get("/stats/team/{team_id}/sprint-stats", h.GetSprintStats)
		r.Get("/stats/commit/{sha}/details", h.GetCommitDetails)
		r.Get("/stats/team/{team_id}/contributor/{login}/commits", h.GetContributorCommits)

		// Per-team settings
		r.Get("/team/{team_id}/settings", h.GetSettings)
		r.Put("/team/{team_id}/settings", h.UpdateSettings)
	})
}
