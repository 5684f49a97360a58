package http

import (
	"net/http"

	"github.com/strob0t/sprintsync/internal/analytics"
)

// GetSprintStats handles GET /stats/team/{team_id}/sprint-stats?days=N|all.
func (h *Handlers) GetSprintStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamID := urlParam(r, "team_id")

	resolved, err := h.resolver.Resolve(ctx, teamID)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	window := analytics.Window{Days: resolved.SprintDurationDays}
	if d := r.URL.Query().Get("days"); d == "all" {
		window = analytics.Window{All: true}
	} else if d != "" {
		window = analytics.Window{Days: queryInt(r, "days", resolved.SprintDurationDays)}
	}

	result, err := h.analytics.SprintStats(ctx, teamID, window, resolved.Sprint)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type commitDetailsResponse struct {
	Commit any `json:"commit"`
	Files  any `json:"files"`
}

// GetCommitDetails handles GET /stats/commit/{sha}/details.
func (h *Handlers) GetCommitDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sha := urlParam(r, "sha")

	commit, err := h.store.GetCommitBySHA(ctx, sha)
	if err != nil {
		writeDomainError(w, err, "commit not found")
		return
	}
	files, err := h.store.GetCommitFiles(ctx, commit.ID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commitDetailsResponse{Commit: commit, Files: files})
}

type contributorCommitsResponse struct {
	Login   string                        `json:"login"`
	Total   int                           `json:"total"`
	Commits []analytics.ContributorCommit `json:"commits"`
}

// GetContributorCommits handles
// GET /stats/team/{team_id}/contributor/{login}/commits?days&limit&offset.
func (h *Handlers) GetContributorCommits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamID := urlParam(r, "team_id")
	login := urlParam(r, "login")

	resolved, err := h.resolver.Resolve(ctx, teamID)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	days := queryInt(r, "days", resolved.SprintDurationDays)
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	commits, total, err := h.analytics.ContributorCommits(ctx, teamID, login, days, limit, offset, resolved.Sprint)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contributorCommitsResponse{Login: login, Total: total, Commits: commits})
}
