package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/strob0t/sprintsync/internal/domain"
	"github.com/strob0t/sprintsync/internal/domain/sync"
	"github.com/strob0t/sprintsync/internal/syncengine"
)

type syncRequest struct {
	CallerID   string `json:"caller_id"`
	Role       string `json:"role"`
	Provider   string `json:"provider"`
	ForgeToken string `json:"forge_token"`
}

type syncResponse struct {
	SessionIDs   []string `json:"session_ids"`
	Repositories []string `json:"repositories"`
}

// DispatchSync handles POST /team/{team_id}/sync: authorizes the caller,
// resolves the forge token to use, and hands off to the Dispatcher.
func (h *Handlers) DispatchSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamID := urlParam(r, "team_id")

	exists, err := h.store.TeamExists(ctx, teamID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}

	req, ok := readJSON[syncRequest](w, r, maxSyncBodyBytes)
	if !ok {
		return
	}
	if req.Provider == "" {
		req.Provider = string(sync.ProviderGitHub)
	}
	if req.Role == "" {
		req.Role = string(syncengine.RoleManager)
	}

	token := h.resolveToken(teamID, req.ForgeToken)
	if token == "" {
		writeError(w, http.StatusBadRequest, "no forge token configured for this team")
		return
	}

	caller := syncengine.Caller{
		ID:         req.CallerID,
		Role:       syncengine.Role(req.Role),
		Provider:   sync.Provider(req.Provider),
		ForgeToken: token,
	}

	sessionIDs, err := h.dispatcher.Dispatch(ctx, teamID, caller)
	if err != nil {
		writeDomainError(w, err, "team not found")
		return
	}

	repos, err := h.store.ListRepositoriesByTeam(ctx, teamID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	names := make([]string, 0, len(repos))
	for _, repo := range repos {
		names = append(names, repo.FullName())
	}

	writeJSON(w, http.StatusAccepted, syncResponse{SessionIDs: sessionIDs, Repositories: names})
}

type syncStatusResponse struct {
	HasData            bool            `json:"has_data"`
	LastSync           *string         `json:"last_sync"`
	TotalCommitsInDB   int             `json:"total_commits_in_db"`
	ActiveSyncSessions []sync.Progress `json:"active_sync_sessions"`
	NeedsInitialSync   bool            `json:"needs_initial_sync"`
}

// GetSyncStatus handles GET /team/{team_id}/sync-status.
func (h *Handlers) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamID := urlParam(r, "team_id")

	repos, err := h.store.ListRepositoriesByTeam(ctx, teamID)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	total := 0
	for _, repo := range repos {
		n, err := h.store.CountCommitsByRepository(ctx, repo.ID)
		if err != nil {
			writeInternalError(w, err)
			return
		}
		total += n
	}

	active, err := h.store.GetActiveSessionsByTeam(ctx, teamID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	activeProgress := make([]sync.Progress, 0, len(active))
	for _, s := range active {
		activeProgress = append(activeProgress, s.Snapshot())
	}

	var lastSync *string
	if latest, err := h.store.GetLatestSessionByTeam(ctx, teamID); err == nil {
		ts := latest.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		lastSync = &ts
	} else if !errors.Is(err, domain.ErrNotFound) {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, syncStatusResponse{
		HasData:            total > 0,
		LastSync:           lastSync,
		TotalCommitsInDB:   total,
		ActiveSyncSessions: activeProgress,
		NeedsInitialSync:   total == 0 && len(activeProgress) == 0,
	})
}

// CheckUpdates handles GET /team/{team_id}/check-updates.
func (h *Handlers) CheckUpdates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamID := urlParam(r, "team_id")

	provider := r.URL.Query().Get("provider")
	if provider == "" {
		provider = string(sync.ProviderGitHub)
	}
	token := h.resolveToken(teamID, r.URL.Query().Get("forge_token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "no forge token configured for this team")
		return
	}

	client, err := h.registry.Build(provider, token)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported provider %q", provider))
		return
	}

	updates, err := h.probe.CheckTeamUpdates(ctx, teamID, client)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updates)
}
