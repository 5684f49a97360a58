package syncengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/strob0t/sprintsync/internal/port/forge"
	"github.com/strob0t/sprintsync/internal/port/store"
)

// RepositoryUpdate is the per-repository result of check_team_updates.
type RepositoryUpdate struct {
	RepositoryID    string `json:"repository_id"`
	HasNew          bool   `json:"has_new"`
	NewCommitsCount int    `json:"new_commits_count"`
	Error           string `json:"error,omitempty"`
}

// TeamUpdates is the whole-team result of check_team_updates, cached
// in-process for UpdateProbeCacheTTL.
type TeamUpdates struct {
	TeamID       string             `json:"team_id"`
	Repositories []RepositoryUpdate `json:"repositories"`
}

type probeCacheEntry struct {
	result    TeamUpdates
	expiresAt time.Time
}

// UpdateProbe answers "does the forge have commits we haven't synced yet?"
// for a team without running a full sync, memoizing the whole-team result
// for a short TTL to bound forge call volume on chatty dashboards.
type UpdateProbe struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time

	mu    sync.Mutex
	cache map[string]probeCacheEntry
}

// NewUpdateProbe creates an UpdateProbe. ttl <= 0 falls back to the
// default of 5 minutes.
func NewUpdateProbe(st store.Store, ttl time.Duration) *UpdateProbe {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &UpdateProbe{
		store: st,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]probeCacheEntry),
	}
}

// CheckTeamUpdates compares each of the team's repositories' stored commit
// count against the forge's own count, caching the whole-team result for
// ttl. A per-repository forge error is recorded on that repository's result
// rather than failing the whole call.
func (p *UpdateProbe) CheckTeamUpdates(ctx context.Context, teamID string, client forge.Client) (TeamUpdates, error) {
	if cached, ok := p.cached(teamID); ok {
		return cached, nil
	}

	repos, err := p.store.ListRepositoriesByTeam(ctx, teamID)
	if err != nil {
		return TeamUpdates{}, fmt.Errorf("list repositories for team %s: %w", teamID, err)
	}

	result := TeamUpdates{TeamID: teamID, Repositories: make([]RepositoryUpdate, 0, len(repos))}
	for _, repo := range repos {
		update := RepositoryUpdate{RepositoryID: repo.ID}

		dbCount, err := p.store.CountCommitsByRepository(ctx, repo.ID)
		if err != nil {
			update.Error = err.Error()
			result.Repositories = append(result.Repositories, update)
			continue
		}

		forgeCount, err := client.CountCommits(ctx, repo.OwnerSlug, repo.RepoSlug)
		if err != nil {
			update.Error = err.Error()
			result.Repositories = append(result.Repositories, update)
			continue
		}

		if forgeCount > dbCount {
			update.HasNew = true
			update.NewCommitsCount = forgeCount - dbCount
		}
		result.Repositories = append(result.Repositories, update)
	}

	p.setCache(teamID, result)
	return result, nil
}

func (p *UpdateProbe) cached(teamID string) (TeamUpdates, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.cache[teamID]
	if !ok || p.now().After(entry.expiresAt) {
		return TeamUpdates{}, false
	}
	return entry.result, true
}

func (p *UpdateProbe) setCache(teamID string, result TeamUpdates) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[teamID] = probeCacheEntry{result: result, expiresAt: p.now().Add(p.ttl)}
}
