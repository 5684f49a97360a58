package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/strob0t/sprintsync/internal/domain/sync"
)

func scanRepository(row scannable) (sync.Repository, error) {
	var r sync.Repository
	var externalID, projectID *string
	if err := row.Scan(
		&r.ID, &r.Provider, &externalID, &r.OwnerSlug, &r.RepoSlug, &r.URL,
		&r.DefaultBranch, &projectID, &r.TeamID, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return sync.Repository{}, err
	}
	if externalID != nil {
		r.ExternalID = *externalID
	}
	if projectID != nil {
		r.ProjectID = *projectID
	}
	return r, nil
}

// GetRepository fetches a repository by id.
func (s *Store) GetRepository(ctx context.Context, id string) (sync.Repository, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, provider, external_id, owner_slug, repo_slug, url, default_branch,
		        project_id, team_id, created_at, updated_at
		 FROM repositories WHERE id = $1`, id)

	r, err := scanRepository(row)
	if err != nil {
		return sync.Repository{}, notFoundWrap(err, "get repository %s", id)
	}
	return r, nil
}

// GetOrCreateRepository looks up a repository by (provider, owner_slug,
// repo_slug) and creates it if missing. The second return value reports
// whether a new row was created.
func (s *Store) GetOrCreateRepository(ctx context.Context, r sync.Repository) (sync.Repository, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, provider, external_id, owner_slug, repo_slug, url, default_branch,
		        project_id, team_id, created_at, updated_at
		 FROM repositories WHERE provider = $1 AND owner_slug = $2 AND repo_slug = $3`,
		r.Provider, r.OwnerSlug, r.RepoSlug)

	existing, err := scanRepository(row)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return sync.Repository{}, false, fmt.Errorf("lookup repository %s/%s: %w", r.OwnerSlug, r.RepoSlug, err)
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.DefaultBranch == "" {
		r.DefaultBranch = "main"
	}

	row = s.pool.QueryRow(ctx,
		`INSERT INTO repositories (id, provider, external_id, owner_slug, repo_slug, url,
		                           default_branch, project_id, team_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (provider, owner_slug, repo_slug) DO UPDATE SET provider = repositories.provider
		 RETURNING id, provider, external_id, owner_slug, repo_slug, url, default_branch,
		           project_id, team_id, created_at, updated_at`,
		r.ID, r.Provider, nullIfEmpty(r.ExternalID), r.OwnerSlug, r.RepoSlug, r.URL,
		r.DefaultBranch, nullIfEmpty(r.ProjectID), r.TeamID)

	created, err := scanRepository(row)
	if err != nil {
		return sync.Repository{}, false, fmt.Errorf("create repository %s/%s: %w", r.OwnerSlug, r.RepoSlug, err)
	}

	// The ON CONFLICT branch races a concurrent insert; the row it returns
	// may be the one created just now, or one created by the racing writer.
	// Either way it was not present before this call started, so report the
	// creation as ours only when the id we generated made it into the row.
	return created, created.ID == r.ID, nil
}

// ListRepositoriesByTeam returns every repository owned by a team.
func (s *Store) ListRepositoriesByTeam(ctx context.Context, teamID string) ([]sync.Repository, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, provider, external_id, owner_slug, repo_slug, url, default_branch,
		        project_id, team_id, created_at, updated_at
		 FROM repositories WHERE team_id = $1 ORDER BY created_at`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list repositories for team %s: %w", teamID, err)
	}
	defer rows.Close()

	var out []sync.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return orEmpty(out), rows.Err()
}

// touchRepositoryUpdatedAt bumps updated_at; used after a sync session
// completes so "last synced" queries can order by it.
func (s *Store) touchRepositoryUpdatedAt(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE repositories SET updated_at = $2 WHERE id = $1`, id, at)
	return execExpectOne(tag, err, "touch repository %s", id)
}
