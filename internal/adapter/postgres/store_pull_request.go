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

func scanPullRequest(row scannable) (sync.PullRequest, error) {
	var p sync.PullRequest
	var contributorID *string
	var mergedAt, closedAt *time.Time
	if err := row.Scan(
		&p.ID, &p.RepositoryID, &contributorID, &p.Number, &p.Title, &p.State,
		&p.AuthorLogin, &p.AuthorAvatar, &p.CreatedAt, &closedAt, &mergedAt,
	); err != nil {
		return sync.PullRequest{}, err
	}
	if contributorID != nil {
		p.ContributorID = *contributorID
	}
	if closedAt != nil {
		p.ClosedAt = *closedAt
	}
	if mergedAt != nil {
		p.MergedAt = *mergedAt
	}
	return p, nil
}

const pullRequestColumns = `id, repository_id, contributor_id, number, title, state,
	author_login, author_avatar, created_at, closed_at, merged_at`

// GetOrCreatePullRequest looks up a pull request by (repository_id, number),
// refreshing its mutable fields (state, title, closed_at, merged_at) when it
// already exists; state is stored as "merged" when merged_at is set.
func (s *Store) GetOrCreatePullRequest(ctx context.Context, p sync.PullRequest) (sync.PullRequest, bool, error) {
	if !p.MergedAt.IsZero() {
		p.State = sync.StateMerged
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+pullRequestColumns+` FROM pull_requests WHERE repository_id = $1 AND number = $2`,
		p.RepositoryID, p.Number)

	existing, err := scanPullRequest(row)
	if err == nil {
		tag, execErr := s.pool.Exec(ctx,
			`UPDATE pull_requests SET title = $2, state = $3, author_login = $4, author_avatar = $5,
			                          closed_at = $6, merged_at = $7
			 WHERE id = $1`,
			existing.ID, p.Title, p.State, p.AuthorLogin, p.AuthorAvatar,
			nullTime(p.ClosedAt), nullTime(p.MergedAt))
		if err := execExpectOne(tag, execErr, "refresh pull request %s/#%d", p.RepositoryID, p.Number); err != nil {
			return sync.PullRequest{}, false, err
		}
		existing.Title, existing.State = p.Title, p.State
		existing.AuthorLogin, existing.AuthorAvatar = p.AuthorLogin, p.AuthorAvatar
		existing.ClosedAt, existing.MergedAt = p.ClosedAt, p.MergedAt
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return sync.PullRequest{}, false, fmt.Errorf("lookup pull request %s/#%d: %w", p.RepositoryID, p.Number, err)
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	row = s.pool.QueryRow(ctx,
		`INSERT INTO pull_requests (id, repository_id, contributor_id, number, title, state,
		                            author_login, author_avatar, created_at, closed_at, merged_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (repository_id, number) DO UPDATE SET number = EXCLUDED.number
		 RETURNING `+pullRequestColumns,
		p.ID, p.RepositoryID, nullIfEmpty(p.ContributorID), p.Number, p.Title, p.State,
		p.AuthorLogin, p.AuthorAvatar, p.CreatedAt, nullTime(p.ClosedAt), nullTime(p.MergedAt))

	created, err := scanPullRequest(row)
	if err != nil {
		return sync.PullRequest{}, false, fmt.Errorf("create pull request %s/#%d: %w", p.RepositoryID, p.Number, err)
	}
	return created, created.ID == p.ID, nil
}

// GetPullRequestsByRepository returns a repository's pull requests.
func (s *Store) GetPullRequestsByRepository(ctx context.Context, repositoryID string) ([]sync.PullRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pullRequestColumns+` FROM pull_requests WHERE repository_id = $1 ORDER BY number DESC`,
		repositoryID)
	if err != nil {
		return nil, fmt.Errorf("list pull requests for repo %s: %w", repositoryID, err)
	}
	defer rows.Close()

	var out []sync.PullRequest
	for rows.Next() {
		p, err := scanPullRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return orEmpty(out), rows.Err()
}
