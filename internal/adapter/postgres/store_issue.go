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

func scanIssue(row scannable) (sync.Issue, error) {
	var i sync.Issue
	var contributorID *string
	var closedAt *time.Time
	if err := row.Scan(
		&i.ID, &i.RepositoryID, &contributorID, &i.Number, &i.Title, &i.State,
		&i.AuthorLogin, &i.AuthorAvatar, &i.CreatedAt, &closedAt,
	); err != nil {
		return sync.Issue{}, err
	}
	if contributorID != nil {
		i.ContributorID = *contributorID
	}
	if closedAt != nil {
		i.ClosedAt = *closedAt
	}
	return i, nil
}

const issueColumns = `id, repository_id, contributor_id, number, title, state,
	author_login, author_avatar, created_at, closed_at`

// GetOrCreateIssue looks up an issue by (repository_id, number), refreshing
// its mutable fields when it already exists.
func (s *Store) GetOrCreateIssue(ctx context.Context, i sync.Issue) (sync.Issue, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE repository_id = $1 AND number = $2`,
		i.RepositoryID, i.Number)

	existing, err := scanIssue(row)
	if err == nil {
		tag, execErr := s.pool.Exec(ctx,
			`UPDATE issues SET title = $2, state = $3, author_login = $4, author_avatar = $5, closed_at = $6
			 WHERE id = $1`,
			existing.ID, i.Title, i.State, i.AuthorLogin, i.AuthorAvatar, nullTime(i.ClosedAt))
		if err := execExpectOne(tag, execErr, "refresh issue %s/#%d", i.RepositoryID, i.Number); err != nil {
			return sync.Issue{}, false, err
		}
		existing.Title, existing.State = i.Title, i.State
		existing.AuthorLogin, existing.AuthorAvatar = i.AuthorLogin, i.AuthorAvatar
		existing.ClosedAt = i.ClosedAt
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return sync.Issue{}, false, fmt.Errorf("lookup issue %s/#%d: %w", i.RepositoryID, i.Number, err)
	}

	if i.ID == "" {
		i.ID = uuid.NewString()
	}

	row = s.pool.QueryRow(ctx,
		`INSERT INTO issues (id, repository_id, contributor_id, number, title, state,
		                     author_login, author_avatar, created_at, closed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (repository_id, number) DO UPDATE SET number = EXCLUDED.number
		 RETURNING `+issueColumns,
		i.ID, i.RepositoryID, nullIfEmpty(i.ContributorID), i.Number, i.Title, i.State,
		i.AuthorLogin, i.AuthorAvatar, i.CreatedAt, nullTime(i.ClosedAt))

	created, err := scanIssue(row)
	if err != nil {
		return sync.Issue{}, false, fmt.Errorf("create issue %s/#%d: %w", i.RepositoryID, i.Number, err)
	}
	return created, created.ID == i.ID, nil
}

// GetIssuesByRepository returns a repository's issues.
func (s *Store) GetIssuesByRepository(ctx context.Context, repositoryID string) ([]sync.Issue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE repository_id = $1 ORDER BY number DESC`,
		repositoryID)
	if err != nil {
		return nil, fmt.Errorf("list issues for repo %s: %w", repositoryID, err)
	}
	defer rows.Close()

	var out []sync.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return orEmpty(out), rows.Err()
}
