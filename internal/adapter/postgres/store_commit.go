package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/strob0t/sprintsync/internal/domain/sync"
	"github.com/strob0t/sprintsync/internal/port/store"
)

func scanCommit(row scannable) (sync.Commit, error) {
	var c sync.Commit
	var contributorID *string
	if err := row.Scan(
		&c.ID, &c.RepositoryID, &contributorID, &c.SHA, &c.Message,
		&c.AuthorName, &c.AuthorEmail, &c.AuthoredAt, &c.CommittedAt,
		&c.Additions, &c.Deletions, &c.TotalChanges, &c.FilesChanged, &c.ParentsCount,
		&c.Enrichment.CommitType, &c.Enrichment.IsConventional, &c.Enrichment.ConventionalType,
		&c.Enrichment.ConventionalScope, &c.Enrichment.IsBreakingChange, &c.Enrichment.IsMergeCommit,
		&c.Enrichment.IsPRCommit, &c.Enrichment.IsRevertCommit,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return sync.Commit{}, err
	}
	if contributorID != nil {
		c.ContributorID = *contributorID
	}
	return c, nil
}

const commitColumns = `id, repository_id, contributor_id, sha, message, author_name, author_email,
	authored_at, committed_at, additions, deletions, total_changes, files_changed, parents_count,
	commit_type, is_conventional, conventional_type, conventional_scope, is_breaking_change,
	is_merge_commit, is_pr_commit, is_revert_commit, created_at, updated_at`

// GetCommitByRepoAndSHA fetches a commit by its repository and SHA.
func (s *Store) GetCommitByRepoAndSHA(ctx context.Context, repositoryID, sha string) (sync.Commit, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+commitColumns+` FROM commits WHERE repository_id = $1 AND sha = $2`,
		repositoryID, sha)

	c, err := scanCommit(row)
	if err != nil {
		return sync.Commit{}, notFoundWrap(err, "get commit %s in repo %s", sha, repositoryID)
	}
	return c, nil
}

// GetCommitBySHA fetches a commit by SHA alone, across every repository in
// the system. The commit-details endpoint is not team-scoped; a SHA is
// assumed unique enough in practice for a single-result lookup.
func (s *Store) GetCommitBySHA(ctx context.Context, sha string) (sync.Commit, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+commitColumns+` FROM commits WHERE sha = $1 LIMIT 1`, sha)

	c, err := scanCommit(row)
	if err != nil {
		return sync.Commit{}, notFoundWrap(err, "get commit %s", sha)
	}
	return c, nil
}

// GetOrCreateCommit looks up a commit by (repository_id, sha), inserting a
// bare stub row if absent. Callers follow up with UpdateCommitDetails once
// full commit data has been fetched from the forge.
func (s *Store) GetOrCreateCommit(ctx context.Context, repositoryID, sha string) (sync.Commit, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+commitColumns+` FROM commits WHERE repository_id = $1 AND sha = $2`,
		repositoryID, sha)

	existing, err := scanCommit(row)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return sync.Commit{}, false, fmt.Errorf("lookup commit %s: %w", sha, err)
	}

	id := uuid.NewString()
	row = s.pool.QueryRow(ctx,
		`INSERT INTO commits (id, repository_id, sha, message, authored_at, committed_at)
		 VALUES ($1, $2, $3, '', now(), now())
		 ON CONFLICT (repository_id, sha) DO UPDATE SET sha = commits.sha
		 RETURNING `+commitColumns,
		id, repositoryID, sha)

	created, err := scanCommit(row)
	if err != nil {
		return sync.Commit{}, false, fmt.Errorf("create commit %s: %w", sha, err)
	}
	return created, created.ID == id, nil
}

// UpdateCommitDetails overwrites only the fields set in d, leaving every
// other stored column untouched.
func (s *Store) UpdateCommitDetails(ctx context.Context, id string, d store.CommitDetails) error {
	var sets []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args)+1)
	}

	if d.ContributorID != nil {
		sets = append(sets, "contributor_id = "+arg(nullIfEmpty(*d.ContributorID)))
	}
	if d.Message != nil {
		sets = append(sets, "message = "+arg(*d.Message))
	}
	if d.AuthorName != nil {
		sets = append(sets, "author_name = "+arg(*d.AuthorName))
	}
	if d.AuthorEmail != nil {
		sets = append(sets, "author_email = "+arg(*d.AuthorEmail))
	}
	if d.AuthoredAt != nil {
		sets = append(sets, "authored_at = "+arg(*d.AuthoredAt))
	}
	if d.CommittedAt != nil {
		sets = append(sets, "committed_at = "+arg(*d.CommittedAt))
	}
	if d.Additions != nil {
		sets = append(sets, "additions = "+arg(*d.Additions))
	}
	if d.Deletions != nil {
		sets = append(sets, "deletions = "+arg(*d.Deletions))
	}
	if d.TotalChanges != nil {
		sets = append(sets, "total_changes = "+arg(*d.TotalChanges))
	}
	if d.FilesChanged != nil {
		sets = append(sets, "files_changed = "+arg(*d.FilesChanged))
	}
	if d.ParentsCount != nil {
		sets = append(sets, "parents_count = "+arg(*d.ParentsCount))
	}
	if e := d.Enrichment; e != nil {
		sets = append(sets,
			"commit_type = "+arg(e.CommitType),
			"is_conventional = "+arg(e.IsConventional),
			"conventional_type = "+arg(e.ConventionalType),
			"conventional_scope = "+arg(e.ConventionalScope),
			"is_breaking_change = "+arg(e.IsBreakingChange),
			"is_merge_commit = "+arg(e.IsMergeCommit),
			"is_pr_commit = "+arg(e.IsPRCommit),
			"is_revert_commit = "+arg(e.IsRevertCommit),
		)
	}

	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")

	q := fmt.Sprintf("UPDATE commits SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := s.pool.Exec(ctx, q, append([]any{id}, args...)...)
	return execExpectOne(tag, err, "update commit details %s", id)
}

// GetCommitsByRepository returns a repository's commits ordered newest-first.
func (s *Store) GetCommitsByRepository(ctx context.Context, repositoryID string, limit, offset int) ([]sync.Commit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+commitColumns+` FROM commits WHERE repository_id = $1
		 ORDER BY authored_at DESC LIMIT $2 OFFSET $3`,
		repositoryID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list commits for repo %s: %w", repositoryID, err)
	}
	defer rows.Close()

	var out []sync.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return orEmpty(out), rows.Err()
}

// GetCommitsByTeamDateRange returns every commit authored within
// [since, until) across all of a team's repositories.
func (s *Store) GetCommitsByTeamDateRange(ctx context.Context, teamID string, since, until time.Time) ([]sync.Commit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+prefixed("c", commitColumns)+`
		 FROM commits c
		 JOIN repositories r ON r.id = c.repository_id
		 WHERE r.team_id = $1 AND c.authored_at >= $2 AND c.authored_at < $3
		 ORDER BY c.authored_at`,
		teamID, since, until)
	if err != nil {
		return nil, fmt.Errorf("list commits for team %s: %w", teamID, err)
	}
	defer rows.Close()

	var out []sync.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return orEmpty(out), rows.Err()
}

// ExistingSHAs returns the subset of shas already present for a repository,
// used to skip already-persisted commits during a re-run.
func (s *Store) ExistingSHAs(ctx context.Context, repositoryID string, shas []string) (map[string]bool, error) {
	if len(shas) == 0 {
		return map[string]bool{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT sha FROM commits WHERE repository_id = $1 AND sha = ANY($2)`,
		repositoryID, shas)
	if err != nil {
		return nil, fmt.Errorf("check existing shas for repo %s: %w", repositoryID, err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var sha string
		if err := rows.Scan(&sha); err != nil {
			return nil, err
		}
		out[sha] = true
	}
	return out, rows.Err()
}

// CountCommitsByRepository returns how many commits are stored for a
// repository, used by the update probe against the forge's own count.
func (s *Store) CountCommitsByRepository(ctx context.Context, repositoryID string) (int, error) {
	var count int
	row := s.pool.QueryRow(ctx, `SELECT count(*) FROM commits WHERE repository_id = $1`, repositoryID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count commits for repo %s: %w", repositoryID, err)
	}
	return count, nil
}

// prefixed rewrites a comma-separated column list with a table alias prefix.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
