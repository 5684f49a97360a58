package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/strob0t/sprintsync/internal/domain/sync"
	"github.com/strob0t/sprintsync/internal/port/store"
)

func scanSession(row scannable) (sync.Session, error) {
	var s sync.Session
	var startedAt, completedAt *time.Time
	if err := row.Scan(
		&s.ID, &s.TeamID, &s.RepositoryID, &s.Status, &s.CurrentPhase,
		&s.TotalCommits, &s.ProcessedCommits, &s.NewCommits, &s.SprintCommitsDone,
		&s.Errors, &s.Result, &startedAt, &completedAt, &s.CreatedAt,
	); err != nil {
		return sync.Session{}, err
	}
	if startedAt != nil {
		s.StartedAt = *startedAt
	}
	if completedAt != nil {
		s.CompletedAt = *completedAt
	}
	return s, nil
}

const sessionColumns = `id, team_id, repository_id, status, current_phase, total_commits,
	processed_commits, new_commits, sprint_commits_done, errors, result, started_at, completed_at, created_at`

// CreateSession inserts a new sync session in the queued state.
func (s *Store) CreateSession(ctx context.Context, teamID, repositoryID string) (sync.Session, error) {
	id := uuid.NewString()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO sync_sessions (id, team_id, repository_id)
		 VALUES ($1, $2, $3)
		 RETURNING `+sessionColumns,
		id, teamID, repositoryID)

	session, err := scanSession(row)
	if err != nil {
		return sync.Session{}, fmt.Errorf("create sync session for team %s: %w", teamID, err)
	}
	return session, nil
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (sync.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sync_sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if err != nil {
		return sync.Session{}, notFoundWrap(err, "get sync session %s", id)
	}
	return session, nil
}

// GetActiveSessionsByTeam returns every session in {queued, running} for a team.
func (s *Store) GetActiveSessionsByTeam(ctx context.Context, teamID string) ([]sync.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sync_sessions
		 WHERE team_id = $1 AND status IN ($2, $3)
		 ORDER BY created_at`,
		teamID, sync.StatusQueued, sync.StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list active sessions for team %s: %w", teamID, err)
	}
	defer rows.Close()

	var out []sync.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return orEmpty(out), rows.Err()
}

// GetLatestSessionByTeam returns the most recently created session for a
// team, regardless of status, or domain.ErrNotFound if the team has never
// run a sync.
func (s *Store) GetLatestSessionByTeam(ctx context.Context, teamID string) (sync.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sync_sessions WHERE team_id = $1 ORDER BY created_at DESC LIMIT 1`,
		teamID)
	session, err := scanSession(row)
	if err != nil {
		return sync.Session{}, notFoundWrap(err, "get latest sync session for team %s", teamID)
	}
	return session, nil
}

// MarkRunning transitions a session to running/initializing and stamps started_at.
func (s *Store) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_sessions SET status = $2, current_phase = $3, started_at = $4 WHERE id = $1`,
		id, sync.StatusRunning, sync.PhaseInitializing, startedAt)
	return execExpectOne(tag, err, "mark session %s running", id)
}

// MarkCompleted transitions a session to completed, recording the final
// commit count, result blob, and completion time. errs, if non-nil,
// replaces the session's accumulated non-fatal errors.
func (s *Store) MarkCompleted(ctx context.Context, id string, completedAt time.Time, result string, newCommits int, errs []string) error {
	q := `UPDATE sync_sessions SET status = $2, current_phase = $3, completed_at = $4,
	                               result = $5, new_commits = $6`
	args := []any{id, sync.StatusCompleted, sync.PhaseComplete, completedAt, result, newCommits}
	if errs != nil {
		q += ", errors = $7"
		args = append(args, pgTextArray(errs))
	}
	q += " WHERE id = $1"

	tag, err := s.pool.Exec(ctx, q, args...)
	return execExpectOne(tag, err, "mark session %s completed", id)
}

// MarkFailed transitions a session to failed, recording the errors that
// caused the abort and the completion time.
func (s *Store) MarkFailed(ctx context.Context, id string, completedAt time.Time, errs []string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_sessions SET status = $2, completed_at = $3, errors = $4 WHERE id = $1`,
		id, sync.StatusFailed, completedAt, pgTextArray(errs))
	return execExpectOne(tag, err, "mark session %s failed", id)
}

// UpdateProgress overwrites only the fields set in u, leaving the rest of
// the session row untouched. AppendError, when set, appends to the
// session's error list rather than replacing it.
func (s *Store) UpdateProgress(ctx context.Context, id string, u store.ProgressUpdate) error {
	var sets []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args)+1)
	}

	if u.CurrentPhase != nil {
		sets = append(sets, "current_phase = "+arg(*u.CurrentPhase))
	}
	if u.TotalCommits != nil {
		sets = append(sets, "total_commits = "+arg(*u.TotalCommits))
	}
	if u.ProcessedCommits != nil {
		sets = append(sets, "processed_commits = "+arg(*u.ProcessedCommits))
	}
	if u.NewCommits != nil {
		sets = append(sets, "new_commits = "+arg(*u.NewCommits))
	}
	if u.SprintCommitsDone != nil {
		sets = append(sets, "sprint_commits_done = "+arg(*u.SprintCommitsDone))
	}
	if u.AppendError != nil {
		sets = append(sets, "errors = array_append(errors, "+arg(*u.AppendError)+")")
	}

	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf("UPDATE sync_sessions SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := s.pool.Exec(ctx, q, append([]any{id}, args...)...)
	return execExpectOne(tag, err, "update session progress %s", id)
}
