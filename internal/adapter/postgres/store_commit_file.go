package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/strob0t/sprintsync/internal/domain/sync"
)

// BulkCreateCommitFiles inserts every file in one round trip via a batched
// multi-row INSERT. No-op on an empty list.
func (s *Store) BulkCreateCommitFiles(ctx context.Context, commitID string, files []sync.CommitFile) error {
	if len(files) == 0 {
		return nil
	}

	q := `INSERT INTO commit_files (id, commit_id, path, additions, deletions, changes, language, patch) VALUES `
	args := make([]any, 0, len(files)*8)
	for i, f := range files {
		if i > 0 {
			q += ", "
		}
		base := len(args)
		q += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		args = append(args, id, commitID, f.Path, f.Additions, f.Deletions, f.Changes, f.Language, f.Patch)
	}

	if _, err := s.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("bulk create commit files for commit %s: %w", commitID, err)
	}
	return nil
}

// DeleteCommitFilesByCommitID clears a commit's file rows ahead of a re-run.
func (s *Store) DeleteCommitFilesByCommitID(ctx context.Context, commitID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM commit_files WHERE commit_id = $1`, commitID); err != nil {
		return fmt.Errorf("delete commit files for commit %s: %w", commitID, err)
	}
	return nil
}

// GetCommitFiles returns every file changed by a commit.
func (s *Store) GetCommitFiles(ctx context.Context, commitID string) ([]sync.CommitFile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, commit_id, path, additions, deletions, changes, language, patch
		 FROM commit_files WHERE commit_id = $1 ORDER BY path`, commitID)
	if err != nil {
		return nil, fmt.Errorf("list commit files for commit %s: %w", commitID, err)
	}
	defer rows.Close()

	var out []sync.CommitFile
	for rows.Next() {
		var f sync.CommitFile
		if err := rows.Scan(&f.ID, &f.CommitID, &f.Path, &f.Additions, &f.Deletions, &f.Changes, &f.Language, &f.Patch); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return orEmpty(out), rows.Err()
}
