package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/strob0t/sprintsync/internal/port/store"
)

// EnsureTeam inserts a bare team row if one does not already exist for id.
// The sync subsystem does not own team lifecycle; this exists only to
// satisfy the foreign keys repositories and sync_sessions carry, and to
// give the settings resolver somewhere to store its override JSON.
func (s *Store) EnsureTeam(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO teams (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return fmt.Errorf("ensure team %s: %w", id, err)
	}
	return nil
}

// TeamExists reports whether a team row has been created, either by a
// collaborating subsystem or by a prior EnsureTeam/UpdateTeamConfigs call.
func (s *Store) TeamExists(ctx context.Context, teamID string) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM teams WHERE id = $1)`, teamID)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check team exists %s: %w", teamID, err)
	}
	return exists, nil
}

// GetTeamConfigs returns a team's raw override JSON. A team with no row yet
// (never synced, never configured) yields three empty objects.
func (s *Store) GetTeamConfigs(ctx context.Context, teamID string) (store.TeamConfigs, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT analysis_config, workflow_config, metrics_config FROM teams WHERE id = $1`, teamID)

	var c store.TeamConfigs
	err := row.Scan(&c.Analysis, &c.Workflow, &c.Metrics)
	if err == nil {
		return c, nil
	}
	if err == pgx.ErrNoRows {
		return store.TeamConfigs{Analysis: []byte("{}"), Workflow: []byte("{}"), Metrics: []byte("{}")}, nil
	}
	return store.TeamConfigs{}, fmt.Errorf("get team configs %s: %w", teamID, err)
}

// UpdateTeamConfigs overwrites all three config blobs, creating the team
// row if it does not exist yet. A nil blob is stored as an empty object.
func (s *Store) UpdateTeamConfigs(ctx context.Context, teamID string, c store.TeamConfigs) error {
	if err := s.EnsureTeam(ctx, teamID); err != nil {
		return err
	}

	analysis, workflow, metrics := c.Analysis, c.Workflow, c.Metrics
	if analysis == nil {
		analysis = []byte("{}")
	}
	if workflow == nil {
		workflow = []byte("{}")
	}
	if metrics == nil {
		metrics = []byte("{}")
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE teams SET analysis_config = $2, workflow_config = $3, metrics_config = $4 WHERE id = $1`,
		teamID, analysis, workflow, metrics)
	if err != nil {
		return fmt.Errorf("update team configs %s: %w", teamID, err)
	}
	return nil
}
