package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/strob0t/sprintsync/internal/domain/sync"
)

func scanContributor(row scannable) (sync.Contributor, error) {
	var c sync.Contributor
	if err := row.Scan(
		&c.ID, &c.Provider, &c.ExternalID, &c.Login, &c.Name, &c.Email, &c.AvatarURL,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return sync.Contributor{}, err
	}
	return c, nil
}

// GetContributor fetches a contributor by id.
func (s *Store) GetContributor(ctx context.Context, id string) (sync.Contributor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, provider, external_id, login, name, email, avatar_url, created_at, updated_at
		 FROM contributors WHERE id = $1`, id)

	c, err := scanContributor(row)
	if err != nil {
		return sync.Contributor{}, notFoundWrap(err, "get contributor %s", id)
	}
	return c, nil
}

// GetOrCreateContributor looks up a contributor by (provider, external_id)
// and creates it if missing, refreshing login/name/email/avatar on an
// existing row so a renamed account stays current.
func (s *Store) GetOrCreateContributor(ctx context.Context, c sync.Contributor) (sync.Contributor, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, provider, external_id, login, name, email, avatar_url, created_at, updated_at
		 FROM contributors WHERE provider = $1 AND external_id = $2`,
		c.Provider, c.ExternalID)

	existing, err := scanContributor(row)
	if err == nil {
		if existing.Login != c.Login || existing.Name != c.Name || existing.Email != c.Email || existing.AvatarURL != c.AvatarURL {
			tag, err := s.pool.Exec(ctx,
				`UPDATE contributors SET login = $2, name = $3, email = $4, avatar_url = $5, updated_at = now()
				 WHERE id = $1`,
				existing.ID, c.Login, c.Name, c.Email, c.AvatarURL)
			if err := execExpectOne(tag, err, "refresh contributor %s", existing.ID); err != nil {
				return sync.Contributor{}, false, err
			}
			existing.Login, existing.Name, existing.Email, existing.AvatarURL = c.Login, c.Name, c.Email, c.AvatarURL
		}
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return sync.Contributor{}, false, fmt.Errorf("lookup contributor %s/%s: %w", c.Provider, c.ExternalID, err)
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	row = s.pool.QueryRow(ctx,
		`INSERT INTO contributors (id, provider, external_id, login, name, email, avatar_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (provider, external_id) DO UPDATE SET login = EXCLUDED.login
		 RETURNING id, provider, external_id, login, name, email, avatar_url, created_at, updated_at`,
		c.ID, c.Provider, c.ExternalID, c.Login, c.Name, c.Email, c.AvatarURL)

	created, err := scanContributor(row)
	if err != nil {
		return sync.Contributor{}, false, fmt.Errorf("create contributor %s/%s: %w", c.Provider, c.ExternalID, err)
	}
	return created, created.ID == c.ID, nil
}
