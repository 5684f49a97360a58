// Package postgres implements the sync subsystem's persistence ports
// (internal/port/store) against PostgreSQL via pgx.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements the sync and session store ports using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
