package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinician-console/internal/credential"
)

// Store persists the credential in postgres, for consoles that run on a
// shared host rather than a personal machine.
type Store struct {
	pool *pgxpool.Pool
	key  string
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, key: credential.Key}
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS client_state (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

func (s *Store) Load(ctx context.Context) (string, error) {
	var v string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM client_state WHERE key = $1`, s.key,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", credential.ErrNotFound
	}
	return v, err
}

// Save upserts; the key column is the primary key so there is never more than one row.
func (s *Store) Save(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO client_state (key, value) VALUES ($1,$2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		s.key, token,
	)
	return err
}

func (s *Store) Delete(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM client_state WHERE key = $1`, s.key)
	return err
}
