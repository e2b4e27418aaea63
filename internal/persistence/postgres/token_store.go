// Package postgres persists rotated OAuth refresh tokens.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/stravbit/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS platform_tokens (
    platform      TEXT PRIMARY KEY,
    refresh_token TEXT NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// TokenStore keeps the latest refresh token per platform in Postgres.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// EnsureSchema creates the token table when it does not exist.
func (s *TokenStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create platform_tokens: %w", err)
	}
	return nil
}

// Load returns the stored refresh token, or "" when none has been saved.
func (s *TokenStore) Load(ctx context.Context, platform domain.Platform) (string, error) {
	var token string
	err := s.pool.QueryRow(ctx,
		`SELECT refresh_token FROM platform_tokens WHERE platform=$1`, string(platform),
	).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

// Save upserts the refresh token for platform.
func (s *TokenStore) Save(ctx context.Context, platform domain.Platform, refreshToken string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO platform_tokens (platform, refresh_token, updated_at)
         VALUES ($1, $2, NOW())
         ON CONFLICT (platform) DO UPDATE SET refresh_token = EXCLUDED.refresh_token, updated_at = NOW()`,
		string(platform), refreshToken,
	)
	return err
}
