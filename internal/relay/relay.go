// Package relay assembles the sync service from configuration.
package relay

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/stravbit/internal/config"
	"example.com/stravbit/internal/credentials"
	"example.com/stravbit/internal/domain"
	"example.com/stravbit/internal/fitbit"
	"example.com/stravbit/internal/mapper"
	"example.com/stravbit/internal/persistence/postgres"
	"example.com/stravbit/internal/strava"
)

// NewService wires the credential provider, platform clients and mapper. When a token
// store URL is configured rotated refresh tokens go to Postgres; the returned close
// func releases the pool and is always safe to call.
func NewService(ctx context.Context, cfg config.Config, opts ...domain.Option) (*domain.Service, func(), error) {
	closer := func() {}

	var store credentials.Store = credentials.NewMemoryStore()
	if cfg.TokenStoreURL != "" {
		pool, err := pgxpool.New(ctx, cfg.TokenStoreURL)
		if err != nil {
			return nil, closer, fmt.Errorf("connect token store: %w", err)
		}
		tokens := postgres.NewTokenStore(pool)
		if err := tokens.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, closer, err
		}
		store = tokens
		closer = pool.Close
	}

	provider := credentials.NewProvider(cfg.Credentials, cfg.HTTPTimeout, credentials.WithStore(store))
	service := domain.NewService(
		provider,
		strava.NewClient(cfg.StravaAPIURL, cfg.HTTPTimeout),
		fitbit.NewClient(cfg.FitbitAPIURL, cfg.HTTPTimeout),
		mapper.MapActivity,
		opts...,
	)
	return service, closer, nil
}
