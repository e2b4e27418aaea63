// Package credentials exchanges refresh tokens for short-lived access tokens on
// both platforms and keeps rotated refresh tokens for the next run.
package credentials

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"example.com/stravbit/internal/config"
	"example.com/stravbit/internal/domain"
	"example.com/stravbit/internal/observability"
)

// Option configures optional behaviour for the Provider.
type Option func(*Provider)

// WithStore persists rotated refresh tokens and prefers them over configured ones.
func WithStore(store Store) Option {
	return func(p *Provider) {
		p.store = store
	}
}

// WithHTTPClient overrides the client used for token requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// Provider implements domain.TokenProvider for Strava and Fitbit.
type Provider struct {
	clients    map[domain.Platform]config.OAuthClient
	httpClient *http.Client
	store      Store
	validate   *validator.Validate
	logger     *log.Logger
	now        func() time.Time
}

// NewProvider constructs a Provider from explicitly injected credentials.
func NewProvider(creds config.Credentials, timeout time.Duration, opts ...Option) *Provider {
	p := &Provider{
		clients: map[domain.Platform]config.OAuthClient{
			domain.PlatformStrava: creds.Strava,
			domain.PlatformFitbit: creds.Fitbit,
		},
		httpClient: &http.Client{Timeout: timeout},
		store:      NewMemoryStore(),
		validate:   validator.New(),
		logger:     log.New(log.Writer(), "[credentials] ", log.LstdFlags|log.Lmsgprefix),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RefreshAccessToken exchanges the platform's refresh token for a new access token.
// Missing credentials fail before any request is sent.
func (p *Provider) RefreshAccessToken(ctx context.Context, platform domain.Platform) (domain.AccessToken, error) {
	client, err := p.resolveClient(ctx, platform)
	if err != nil {
		return domain.AccessToken{}, err
	}

	var token domain.AccessToken
	switch platform {
	case domain.PlatformStrava:
		token, err = p.refreshStrava(ctx, client)
	case domain.PlatformFitbit:
		token, err = p.refreshFitbit(ctx, client)
	default:
		return domain.AccessToken{}, domain.ConfigurationError(fmt.Sprintf("unknown platform %q", platform), nil)
	}
	observability.RecordTokenRefresh(string(platform), err)
	if err != nil {
		p.logger.Printf("token refresh failed (platform=%s): %v", platform, err)
		return domain.AccessToken{}, err
	}

	token.Platform = platform
	p.persistRotation(ctx, platform, client.RefreshToken, token.RefreshToken)
	return token, nil
}

// resolveClient merges the stored refresh token over the configured one and
// checks that all three credentials are present.
func (p *Provider) resolveClient(ctx context.Context, platform domain.Platform) (config.OAuthClient, error) {
	client, ok := p.clients[platform]
	if !ok {
		return config.OAuthClient{}, domain.ConfigurationError(fmt.Sprintf("unknown platform %q", platform), nil)
	}

	if p.store != nil {
		stored, err := p.store.Load(ctx, platform)
		if err != nil {
			p.logger.Printf("token store load failed, using configured token (platform=%s): %v", platform, err)
		} else if stored != "" {
			client.RefreshToken = stored
		}
	}

	if err := p.validate.Struct(client); err != nil {
		return config.OAuthClient{}, domain.ConfigurationError(
			fmt.Sprintf("missing %s credentials", platform),
			fmt.Errorf("%w: %v", domain.ErrMissingCredentials, err),
		)
	}
	return client, nil
}

func (p *Provider) persistRotation(ctx context.Context, platform domain.Platform, previous, next string) {
	if p.store == nil || next == "" || next == previous {
		return
	}
	// The upstream exchange already happened; the new token must be kept even if
	// the caller has given up.
	if err := p.store.Save(context.WithoutCancel(ctx), platform, next); err != nil {
		p.logger.Printf("failed to persist rotated refresh token (platform=%s): %v", platform, err)
		return
	}
	p.logger.Printf("persisted rotated refresh token (platform=%s)", platform)
}
