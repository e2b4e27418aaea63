package credentials

import (
	"context"
	"sync"

	"example.com/stravbit/internal/domain"
)

// Store persists the latest refresh token per platform. Fitbit rotates its refresh
// token on every exchange, so a run that does not save the new one strands the next run.
type Store interface {
	// Load returns the stored refresh token, or "" when none has been saved.
	Load(ctx context.Context, platform domain.Platform) (string, error)
	Save(ctx context.Context, platform domain.Platform, refreshToken string) error
}

// MemoryStore keeps refresh tokens for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[domain.Platform]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[domain.Platform]string)}
}

// Load returns the token saved for platform.
func (s *MemoryStore) Load(_ context.Context, platform domain.Platform) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[platform], nil
}

// Save replaces the token saved for platform.
func (s *MemoryStore) Save(_ context.Context, platform domain.Platform, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[platform] = refreshToken
	return nil
}
