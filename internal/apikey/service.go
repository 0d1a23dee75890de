package apikey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/pixedge/service/internal/auth"
)

// keyPrefixTag identifies keys issued by this service.
const keyPrefixTag = "px_"

// prefixLen is the number of leading characters kept for display ("px_" + 8).
const prefixLen = 11

// DefaultRateLimit is the per-minute upload allowance for keys created
// without an explicit limit.
const DefaultRateLimit = 100

// Service contains business logic for API key management.
type Service struct {
	repo *Repository
}

// NewService creates a new apikey Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Create mints a new API key for the user. The returned raw key is shown to
// the caller exactly once; only its hash is persisted.
func (s *Service) Create(ctx context.Context, userID, name string, rateLimit int) (raw string, key *Key, err error) {
	raw, err = generateKey()
	if err != nil {
		return "", nil, fmt.Errorf("generate api key: %w", err)
	}
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}

	key, err = s.repo.Create(ctx, userID, name, auth.HashAPIKey(raw), raw[:prefixLen], rateLimit)
	if err != nil {
		return "", nil, err
	}
	return raw, key, nil
}

// ListByUser returns the user's keys, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Key, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Revoke deactivates a key owned by the user.
func (s *Service) Revoke(ctx context.Context, id, userID string) error {
	return s.repo.Revoke(ctx, id, userID)
}

// generateKey returns "px_" followed by 64 hex characters of entropy.
func generateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return keyPrefixTag + hex.EncodeToString(buf), nil
}
