// Package apikey manages API keys: opaque bearer credentials with
// per-key rate limits, stored as SHA-256 hashes.
package apikey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Key represents an API key record. The raw key material is never stored;
// only its lookup hash and a display prefix survive creation.
type Key struct {
	ID        string     `json:"id"`
	UserID    string     `json:"-"`
	Name      string     `json:"name"`
	KeyHash   string     `json:"-"`
	Prefix    string     `json:"prefix"`
	RateLimit int        `json:"rate_limit"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
}

// ErrNotFound is returned when an API key does not exist.
var ErrNotFound = errors.New("api key not found")

// Repository handles API key database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new API key record and returns it.
func (r *Repository) Create(ctx context.Context, userID, name, keyHash, prefix string, rateLimit int) (*Key, error) {
	k := &Key{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO api_keys (user_id, name, key_hash, prefix, rate_limit)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, user_id, name, key_hash, prefix, rate_limit, is_active, created_at, last_used`,
		userID, name, keyHash, prefix, rateLimit,
	).Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.Prefix, &k.RateLimit, &k.IsActive, &k.CreatedAt, &k.LastUsed)
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	return k, nil
}

// GetByHash fetches a key record by its SHA-256 lookup hash.
func (r *Repository) GetByHash(ctx context.Context, hash string) (*Key, error) {
	k := &Key{}
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, name, key_hash, prefix, rate_limit, is_active, created_at, last_used
		 FROM api_keys WHERE key_hash = $1`,
		hash,
	).Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.Prefix, &k.RateLimit, &k.IsActive, &k.CreatedAt, &k.LastUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return k, nil
}

// ListByUser returns all keys belonging to the user, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]*Key, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, name, key_hash, prefix, rate_limit, is_active, created_at, last_used
		 FROM api_keys WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*Key
	for rows.Next() {
		k := &Key{}
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.Prefix, &k.RateLimit, &k.IsActive, &k.CreatedAt, &k.LastUsed); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke deactivates a key owned by the user. Returns ErrNotFound when no
// matching active key exists.
func (r *Repository) Revoke(ctx context.Context, id, userID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE api_keys SET is_active = FALSE WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastUsed records the current time as the key's last use.
func (r *Repository) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE api_keys SET last_used = NOW() WHERE id = $1`,
		id,
	)
	return err
}
