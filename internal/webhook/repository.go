// Package webhook manages user-registered webhooks and their best-effort
// delivery on upload events.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Webhook is a user-registered delivery target.
type Webhook struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    *string   `json:"-"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound is returned when a webhook does not exist.
var ErrNotFound = errors.New("webhook not found")

// Repository handles webhook database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new webhook and returns the created record.
func (r *Repository) Create(ctx context.Context, userID, url string, events []string, secret *string) (*Webhook, error) {
	wh := &Webhook{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO webhooks (user_id, url, events, secret)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, url, events, secret, is_active, created_at`,
		userID, url, events, secret,
	).Scan(&wh.ID, &wh.UserID, &wh.URL, &wh.Events, &wh.Secret, &wh.IsActive, &wh.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	return wh, nil
}

// ListByUser returns all webhooks belonging to the user, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]*Webhook, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, url, events, secret, is_active, created_at
		 FROM webhooks WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var hooks []*Webhook
	for rows.Next() {
		wh := &Webhook{}
		if err := rows.Scan(&wh.ID, &wh.UserID, &wh.URL, &wh.Events, &wh.Secret, &wh.IsActive, &wh.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		hooks = append(hooks, wh)
	}
	return hooks, rows.Err()
}

// Delete removes a webhook owned by the user.
func (r *Repository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM webhooks WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
