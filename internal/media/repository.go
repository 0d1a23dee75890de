// Package media persists and serves the metadata records uploads are
// retrieved by. Records live in the key-value store as hashes keyed by slug.
package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// recordKey prefixes media record hashes in the key-value store.
const recordKey = "snap:"

// Record is the stored metadata for one uploaded file.
type Record struct {
	ID        string `json:"id"`
	FileID    string `json:"file_id"`
	Backend   string `json:"backend"`
	UserID    string `json:"user_id,omitempty"`
	CreatedAt int64  `json:"created_at"` // unix milliseconds
	Views     int64  `json:"views"`
	Size      int64  `json:"size"`
	Type      string `json:"type"`
}

// Stats aggregates service-wide upload counters.
type Stats struct {
	TotalUploads int64 `json:"total_uploads"`
	WebUploads   int64 `json:"web_uploads"`
	Images       int64 `json:"images"`
	Videos       int64 `json:"videos"`
	PingMillis   int64 `json:"ping"`
}

// ErrNotFound is returned when no record exists under a slug.
var ErrNotFound = errors.New("media record not found")

// ErrAlreadyExists is returned when a record is already stored under the slug.
var ErrAlreadyExists = errors.New("media record already exists")

// ErrUnavailable is returned when no key-value store is configured.
var ErrUnavailable = errors.New("media store not configured")

// Repository handles media record persistence. client may be nil when the
// service runs without a key-value store; all operations then fail with
// ErrUnavailable.
type Repository struct {
	client *redis.Client
}

// NewRepository creates a Repository over the given Redis client.
func NewRepository(client *redis.Client) *Repository {
	return &Repository{client: client}
}

// Save persists a new record. The slug is reserved with a conditional write
// (HSETNX on the id field), so of two racing writers exactly one wins and
// the other observes ErrAlreadyExists.
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	if r.client == nil {
		return ErrUnavailable
	}

	key := recordKey + rec.ID
	ok, err := r.client.HSetNX(ctx, key, "id", rec.ID).Result()
	if err != nil {
		return fmt.Errorf("reserve record %q: %w", rec.ID, err)
	}
	if !ok {
		return ErrAlreadyExists
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"file_id":    rec.FileID,
		"backend":    rec.Backend,
		"user_id":    rec.UserID,
		"created_at": rec.CreatedAt,
		"views":      0,
		"size":       rec.Size,
		"type":       rec.Type,
	})
	pipe.Incr(ctx, "stats:total_uploads")
	pipe.Incr(ctx, "stats:web_uploads")
	if strings.HasPrefix(rec.Type, "video/") || rec.Type == "image/gif" {
		pipe.Incr(ctx, "stats:videos")
	} else {
		pipe.Incr(ctx, "stats:images")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save record %q: %w", rec.ID, err)
	}
	return nil
}

// Get fetches a record and bumps its view counter in a detached goroutine.
func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	if r.client == nil {
		return nil, ErrUnavailable
	}

	data, err := r.client.HGetAll(ctx, recordKey+id).Result()
	if err != nil {
		return nil, fmt.Errorf("get record %q: %w", id, err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.client.HIncrBy(bg, recordKey+id, "views", 1).Err(); err != nil {
			log.Printf("media: bump views for %s: %v", id, err)
		}
	}()

	return &Record{
		ID:        id,
		FileID:    data["file_id"],
		Backend:   data["backend"],
		UserID:    data["user_id"],
		CreatedAt: parseInt(data["created_at"]),
		Views:     parseInt(data["views"]) + 1,
		Size:      parseInt(data["size"]),
		Type:      data["type"],
	}, nil
}

// Exists reports whether a record is stored under the slug.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	if r.client == nil {
		return false, ErrUnavailable
	}
	n, err := r.client.Exists(ctx, recordKey+id).Result()
	if err != nil {
		return false, fmt.Errorf("check record %q: %w", id, err)
	}
	return n > 0, nil
}

// GetStats returns service-wide upload counters.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	if r.client == nil {
		return &Stats{}, nil
	}

	start := time.Now()
	pipe := r.client.Pipeline()
	total := pipe.Get(ctx, "stats:total_uploads")
	web := pipe.Get(ctx, "stats:web_uploads")
	images := pipe.Get(ctx, "stats:images")
	videos := pipe.Get(ctx, "stats:videos")
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	return &Stats{
		TotalUploads: parseInt(total.Val()),
		WebUploads:   parseInt(web.Val()),
		Images:       parseInt(images.Val()),
		Videos:       parseInt(videos.Val()),
		PingMillis:   time.Since(start).Milliseconds(),
	}, nil
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
