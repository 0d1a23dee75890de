// Package slug allocates the short URL-safe identifiers media records are
// stored under: either a random opaque ID or a validated caller-supplied
// vanity slug.
package slug

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	minLen = 2
	maxLen = 32

	// randomIDLen is the length of generated opaque IDs.
	randomIDLen = 8
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// reserved slugs collide with routing or product surfaces and are never
// assignable.
var reserved = map[string]bool{
	"api":       true,
	"admin":     true,
	"dashboard": true,
	"login":     true,
	"docs":      true,
	"upload":    true,
	"i":         true,
	"static":    true,
}

// ErrInvalidCustomID is returned when a custom ID normalizes to something
// unusable: empty, out of bounds, or reserved.
var ErrInvalidCustomID = errors.New("invalid custom id")

// TakenError is returned when a custom slug is already in use. Suggestions
// carries three alternatives derived from the rejected base.
type TakenError struct {
	Slug        string
	Suggestions []string
}

func (e *TakenError) Error() string {
	return fmt.Sprintf("slug %q is already taken", e.Slug)
}

// ExistenceChecker answers whether a record already exists under a slug.
type ExistenceChecker interface {
	Exists(ctx context.Context, slug string) (bool, error)
}

// Allocator produces valid, collision-free storage keys for new uploads.
// It never writes; reservation is the caller's responsibility.
type Allocator struct {
	records ExistenceChecker
}

// NewAllocator creates an Allocator over the given record store.
func NewAllocator(records ExistenceChecker) *Allocator {
	return &Allocator{records: records}
}

// Allocate resolves the final storage key for an upload. An empty customID
// yields a random opaque ID with no uniqueness check; the entropy of the
// generator carries the residual collision risk on that path. A non-empty
// customID is normalized, validated, and checked for collisions.
func (a *Allocator) Allocate(ctx context.Context, customID string) (string, error) {
	if strings.TrimSpace(customID) == "" {
		return RandomID()
	}

	s := Normalize(customID)
	if err := Validate(s); err != nil {
		return "", err
	}

	exists, err := a.records.Exists(ctx, s)
	if err != nil {
		return "", fmt.Errorf("check slug existence: %w", err)
	}
	if exists {
		return "", &TakenError{Slug: s, Suggestions: Suggestions(s)}
	}

	return s, nil
}

// Normalize lowercases, trims, collapses whitespace runs to single hyphens,
// strips everything outside [a-z0-9-], collapses repeated hyphens, and trims
// leading/trailing hyphens. It is idempotent.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if !inSpace {
				b.WriteByte('-')
				inSpace = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-':
			b.WriteRune(r)
			inSpace = false
		default:
			inSpace = false
		}
	}

	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}

// Validate checks a normalized slug against length bounds and the reserved
// set. It returns ErrInvalidCustomID on any violation.
func Validate(s string) error {
	if len(s) < minLen {
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidCustomID, minLen)
	}
	if len(s) > maxLen {
		return fmt.Errorf("%w: must be at most %d characters", ErrInvalidCustomID, maxLen)
	}
	if reserved[s] {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidCustomID, s)
	}
	return nil
}

// Suggestions derives three alternative slugs from a taken base:
// a base36 timestamp suffix, a 3-character random suffix, and a numeric tail.
func Suggestions(base string) []string {
	return []string{
		base + "-" + strconv.FormatInt(time.Now().Unix(), 36),
		base + "-" + randomChars(3),
		base + strconv.FormatInt(randomBelow(1000), 10),
	}
}

// RandomID generates an 8-character base36 opaque identifier.
func RandomID() (string, error) {
	buf := make([]byte, randomIDLen)
	max := big.NewInt(int64(len(base36)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate id: %w", err)
		}
		buf[i] = base36[n.Int64()]
	}
	return string(buf), nil
}

func randomChars(n int) string {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(base36)))
	for i := range buf {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			buf[i] = 'x'
			continue
		}
		buf[i] = base36[v.Int64()]
	}
	return string(buf)
}

func randomBelow(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}
