// Package auth resolves the identity of inbound requests: session tokens,
// API keys, or anonymous callers identified by IP.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"time"
)

// SessionCookie is the name of the HTTP-only cookie carrying the session token.
const SessionCookie = "auth_token"

// anonymousIP is the sentinel used when no forwarded-for header is present.
const anonymousIP = "anonymous"

// UserRecord is the minimal user shape the resolver needs.
type UserRecord struct {
	ID    string
	Email string
}

// APIKeyRecord is the minimal API-key shape the resolver needs.
type APIKeyRecord struct {
	ID        string
	UserID    string
	Prefix    string
	RateLimit int
	Active    bool
}

// UserStore looks up users for session-token resolution.
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*UserRecord, error)
}

// APIKeyStore looks up API keys by their lookup hash. TouchLastUsed is
// best-effort bookkeeping and must tolerate failure.
type APIKeyStore interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyRecord, error)
	TouchLastUsed(ctx context.Context, id string) error
}

// Resolver classifies inbound requests into exactly one Principal,
// trying the strongest evidence first.
type Resolver struct {
	codec *Codec
	users UserStore
	keys  APIKeyStore
}

// NewResolver creates a Resolver over the given token codec and stores.
func NewResolver(codec *Codec, users UserStore, keys APIKeyStore) *Resolver {
	return &Resolver{codec: codec, users: users, keys: keys}
}

// Resolve determines the caller's identity. It never fails: malformed or
// expired tokens fall through to the API-key check, and an unresolvable
// request is classified as anonymous.
func (rs *Resolver) Resolve(r *http.Request) Principal {
	ctx := r.Context()

	if raw := sessionToken(r); raw != "" {
		if payload, err := rs.codec.Verify(raw); err == nil && payload.Type == TokenTypeUser {
			u, err := rs.users.FindUserByID(ctx, payload.UserID)
			if err == nil && u != nil {
				return Principal{Kind: KindUser, UserID: u.ID, Email: u.Email}
			}
		}
	}

	if raw := r.Header.Get("X-API-Key"); raw != "" {
		key, err := rs.keys.FindByHash(ctx, HashAPIKey(raw))
		if err == nil && key != nil && key.Active {
			rs.touchLastUsed(key.ID)
			return Principal{
				Kind:      KindAPIKey,
				UserID:    key.UserID,
				APIKeyID:  key.ID,
				KeyPrefix: key.Prefix,
				RateLimit: key.RateLimit,
			}
		}
	}

	return Principal{Kind: KindAnonymous, IP: clientIP(r)}
}

// touchLastUsed records key usage in a detached goroutine. The result is
// discarded except for logging; resolution never waits on it.
func (rs *Resolver) touchLastUsed(keyID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.keys.TouchLastUsed(ctx, keyID); err != nil {
			log.Printf("auth: touch last_used for key %s: %v", keyID, err)
		}
	}()
}

// sessionToken extracts the raw token from the Authorization header,
// falling back to the session cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// clientIP extracts the caller IP from X-Forwarded-For, taking the first
// entry for proxied deployments.
func clientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return anonymousIP
	}
	if idx := strings.Index(xff, ","); idx != -1 {
		return strings.TrimSpace(xff[:idx])
	}
	return strings.TrimSpace(xff)
}

// HashAPIKey computes the hex-encoded SHA-256 lookup hash of a raw API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
