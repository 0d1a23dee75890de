package auth

// Kind classifies how a request was authenticated.
type Kind int

const (
	// KindAnonymous marks an unauthenticated caller identified only by IP.
	KindAnonymous Kind = iota
	// KindUser marks a caller holding a valid session token.
	KindUser
	// KindAPIKey marks a caller presenting an active API key.
	KindAPIKey
)

// Principal is the resolved identity of a caller. Exactly one variant applies
// per request; it is derived fresh every time and never persisted.
type Principal struct {
	Kind Kind

	// IP is set for anonymous callers, taken from X-Forwarded-For
	// or the sentinel "anonymous" when absent.
	IP string

	// UserID is set for user sessions and API-key callers.
	UserID string
	// Email is set for user sessions.
	Email string

	// APIKeyID, KeyPrefix and RateLimit are set for API-key callers.
	APIKeyID  string
	KeyPrefix string
	RateLimit int
}

// Anonymous reports whether the principal carries no authenticated identity.
func (p Principal) Anonymous() bool {
	return p.Kind == KindAnonymous
}
