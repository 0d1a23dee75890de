package middleware

import (
	"context"
	"net/http"

	"github.com/pixedge/service/internal/auth"
	"github.com/pixedge/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// principalKey is the context key for the resolved request principal.
const principalKey contextKey = "principal"

// RequireAuth returns middleware that resolves the caller's identity and
// rejects anonymous requests with 401. The resolved principal is injected
// into the request context for downstream handlers.
func RequireAuth(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := resolver.Resolve(r)
			if p.Anonymous() {
				response.Unauthorized(w, "authentication required")
				return
			}
			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the principal injected by RequireAuth.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(auth.Principal)
	return p, ok
}
