package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/agrimarket/negotiation-api/internal/domain"
	jwtinfra "github.com/agrimarket/negotiation-api/internal/infrastructure/jwt"
)

type contextKey string

const identityKey contextKey = "identity"

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// Auth returns middleware that validates the Bearer JWT, resolves the
// caller's directory record, and injects the identity into context.
// Guest tokens have no directory record and skip the lookup.
func Auth(provider *jwtinfra.Provider, users userStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := provider.Verify(tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			var identity domain.Identity
			if claims.Role == domain.RoleGuest {
				identity = domain.GuestIdentity(claims.UserID)
			} else {
				u, err := users.Get(r.Context(), claims.UserID)
				if err != nil {
					writeJSONError(w, http.StatusUnauthorized, "user not found")
					return
				}
				identity = domain.AuthenticatedIdentity(u)
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext extracts the caller identity from the request context.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}
