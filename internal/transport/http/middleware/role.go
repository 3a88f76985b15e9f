package middleware

import (
	"net/http"
)

// RequireRole returns middleware that allows access only to callers whose
// resolved role matches one of the provided role names. Guests only pass
// when domain.RoleGuest is listed explicitly.
func RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range allowedRoles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, "forbidden")
		})
	}
}

// BlockGuests rejects identified-but-unregistered callers. Mutating
// endpoints sit behind this even when no specific role is required.
func BlockGuests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if identity.Guest() {
			writeJSONError(w, http.StatusForbidden, "guests are not allowed for this action")
			return
		}
		next.ServeHTTP(w, r)
	})
}
