package middleware

import (
	"net/http"
	"slices"
)

// RequireRole returns middleware that checks the authenticated principal
// carries at least one of the allowed roles. It must be chained after Auth.
//
// Returns 401 Unauthorized when no principal is in context and 403 Forbidden
// when none of its roles match. Property-level checks still happen in the
// services; this only fences off whole route groups.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, `{"title":"Unauthorized","status":401,"detail":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			if !slices.ContainsFunc(roles, p.HasRole) {
				http.Error(w, `{"title":"Forbidden","status":403,"detail":"insufficient permissions"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
