package httpx

import (
	"net/http"
)

// RequireRole the caller's role claim must be one of the provided roles.
// Must run after AuthnMiddleware.
func RequireRole(allowed ...string) Middleware {
	want := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		want[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := want[RoleFromContext(r.Context())]; !ok {
				WriteMessage(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
