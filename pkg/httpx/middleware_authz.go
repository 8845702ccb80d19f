package httpx

import (
	"net/http"
	"strings"
)

// RequireRole the caller must hold one of the provided roles.
func RequireRole(roles ...string) Middleware {
	want := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		want[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := want[roleFromCtx(r.Context())]; ok {
				next.ServeHTTP(w, r)
				return
			}

			WriteError(w, http.StatusForbidden, ErrCodeForbidden,
				"requires role: "+strings.Join(roles, " or "))
		})
	}
}
