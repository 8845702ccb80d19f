package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/hms/pkg/jwtx"
)

// RevocationChecker reports whether a token ID has been revoked.
type RevocationChecker func(jti string) bool

// AuthnMiddleware verifies the bearer token and injects its claims. A nil
// revoked checker accepts every token the verifier accepts.
func AuthnMiddleware(v jwtx.Verifier, revoked RevocationChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := loggerFrom(r)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw)
			if err != nil {
				if errors.Is(err, jwtx.ErrExpired) {
					writeBearerError(w, "token expired")
					return
				}
				writeBearerError(w, "token verification failed")
				log.Warn("jwt verify failed", "err", err)
				return
			}

			if revoked != nil && revoked(claims.ID) {
				writeBearerError(w, "token revoked")
				return
			}

			// Inject into context for downstream handlers.
			ctx = contextWithAuth(ctx, claims, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, ErrCodeInvalidToken, desc)
}
