package http

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/hms/internal/devapi/service"
	"github.com/aussiebroadwan/hms/pkg/cryptox"
	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/aussiebroadwan/hms/pkg/httpx"
	"github.com/aussiebroadwan/hms/pkg/slogx"
)

type ctxKey string

const ctxKeyRotated ctxKey = "rotated_token"

// rotatedFromContext returns the replacement token issued for this request.
func rotatedFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRotated).(string); ok {
		return v
	}
	return ""
}

// RotateToken issues a replacement token when the caller's token is inside
// the rotation window. The replacement goes out in the X-New-Token header
// and is made available to handlers that also return it in the body.
// Must run after httpx.AuthnMiddleware.
func RotateToken(tokens *service.TokenService, metrics *Metrics) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := httpx.ClaimsFromContext(r.Context())
			if !ok || !tokens.ShouldRotate(claims) {
				next.ServeHTTP(w, r)
				return
			}

			log := slogx.FromContext(r.Context())
			rotated, err := tokens.Issue(service.User{
				ID:       claims.Subject,
				Username: claims.Username,
				Name:     claims.Name,
				Role:     claims.Role,
			})
			if err != nil {
				// The old token is still valid; the next request tries again.
				log.Error("token rotation failed", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			metrics.tokenIssued(issueReasonRotation)
			log.Info("token rotated",
				"user_id", claims.Subject,
				"old", cryptox.Fingerprint(httpx.TokenFromContext(r.Context())),
				"new", cryptox.Fingerprint(rotated),
			)

			w.Header().Set(hmssdk.RotatedTokenHeader, rotated)
			ctx := context.WithValue(r.Context(), ctxKeyRotated, rotated)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
