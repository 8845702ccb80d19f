package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Inspect decodes the payload of a JWT-shaped string WITHOUT verifying the
// signature. Clients only hold the token, they never have the key, so this
// is purely for scheduling decisions (when to refresh) and display.
//
// A token is malformed when it does not have three dot-separated segments,
// a segment is not base64url, or the header/payload is not JSON. A token
// with a well-formed payload but no exp claim returns ErrMissingExpiry.
func Inspect(token string) (*Claims, error) {
	parser := jwt.NewParser()

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// An unknown alg only means we could not verify it, which we never do.
		if !errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	if claims.ExpiresAt == nil {
		return nil, ErrMissingExpiry
	}

	return claims, nil
}

// IsExpired reports whether token is expired at now. Anything that cannot be
// inspected counts as expired.
func IsExpired(token string, now time.Time) bool {
	claims, err := Inspect(token)
	if err != nil {
		return true
	}
	return !now.Before(claims.ExpiresAt.Time)
}

// TimeUntilExpiration returns max(0, exp-now), truncated to whole seconds
// like the exp claim itself. Malformed tokens return 0.
func TimeUntilExpiration(token string, now time.Time) time.Duration {
	claims, err := Inspect(token)
	if err != nil {
		return 0
	}
	return claims.Remaining(now).Truncate(time.Second)
}
