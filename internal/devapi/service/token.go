package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/hms/pkg/jwtx"
)

// TokenService mints access tokens and decides when a caller gets a
// replacement. Rotation is implicit: any authenticated request made with a
// token inside the rotation window is answered with a fresh one.
type TokenService struct {
	Signer         jwtx.Signer
	Issuer         string
	AccessTTL      time.Duration
	RotationWindow time.Duration
	Revoked        *RevocationList

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Issue mints a token for u with a fresh jti and the full access TTL.
func (s *TokenService) Issue(u User) (string, error) {
	ttl := s.AccessTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}

	claims := jwtx.NewAccessClaims(u.ID, u.Username, u.Name, u.Role, ttl, s.Issuer, s.now())
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// ShouldRotate reports whether c has less than the rotation window left.
func (s *TokenService) ShouldRotate(c jwtx.Claims) bool {
	if c.ExpiresAt == nil {
		return false
	}
	window := s.RotationWindow
	if window <= 0 {
		window = jwtx.DefaultRotationWindow
	}
	return c.ExpiresAt.Sub(s.now()) < window
}

// Revoke blocks the token identified by c until it would have expired anyway.
func (s *TokenService) Revoke(c jwtx.Claims) {
	if c.ID == "" || c.ExpiresAt == nil {
		return
	}
	s.Revoked.Add(c.ID, c.ExpiresAt.Time)
}

// IsRevoked implements httpx.RevocationChecker.
func (s *TokenService) IsRevoked(jti string) bool {
	return s.Revoked.Contains(jti)
}

// RevocationList holds revoked token IDs until their expiry.
type RevocationList struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewRevocationList() *RevocationList {
	return &RevocationList{entries: make(map[string]time.Time)}
}

func (l *RevocationList) Add(jti string, expiresAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[jti] = expiresAt
}

func (l *RevocationList) Contains(jti string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[jti]
	return ok
}

func (l *RevocationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Prune drops entries whose token has expired and returns how many it removed.
func (l *RevocationList) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for jti, exp := range l.entries {
		if !exp.After(now) {
			delete(l.entries, jti)
			removed++
		}
	}
	return removed
}
