package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
}

// minHS256SecretLen matches the HS256 output size.
const minHS256SecretLen = 32

// HS256Signer signs tokens with a shared HMAC secret. Only the development
// backend holds the secret; the SDK never verifies signatures.
type HS256Signer struct {
	secret []byte
}

// NewSignerHS256 creates an HS256 signer. Secrets shorter than 32 bytes are
// rejected.
func NewSignerHS256(secret []byte) (*HS256Signer, error) {
	if len(secret) < minHS256SecretLen {
		return nil, fmt.Errorf("jwtx: HS256 secret must be at least %d bytes", minHS256SecretLen)
	}
	return &HS256Signer{secret: secret}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Sign takes your claims and turns them into a signed JWT string.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	if claims.ExpiresAt == nil {
		return "", errors.New("jwtx: refusing to sign token without exp")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}
