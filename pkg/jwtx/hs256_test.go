package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/hms/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestHS256SignAndVerify(t *testing.T) {
	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)
	require.Equal(t, "HS256", signer.Alg())

	verifier := jwtx.NewVerifierHS256(testSecret, "hms-api")

	t.Run("round trip", func(t *testing.T) {
		claims := jwtx.NewAccessClaims("u-1", "amina", "Amina", "doctor", time.Hour, "hms-api", time.Now())
		tok, err := signer.Sign(claims)
		require.NoError(t, err)
		require.Len(t, strings.Split(tok, "."), 3)

		got, err := verifier.Verify(tok)
		require.NoError(t, err)
		require.Equal(t, "amina", got.Username)
		require.Equal(t, claims.ID, got.ID)
	})

	t.Run("expired", func(t *testing.T) {
		claims := jwtx.NewAccessClaims("u-1", "amina", "Amina", "doctor", time.Hour, "hms-api", time.Now().Add(-2*time.Hour))
		tok, err := signer.Sign(claims)
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := jwtx.NewAccessClaims("u-1", "amina", "Amina", "doctor", time.Hour, "other", time.Now())
		tok, err := signer.Sign(claims)
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("tampered signature", func(t *testing.T) {
		claims := jwtx.NewAccessClaims("u-1", "amina", "Amina", "doctor", time.Hour, "hms-api", time.Now())
		tok, err := signer.Sign(claims)
		require.NoError(t, err)

		other := jwtx.NewVerifierHS256([]byte("ffffffffffffffffffffffffffffffff"), "hms-api")
		_, err = other.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("refuses claims without exp", func(t *testing.T) {
		_, err := signer.Sign(jwtx.Claims{Username: "amina"})
		require.Error(t, err)
	})
}

func TestNewSignerHS256ShortSecret(t *testing.T) {
	_, err := jwtx.NewSignerHS256([]byte("short"))
	require.Error(t, err)
}
