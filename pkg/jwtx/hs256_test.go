package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/aula/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestHS256RoundTrip(t *testing.T) {
	t.Parallel()

	h, err := jwtx.NewHS256(testSecret, "aula-test")
	require.NoError(t, err)

	now := time.Now()
	tok, err := h.Sign(jwtx.NewAccessClaims("u1", "student", "Ana", "", time.Minute, now))
	require.NoError(t, err)

	claims, err := h.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)
	require.Equal(t, "student", claims.Role)
	require.Equal(t, "aula-test", claims.Issuer)
}

func TestHS256RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := jwtx.NewHS256([]byte("short"), "x")
	require.Error(t, err)
}

func TestHS256Verify(t *testing.T) {
	t.Parallel()

	h, err := jwtx.NewHS256(testSecret, "aula-test")
	require.NoError(t, err)
	now := time.Now()

	t.Run("expired", func(t *testing.T) {
		tok, err := h.Sign(jwtx.NewAccessClaims("u1", "admin", "", "", time.Minute, now.Add(-time.Hour)))
		require.NoError(t, err)

		_, err = h.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := jwtx.NewHS256([]byte("ffffffffffffffffffffffffffffffff"), "aula-test")
		require.NoError(t, err)
		tok, err := other.Sign(jwtx.NewAccessClaims("u1", "admin", "", "", time.Minute, now))
		require.NoError(t, err)

		_, err = h.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		tok, err := h.Sign(jwtx.NewAccessClaims("u1", "admin", "", "someone-else", time.Minute, now))
		require.NoError(t, err)

		_, err = h.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := h.Verify("not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestParseUnverified(t *testing.T) {
	t.Parallel()

	h, err := jwtx.NewHS256(testSecret, "aula-test")
	require.NoError(t, err)

	now := time.Now()
	tok, err := h.Sign(jwtx.NewAccessClaims("u9", "teacher", "Profe", "", 5*time.Minute, now))
	require.NoError(t, err)

	claims, err := jwtx.ParseUnverified(tok)
	require.NoError(t, err)
	require.Equal(t, "u9", claims.Subject)
	require.InDelta(t, (5 * time.Minute).Seconds(), claims.ExpiresIn(now).Seconds(), 1)

	_, err = jwtx.ParseUnverified(strings.Repeat("x", 10))
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}
