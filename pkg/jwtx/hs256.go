package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is anything that can mint access tokens.
type Signer interface {
	Sign(Claims) (string, error)
}

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// HS256 signs and verifies tokens with a shared secret. Only the fake
// backend used in tests and demos mints tokens, real clients never hold
// the secret.
type HS256 struct {
	secret []byte
	issuer string

	// Now is the clock used for exp/nbf checks, swap it in tests.
	Now func() time.Time
}

// NewHS256 returns a signer/verifier pair bound to secret and issuer.
func NewHS256(secret []byte, issuer string) (*HS256, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwtx: hs256 secret must be at least 16 bytes")
	}
	return &HS256{secret: secret, issuer: issuer, Now: time.Now}, nil
}

func (h *HS256) Sign(c Claims) (string, error) {
	if c.Issuer == "" {
		c.Issuer = h.issuer
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

func (h *HS256) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// exp/nbf are checked below against our own clock.
		jwt.WithoutClaimsValidation(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Claims{}, ErrInvalidSig
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := claims.ValidateIssuer(h.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(h.Now()); err != nil {
		return Claims{}, err
	}
	if claims.Subject == "" {
		return Claims{}, ErrInvalidClaim
	}

	return claims, nil
}

// ParseUnverified decodes claims without checking the signature. Clients use
// it to read the subject and expiry of their own access token; never use it
// to make authorization decisions.
func ParseUnverified(tokenStr string) (Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}
