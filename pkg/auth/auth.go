// Package auth verifies the bearer credentials presented when a WebSocket
// connection is opened. Token issuance lives in the REST service; this side
// only needs to validate HS256 access tokens and extract the subject.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers expired, malformed, or badly signed tokens.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrWrongTokenType indicates a refresh token was presented where an
	// access token is required.
	ErrWrongTokenType = errors.New("not an access token")
)

// accessClaims is the claim set issued by the auth service. The type claim
// distinguishes short-lived access tokens from long-lived refresh tokens.
type accessClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type,omitempty"`
}

// Verifier validates access tokens against a shared HS256 secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyAccessToken validates the token and returns its subject (the
// username). Refresh tokens are rejected even when validly signed.
func (v *Verifier) VerifyAccessToken(token string) (string, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", ErrInvalidToken
	}

	if claims.TokenType == "refresh" {
		return "", ErrWrongTokenType
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// SignAccessToken issues a short-lived access token for username. The server
// never issues tokens in production; this exists for tooling and tests.
func SignAccessToken(secret, username string, ttl time.Duration) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		TokenType: "access",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// SignRefreshToken issues a refresh token. Used only to verify that refresh
// tokens are refused on the realtime endpoints.
func SignRefreshToken(secret, username string, ttl time.Duration) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		TokenType: "refresh",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
