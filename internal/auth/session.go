// Package auth validates and mints the HS256 session cookies that identify
// the owner of every review session.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/redline/internal/sessions"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionIssuer is the issuer claim used when none is configured.
const DefaultSessionIssuer = "redline-auth"

var (
	ErrMissingSessionSigningKey = errors.New("auth: signing key required")
	ErrMissingSessionCookieName = errors.New("auth: cookie name required")
	ErrMissingSessionToken      = errors.New("auth: session token required")
	ErrInvalidSessionToken      = errors.New("auth: invalid session token")
	ErrExpiredSessionToken      = errors.New("auth: session token expired")
	ErrMissingSessionSubject    = errors.New("auth: session subject required")
)

// SessionClaims is the JWT payload carried by the session cookie. The
// subject is the owner of every document the session touches.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Session is a validated session cookie.
type Session struct {
	Owner     sessions.OwnerID
	Email     string
	ExpiresAt time.Time
}

// sessionKeys holds what issuing and validating have in common.
type sessionKeys struct {
	secret []byte
	issuer string
	clock  func() time.Time
}

func newSessionKeys(secret []byte, issuer string, clock func() time.Time) (sessionKeys, error) {
	if len(secret) == 0 {
		return sessionKeys{}, ErrMissingSessionSigningKey
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		issuer = DefaultSessionIssuer
	}
	if clock == nil {
		clock = time.Now
	}
	return sessionKeys{secret: append([]byte(nil), secret...), issuer: issuer, clock: clock}, nil
}

func (keys sessionKeys) sign(claims SessionClaims) (string, error) {
	claims.Issuer = keys.issuer
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(keys.secret)
}

func (keys sessionKeys) parse(raw string) (SessionClaims, error) {
	claims := SessionClaims{}
	parsed, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (interface{}, error) {
			return keys.secret, nil
		},
		jwt.WithTimeFunc(keys.clock),
		jwt.WithIssuer(keys.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrExpiredSessionToken
		}
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if !parsed.Valid {
		return SessionClaims{}, ErrInvalidSessionToken
	}
	return claims, nil
}
