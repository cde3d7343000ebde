package auth

import (
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/redline/internal/sessions"
	"github.com/golang-jwt/jwt/v5"
)

const defaultSessionTTL = 12 * time.Hour

// SessionIssuerConfig configures the session issuer.
type SessionIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	TTL           time.Duration
	Clock         func() time.Time
}

// SessionIssuer mints session cookies accepted by SessionValidator. The
// server never issues sessions itself; the issuer backs the token command
// and local tooling.
type SessionIssuer struct {
	keys sessionKeys
	ttl  time.Duration
}

// NewSessionIssuer constructs a SessionIssuer.
func NewSessionIssuer(cfg SessionIssuerConfig) (*SessionIssuer, error) {
	keys, err := newSessionKeys(cfg.SigningSecret, cfg.Issuer, cfg.Clock)
	if err != nil {
		return nil, err
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionIssuer{keys: keys, ttl: ttl}, nil
}

// Issue signs a session for owner and returns it with its expiry.
func (i *SessionIssuer) Issue(owner sessions.OwnerID, email string) (string, time.Time, error) {
	if owner == "" {
		return "", time.Time{}, ErrMissingSessionSubject
	}

	now := i.keys.clock().UTC()
	expiresAt := now.Add(i.ttl)
	signed, err := i.keys.sign(SessionClaims{
		Email: strings.TrimSpace(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
