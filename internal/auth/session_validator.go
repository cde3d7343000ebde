package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/redline/internal/sessions"
)

// SessionValidatorConfig describes how to validate session cookies.
type SessionValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	CookieName    string
	Clock         func() time.Time
}

// SessionValidator turns a session cookie into the owner it speaks for.
type SessionValidator struct {
	keys       sessionKeys
	cookieName string
}

// NewSessionValidator constructs a validator with the provided configuration.
func NewSessionValidator(cfg SessionValidatorConfig) (*SessionValidator, error) {
	keys, err := newSessionKeys(cfg.SigningSecret, cfg.Issuer, cfg.Clock)
	if err != nil {
		return nil, err
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingSessionCookieName
	}
	return &SessionValidator{keys: keys, cookieName: cookieName}, nil
}

func (v *SessionValidator) CookieName() string {
	return v.cookieName
}

// ValidateToken checks the signature, issuer and expiry of token and
// resolves its subject to an owner.
func (v *SessionValidator) ValidateToken(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrMissingSessionToken
	}
	claims, err := v.keys.parse(token)
	if err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Session{}, ErrMissingSessionSubject
	}
	owner, err := sessions.NewOwnerID(claims.Subject)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidSessionToken, err)
	}
	session := Session{Owner: owner, Email: strings.TrimSpace(claims.Email)}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return session, nil
}

// ValidateRequest reads the configured cookie from r and validates it.
func (v *SessionValidator) ValidateRequest(r *http.Request) (Session, error) {
	if r == nil {
		return Session{}, ErrMissingSessionToken
	}
	cookie, err := r.Cookie(v.cookieName)
	if errors.Is(err, http.ErrNoCookie) || cookie == nil {
		return Session{}, ErrMissingSessionToken
	}
	return v.ValidateToken(cookie.Value)
}
