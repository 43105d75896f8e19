package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"delivery-dispatch/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Session is the verified identity behind a connection. It is only produced by Gatekeeper.
type Session struct {
	SubjectID string    `json:"subject_id"`
	Role      user.Role `json:"role"`
	Name      string    `json:"name,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session credential is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type AuthErrorKind string

const (
	AuthMissing AuthErrorKind = "missing"
	AuthInvalid AuthErrorKind = "invalid"
	AuthExpired AuthErrorKind = "expired"
)

var (
	ErrAuthMissing = errors.New("credential missing")
	ErrAuthInvalid = errors.New("credential invalid")
	ErrAuthExpired = errors.New("credential expired")
)

// AuthError is returned for every refused handshake. errors.Is matches the ErrAuth* sentinel of its kind.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	return target == e.sentinel()
}

// Code is the machine-readable reason sent back in auth_error frames.
func (e *AuthError) Code() string {
	return "auth_" + string(e.Kind)
}

func (e *AuthError) sentinel() error {
	switch e.Kind {
	case AuthMissing:
		return ErrAuthMissing
	case AuthExpired:
		return ErrAuthExpired
	default:
		return ErrAuthInvalid
	}
}

func authErr(kind AuthErrorKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

// Gatekeeper turns a presented credential into a Session.
type Gatekeeper struct {
	mgr *Manager
}

func NewGatekeeper(mgr *Manager) *Gatekeeper {
	return &Gatekeeper{mgr: mgr}
}

// Authenticate verifies "Bearer <jwt>" (or a bare token) and returns the session it asserts.
func (g *Gatekeeper) Authenticate(credential string) (*Session, error) {
	raw := strings.TrimSpace(credential)
	if scheme, rest, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "Bearer") {
		raw = strings.TrimSpace(rest)
	} else if strings.EqualFold(raw, "Bearer") {
		raw = ""
	}
	if raw == "" {
		return nil, authErr(AuthMissing, nil)
	}

	_, claims, err := g.mgr.ParseAndValidate(raw)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, authErr(AuthExpired, err)
		}
		return nil, authErr(AuthInvalid, err)
	}

	if !claims.Role.Valid() {
		return nil, authErr(AuthInvalid, user.ErrInvalidRole)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, authErr(AuthInvalid, ErrSubjectRequired)
	}

	s := &Session{
		SubjectID: claims.Subject,
		Role:      claims.Role,
		Name:      claims.Name,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}
