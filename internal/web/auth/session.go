// Package auth issues and validates the session tokens of the shell.
//
// A session records the backend user and the location chosen at login. It
// travels as an HS256 JWT in a cookie or a bearer header.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the session cookie.
const CookieName = "slotkit_session"

// ErrNoLocation is returned when a session has not selected a location yet.
var ErrNoLocation = errors.New("session has no location")

// Session is the state carried by a token.
type Session struct {
	User         string
	Location     string
	LocationName string
	ExpiresAt    time.Time
}

// HasLocation reports whether a location was selected.
func (s *Session) HasLocation() bool {
	return s != nil && s.Location != ""
}

type claims struct {
	Location     string `json:"loc,omitempty"`
	LocationName string `json:"loc_name,omitempty"`
	jwt.RegisteredClaims
}

// SessionService signs and verifies session tokens.
type SessionService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionService creates a service. The secret must not be empty.
func NewSessionService(secret string, ttl time.Duration) (*SessionService, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &SessionService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime of issued tokens.
func (s *SessionService) TTL() time.Duration { return s.ttl }

// Issue signs a token for sess. ExpiresAt is set from the service TTL.
func (s *SessionService) Issue(sess Session) (string, error) {
	if sess.User == "" {
		return "", errors.New("session user is required")
	}
	now := s.now()
	c := claims{
		Location:     sess.Location,
		LocationName: sess.LocationName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.User,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

// Parse validates token and returns its session.
func (s *SessionService) Parse(token string) (*Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	return &Session{
		User:         c.Subject,
		Location:     c.Location,
		LocationName: c.LocationName,
		ExpiresAt:    c.ExpiresAt.Time,
	}, nil
}

// SetCookie writes token as the session cookie.
func (s *SessionService) SetCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest returns the bearer token, or the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

type sessionKey struct{}

// WithSession stores sess in ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// FromContext returns the session stored in ctx, or nil.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey{}).(*Session)
	return sess
}
