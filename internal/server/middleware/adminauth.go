// Package middleware gates the admin surface. Two interchangeable
// schemes exist: a shared-secret bearer token and a server-issued
// cookie session. A deployment picks one; both report the surface
// disabled when no admin key is configured.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrDisabled means no admin key is configured: the admin surface
	// reports itself not found rather than unauthorized, so operators can
	// tell "feature off" from "wrong credential".
	ErrDisabled = errors.New("admin surface disabled")

	// ErrUnauthorized means a key is configured but the credential did
	// not match.
	ErrUnauthorized = errors.New("unauthorized")
)

// minAdminKeyLen guards against trivially guessable admin keys; shorter
// keys leave the surface disabled.
const minAdminKeyLen = 11

// SessionCookieName holds the admin session token on the cookie scheme.
const SessionCookieName = "admin_session"

// Authenticator validates an operator credential on a request.
type Authenticator interface {
	Authenticate(r *http.Request) error
}

// BearerAuthenticator compares a static shared-secret bearer token to the
// configured admin key.
type BearerAuthenticator struct {
	AdminKey string
}

func (a *BearerAuthenticator) Authenticate(r *http.Request) error {
	if len(a.AdminKey) < minAdminKeyLen {
		return ErrDisabled
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ErrUnauthorized
	}
	if strings.TrimPrefix(header, "Bearer ") != a.AdminKey {
		return ErrUnauthorized
	}
	return nil
}

// CookieAuthenticator validates a server-issued session cookie. The
// session value is an HS256-signed token keyed on the admin key, replacing
// the ad-hoc digest the cookie scheme originally shipped with.
type CookieAuthenticator struct {
	AdminKey   string
	SessionTTL time.Duration
}

// IssueSession mints a session token for a freshly logged-in operator.
func (a *CookieAuthenticator) IssueSession() (string, error) {
	if len(a.AdminKey) < minAdminKeyLen {
		return "", ErrDisabled
	}
	ttl := a.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(a.AdminKey))
}

func (a *CookieAuthenticator) Authenticate(r *http.Request) error {
	if len(a.AdminKey) < minAdminKeyLen {
		return ErrDisabled
	}
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return ErrUnauthorized
	}
	token, err := jwt.Parse(cookie.Value, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.AdminKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return ErrUnauthorized
	}
	return nil
}

// AdminAuth wraps admin handlers with the configured authenticator.
func AdminAuth(auth Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch err := auth.Authenticate(r); {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrDisabled):
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":"ADMIN_DISABLED"}`))
			default:
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"UNAUTHORIZED"}`))
			}
		})
	}
}
