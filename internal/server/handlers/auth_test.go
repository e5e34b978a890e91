package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sitechat/chatkit-broker/internal/server/middleware"
)

const testAdminKey = "admin-secret-key-long-enough"

func TestLoginHandler(t *testing.T) {
	auth := &middleware.CookieAuthenticator{AdminKey: testAdminKey, SessionTTL: time.Hour}
	h := LoginHandler(auth)

	// Wrong password.
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"password":"nope"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// Correct password sets a session cookie that authenticates.
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"password":"`+testAdminKey+`"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatal("session cookie not set")
	}
	if !session.HttpOnly {
		t.Fatal("session cookie must be http-only")
	}

	r := httptest.NewRequest(http.MethodGet, "/api/admin/workflows", nil)
	r.AddCookie(session)
	if err := auth.Authenticate(r); err != nil {
		t.Fatalf("issued session rejected: %v", err)
	}
}

func TestLoginHandler_DisabledWithoutAdminKey(t *testing.T) {
	h := LoginHandler(&middleware.CookieAuthenticator{})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"password":"anything"}`)))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "ADMIN_DISABLED") {
		t.Fatalf("expected ADMIN_DISABLED 404, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestLogoutHandler_ClearsCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	LogoutHandler()(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			if c.MaxAge >= 0 {
				t.Fatalf("expected expiring cookie, got MaxAge=%d", c.MaxAge)
			}
			return
		}
	}
	t.Fatal("no session cookie cleared")
}

func TestCheckHandler(t *testing.T) {
	auth := &middleware.BearerAuthenticator{AdminKey: testAdminKey}
	h := CheckHandler(auth)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/auth/check", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	r.Header.Set("Authorization", "Bearer "+testAdminKey)
	h(rec, r)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"authenticated":true`) {
		t.Fatalf("expected authenticated 200, got %d %s", rec.Code, rec.Body.String())
	}

	// Feature off reads as not found.
	h = CheckHandler(&middleware.BearerAuthenticator{})
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/auth/check", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
