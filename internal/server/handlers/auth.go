package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sitechat/chatkit-broker/internal/server/middleware"
)

type loginRequest struct {
	Password string `json:"password"`
}

// LoginHandler starts a cookie session: the operator submits the admin
// key as a password and receives a signed session cookie.
func LoginHandler(auth *middleware.CookieAuthenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		password := strings.TrimSpace(body.Password)

		token, err := auth.IssueSession()
		if errors.Is(err, middleware.ErrDisabled) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "ADMIN_DISABLED"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "LOGIN_FAILED"})
			return
		}

		if password != auth.AdminKey {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "INVALID_PASSWORD"})
			return
		}

		ttl := auth.SessionTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
			Secure:   requestIsHTTPS(r),
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// LogoutHandler clears the session cookie.
func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// CheckHandler reports whether the caller holds a valid admin credential,
// distinguishing "feature off" (404) from "wrong credential" (401).
func CheckHandler(auth middleware.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setAdminCORS(w)
		switch err := auth.Authenticate(r); {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
		case errors.Is(err, middleware.ErrDisabled):
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"authenticated": false, "error": "ADMIN_DISABLED",
			})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"authenticated": false, "error": "UNAUTHORIZED",
			})
		}
	}
}

func requestIsHTTPS(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
