// Package handlers implements the public session/workflow endpoints and
// the operator admin API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sitechat/chatkit-broker/internal/cors"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// clientIP identifies the caller for rate limiting: first entry of
// X-Forwarded-For, then X-Real-Ip, then the literal "unknown".
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if rip := r.Header.Get("X-Real-Ip"); rip != "" {
		return rip
	}
	return "unknown"
}

// setPublicCORS applies the CORS header set for the public endpoints. The
// caller's Origin is echoed in Access-Control-Allow-Origin only when it is
// on the merged allow-list; otherwise the header is omitted.
func setPublicCORS(w http.ResponseWriter, origin string, allowed []string, methods string) {
	h := w.Header()
	h.Set("Access-Control-Allow-Methods", methods)
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Max-Age", "86400")
	h.Add("Vary", "Origin")
	if cors.IsOriginAllowed(origin, allowed) {
		h.Set("Access-Control-Allow-Origin", origin)
	}
}

// setAdminCORS applies the permissive header set for the operator API,
// which is protected by credentials rather than origin.
func setAdminCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}
