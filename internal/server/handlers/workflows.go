package handlers

import (
	"net/http"

	"github.com/sitechat/chatkit-broker/internal/config"
	"github.com/sitechat/chatkit-broker/internal/cors"
	"github.com/sitechat/chatkit-broker/internal/resolver"
	"gorm.io/gorm"
)

// WorkflowsHandler serves the public workflow picker: the workflows
// visible to the calling origin plus its default key. Existence only; no
// API keys are involved.
func WorkflowsHandler(database *gorm.DB, res *resolver.Resolver, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := cors.AllowedOrigins(cfg.AllowOrigins, database)
		setPublicCORS(w, origin, allowed, "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if origin != "" && !cors.IsOriginAllowed(origin, allowed) {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "CORS_NOT_ALLOWED"})
			return
		}

		listing, err := res.ListForOrigin(origin)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "SERVER_ERROR"})
			return
		}
		writeJSON(w, http.StatusOK, listing)
	}
}
