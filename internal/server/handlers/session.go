package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitechat/chatkit-broker/internal/chatkit"
	"github.com/sitechat/chatkit-broker/internal/config"
	"github.com/sitechat/chatkit-broker/internal/cors"
	"github.com/sitechat/chatkit-broker/internal/logging"
	"github.com/sitechat/chatkit-broker/internal/ratelimit"
	"github.com/sitechat/chatkit-broker/internal/resolver"
	"github.com/sitechat/chatkit-broker/internal/util"
	"gorm.io/gorm"
)

type sessionRequest struct {
	User        string `json:"user"`
	WorkflowKey string `json:"workflow_key"`
}

// SessionHandler brokers one upstream session for the embed widget:
// CORS check, rate limit, workflow resolution, upstream call. Upstream
// failure detail is logged server-side only; the caller sees opaque codes.
func SessionHandler(
	database *gorm.DB,
	limiter *ratelimit.Limiter,
	res *resolver.Resolver,
	client *chatkit.Client,
	widgetConfig json.RawMessage,
	cfg *config.Config,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := logging.NewRequestID()
		ctx := logging.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		origin := r.Header.Get("Origin")
		allowed := cors.AllowedOrigins(cfg.AllowOrigins, database)
		setPublicCORS(w, origin, allowed, "POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// No Origin header means a same-origin or server-side caller; the
		// resolver's origin lookup simply finds no site for it.
		if origin != "" && !cors.IsOriginAllowed(origin, allowed) {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "CORS_NOT_ALLOWED"})
			return
		}

		ip := clientIP(r)
		rl, err := limiter.Allow(ip, cfg.RateLimit, cfg.RateLimitWindow)
		if err != nil {
			var le *ratelimit.LimitError
			if errors.As(err, &le) {
				w.Header().Set("Retry-After", strconv.Itoa(le.RetryAfter(time.Now())))
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "RATE_LIMITED"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "SERVER_ERROR"})
			return
		}

		var body sessionRequest
		_ = json.NewDecoder(r.Body).Decode(&body)

		user := strings.TrimSpace(body.User)
		if user == "" {
			user = "anon_" + uuid.New().String()
		}

		resolution, err := res.Resolve(origin, body.WorkflowKey)
		switch {
		case errors.Is(err, resolver.ErrWorkflowNotFound):
			writeJSON(w, http.StatusNotFound, errorBody{Error: "WORKFLOW_NOT_FOUND"})
			return
		case errors.Is(err, resolver.ErrMisconfigured):
			log.Printf("[%s] no usable workflow or API key for origin %q", requestID, origin)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "SERVER_MISCONFIGURED"})
			return
		case err != nil:
			log.Printf("[%s] workflow resolution failed: %v", requestID, err)
			writeJSON(w, http.StatusBadGateway, errorBody{Error: "SESSION_CREATE_FAILED"})
			return
		}

		// A workflow-level stored configuration overrides the process-wide
		// document.
		cfgDoc := widgetConfig
		if resolution.Workflow != nil && resolution.Workflow.WidgetConfig != "" {
			cfgDoc = json.RawMessage(resolution.Workflow.WidgetConfig)
		}

		session, err := client.CreateSession(ctx, resolution.APIKey, resolution.WorkflowID, user, cfgDoc)
		if err != nil {
			var se *chatkit.SessionError
			if errors.As(err, &se) {
				log.Printf("[%s] upstream session failed: ip=%s origin=%q status=%d body=%s",
					requestID, ip, origin, se.Status, util.TruncateLog(se.Body, util.DefaultLogMaxLen))
			} else {
				log.Printf("[%s] upstream session failed: ip=%s origin=%q err=%v", requestID, ip, origin, err)
			}
			writeJSON(w, http.StatusBadGateway, errorBody{Error: "SESSION_CREATE_FAILED"})
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.ResetAt.Unix(), 10))
		writeJSON(w, http.StatusOK, map[string]string{"client_secret": session.ClientSecret})
	}
}
