package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sitechat/chatkit-broker/internal/chatkit"
	"github.com/sitechat/chatkit-broker/internal/config"
	"github.com/sitechat/chatkit-broker/internal/db"
	"github.com/sitechat/chatkit-broker/internal/ratelimit"
	"github.com/sitechat/chatkit-broker/internal/resolver"
	"github.com/sitechat/chatkit-broker/internal/server/handlers"
	"github.com/sitechat/chatkit-broker/internal/server/middleware"
	"github.com/sitechat/chatkit-broker/internal/version"
)

func main() {
	cfg := config.Load()

	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize registry: %v", err)
	}

	widgetCfg, err := chatkit.DefaultWidgetConfig()
	if err != nil {
		log.Fatalf("Failed to load widget configuration: %v", err)
	}
	widgetDoc, err := widgetCfg.Marshal()
	if err != nil {
		log.Fatalf("Failed to serialize widget configuration: %v", err)
	}

	client := chatkit.NewClient()
	limiter := ratelimit.NewLimiter()
	res := &resolver.Resolver{
		DB:                database,
		DefaultAPIKey:     cfg.OpenAIAPIKey,
		DefaultWorkflowID: cfg.OpenAIWorkflowID,
	}

	adminAuth := buildAdminAuth(cfg)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public widget endpoints, protected by CORS and the rate limiter.
	sessionHandler := handlers.SessionHandler(database, limiter, res, client, json.RawMessage(widgetDoc), cfg)
	r.Post("/api/chatkit/session", sessionHandler)
	r.Options("/api/chatkit/session", sessionHandler)

	workflowsHandler := handlers.WorkflowsHandler(database, res, cfg)
	r.Get("/api/chatkit/workflows", workflowsHandler)
	r.Options("/api/chatkit/workflows", workflowsHandler)

	// Operator API, gated by the configured admin scheme.
	r.Route("/api/admin", func(r chi.Router) {
		r.Options("/*", handlers.AdminOptionsHandler())
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(adminAuth))
			r.Get("/workflows", handlers.AdminWorkflowsHandler(database))
			r.Put("/workflows/{id}", handlers.AdminWorkflowUpdateHandler(database))
			r.Delete("/workflows/{id}", handlers.AdminWorkflowDeleteHandler(database))
			r.Post("/generate-embed", handlers.GenerateEmbedHandler(database, cfg))
		})
	})

	// Cookie-session login flow. Login/logout exist only on the cookie
	// scheme; check answers on either scheme.
	if cookieAuth, ok := adminAuth.(*middleware.CookieAuthenticator); ok {
		r.Post("/api/auth/login", handlers.LoginHandler(cookieAuth))
		r.Post("/api/auth/logout", handlers.LogoutHandler())
	}
	r.Get("/api/auth/check", handlers.CheckHandler(adminAuth))

	addr := cfg.Host + ":" + cfg.Port
	log.Printf("chatkit-broker %s starting on http://%s (admin auth: %s, admin enabled: %v)",
		version.Version, addr, cfg.AdminAuthMode, cfg.AdminEnabled())

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func buildAdminAuth(cfg *config.Config) middleware.Authenticator {
	if cfg.AdminAuthMode == "cookie" {
		return &middleware.CookieAuthenticator{
			AdminKey:   cfg.AdminAPIKey,
			SessionTTL: cfg.AdminSessionTTL,
		}
	}
	return &middleware.BearerAuthenticator{AdminKey: cfg.AdminAPIKey}
}
