package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sitechat/chatkit-broker/internal/config"
	"github.com/sitechat/chatkit-broker/internal/db"
	"github.com/sitechat/chatkit-broker/internal/db/models"
	"github.com/sitechat/chatkit-broker/internal/embed"
	"github.com/sitechat/chatkit-broker/internal/resolver"
	"gorm.io/gorm"
)

type generateEmbedRequest struct {
	WorkflowID   string `json:"workflow_id"`
	OpenAIAPIKey string `json:"openai_api_key"`
	Origin       string `json:"origin"`
	Title        string `json:"title"`
	Color        string `json:"color"`
	Position     string `json:"position"`
	Label        string `json:"label"`
	Greeting     string `json:"greeting"`
	Theme        string `json:"theme"`
	Accent       string `json:"accent"`
	Radius       string `json:"radius"`
	Density      string `json:"density"`
	ChatKitConf  string `json:"chatkit_config"`
}

// GenerateEmbedHandler registers (or refreshes) a site+workflow pair and
// returns a ready-to-paste embed snippet. Submitting a workflow id the
// site already holds updates that row in place instead of duplicating it.
func GenerateEmbedHandler(database *gorm.DB, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setAdminCORS(w)

		var body generateEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "INVALID_BODY"})
			return
		}

		workflowID := strings.TrimSpace(body.WorkflowID)
		if !resolver.ValidateWorkflowID(workflowID) {
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error:   "INVALID_WORKFLOW_ID",
				Message: "Workflow id must start with wf_ and be longer than 10 characters",
			})
			return
		}

		apiKey := strings.TrimSpace(body.OpenAIAPIKey)
		if !validAPIKey(apiKey) {
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error:   "INVALID_API_KEY",
				Message: "API key must start with sk- and be at least 20 characters",
			})
			return
		}

		origin := strings.TrimRight(strings.TrimSpace(body.Origin), "/")
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error:   "INVALID_ORIGIN",
				Message: "Origin must start with http:// or https://",
			})
			return
		}

		opts := snippetOptions(body, apiBase(r, cfg))
		label := strings.TrimSpace(body.Label)
		if label == "" {
			label = opts.Title
		}

		workflowKey := newWorkflowKey(origin)

		site, err := db.GetOrCreateSite(database, origin, workflowKey)
		if err != nil {
			log.Printf("[admin] get-or-create site %q failed: %v", origin, err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "GENERATE_FAILED"})
			return
		}

		wf, existed, err := db.UpsertWorkflow(database, &models.Workflow{
			SiteID:       site.ID,
			Key:          workflowKey,
			WorkflowID:   workflowID,
			Label:        label,
			APIKey:       apiKey,
			WidgetConfig: strings.TrimSpace(body.ChatKitConf),
		})
		if err != nil {
			log.Printf("[admin] upsert workflow %q for site %d failed: %v", workflowID, site.ID, err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "GENERATE_FAILED"})
			return
		}

		// The stored key wins: an updated row keeps the key already in
		// operator embeds.
		opts.WorkflowKey = wf.Key
		snippet := embed.Snippet(opts)

		if err := db.UpdateWorkflow(database, wf.ID, db.WorkflowUpdate{ScriptCode: &snippet}); err != nil {
			log.Printf("[admin] store snippet for workflow %d failed: %v", wf.ID, err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "GENERATE_FAILED"})
			return
		}

		if !existed && site.DefaultWorkflowKey == "" {
			if err := db.UpdateSiteDefaultWorkflow(database, site.ID, wf.Key); err != nil {
				log.Printf("[admin] set default workflow for site %d failed: %v", site.ID, err)
			}
		}

		resp := map[string]string{
			"embed_code":   snippet,
			"workflow_key": wf.Key,
			"origin":       origin,
		}
		if existed {
			resp["message"] = "Workflow updated in place"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func snippetOptions(body generateEmbedRequest, base string) embed.Options {
	title := strings.TrimSpace(body.Title)
	if title == "" {
		title = "Assistant"
	}
	opts := embed.Options{
		APIBase:  base,
		Title:    title,
		Position: "right",
		Primary:  defaultStr(body.Color, "#111111"),
		Theme:    "light",
		Accent:   defaultStr(body.Accent, "#2D8CFF"),
		Radius:   "pill",
		Density:  "normal",
		Greeting: strings.TrimSpace(body.Greeting),
	}
	if body.Position == "left" {
		opts.Position = "left"
	}
	if body.Theme == "dark" {
		opts.Theme = "dark"
	}
	switch body.Radius {
	case "round", "none":
		opts.Radius = body.Radius
	}
	switch body.Density {
	case "compact", "relaxed":
		opts.Density = body.Density
	}
	return opts
}

func defaultStr(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

// newWorkflowKey derives a unique slug from the origin host plus a base36
// timestamp, normalized to the workflow key charset.
func newWorkflowKey(origin string) string {
	host := "site"
	if u, err := url.Parse(origin); err == nil && u.Hostname() != "" {
		host = strings.ReplaceAll(u.Hostname(), ".", "_")
	}
	raw := host + "_" + strconv.FormatInt(time.Now().UnixMilli(), 36)
	return resolver.NormalizeWorkflowKey(raw)
}

// apiBase picks the base URL embedded in snippets: the configured public
// URL in production, the inbound request host in development.
func apiBase(r *http.Request, cfg *config.Config) string {
	if cfg.PublicURL != "" {
		return cfg.PublicURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
