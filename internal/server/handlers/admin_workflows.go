package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sitechat/chatkit-broker/internal/db"
	"github.com/sitechat/chatkit-broker/internal/db/models"
	"github.com/sitechat/chatkit-broker/internal/util"
	"gorm.io/gorm"
)

// adminWorkflow is a workflow row as surfaced to operators: API key
// masked, owning site origin joined in.
type adminWorkflow struct {
	ID         uint   `json:"id"`
	SiteID     uint   `json:"site_id"`
	SiteOrigin string `json:"site_origin"`
	Key        string `json:"key"`
	WorkflowID string `json:"workflow_id"`
	Label      string `json:"label"`
	APIKey     string `json:"api_key"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// AdminOptionsHandler answers CORS preflight on the operator API.
func AdminOptionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setAdminCORS(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminWorkflowsHandler lists every workflow across all sites.
func AdminWorkflowsHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setAdminCORS(w)

		sites, err := db.GetAllSites(database)
		if err != nil {
			log.Printf("[admin] list sites failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "FETCH_FAILED"})
			return
		}

		out := []adminWorkflow{}
		for _, site := range sites {
			workflows, err := db.GetWorkflowsBySiteID(database, site.ID)
			if err != nil {
				log.Printf("[admin] list workflows for site %d failed: %v", site.ID, err)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "FETCH_FAILED"})
				return
			}
			for _, wf := range workflows {
				out = append(out, adminWorkflow{
					ID:         wf.ID,
					SiteID:     wf.SiteID,
					SiteOrigin: site.Origin,
					Key:        wf.Key,
					WorkflowID: wf.WorkflowID,
					Label:      wf.Label,
					APIKey:     util.MaskAPIKey(wf.APIKey),
					CreatedAt:  wf.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
					UpdatedAt:  wf.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
				})
			}
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"workflows": out})
	}
}

type updateWorkflowRequest struct {
	Label  *string `json:"label"`
	APIKey *string `json:"api_key"`
}

// AdminWorkflowUpdateHandler updates one workflow's label and/or API key.
func AdminWorkflowUpdateHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setAdminCORS(w)

		wf, ok := workflowFromPath(w, r, database)
		if !ok {
			return
		}

		var body updateWorkflowRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "INVALID_BODY"})
			return
		}

		var upd db.WorkflowUpdate
		if body.Label != nil {
			label := strings.TrimSpace(*body.Label)
			upd.Label = &label
		}
		if body.APIKey != nil {
			apiKey := strings.TrimSpace(*body.APIKey)
			if apiKey != "" {
				if !validAPIKey(apiKey) {
					writeJSON(w, http.StatusBadRequest, errorBody{
						Error:   "INVALID_API_KEY",
						Message: "API key must start with sk- and be at least 20 characters",
					})
					return
				}
				upd.APIKey = &apiKey
			}
		}

		if upd.Label == nil && upd.APIKey == nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "NO_CHANGES"})
			return
		}

		if err := db.UpdateWorkflow(database, wf.ID, upd); err != nil {
			log.Printf("[admin] update workflow %d failed: %v", wf.ID, err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "UPDATE_FAILED"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// AdminWorkflowDeleteHandler removes one workflow.
func AdminWorkflowDeleteHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setAdminCORS(w)

		wf, ok := workflowFromPath(w, r, database)
		if !ok {
			return
		}

		if err := db.DeleteWorkflow(database, wf.ID); err != nil {
			log.Printf("[admin] delete workflow %d failed: %v", wf.ID, err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "DELETE_FAILED"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

func workflowFromPath(w http.ResponseWriter, r *http.Request, database *gorm.DB) (*models.Workflow, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "INVALID_ID"})
		return nil, false
	}
	wf, err := db.GetWorkflowByID(database, uint(id))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "NOT_FOUND"})
		} else {
			log.Printf("[admin] load workflow %d failed: %v", id, err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "FETCH_FAILED"})
		}
		return nil, false
	}
	return wf, true
}

func validAPIKey(apiKey string) bool {
	return strings.HasPrefix(apiKey, "sk-") && len(apiKey) >= 20
}
