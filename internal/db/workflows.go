package db

import (
	"errors"

	"github.com/sitechat/chatkit-broker/internal/db/models"
	"gorm.io/gorm"
)

// GetWorkflowsBySiteID lists a site's workflows, most recently created
// first. The resolver relies on this ordering for its implicit default.
func GetWorkflowsBySiteID(database *gorm.DB, siteID uint) ([]models.Workflow, error) {
	var workflows []models.Workflow
	err := database.Where("site_id = ?", siteID).
		Order("created_at DESC, id DESC").Find(&workflows).Error
	return workflows, err
}

// GetWorkflowByKey looks up a workflow by its operator-chosen slug.
func GetWorkflowByKey(database *gorm.DB, siteID uint, key string) (*models.Workflow, error) {
	var wf models.Workflow
	if err := database.Where("site_id = ? AND key = ?", siteID, key).First(&wf).Error; err != nil {
		return nil, err
	}
	return &wf, nil
}

// GetWorkflowByWorkflowID looks up a workflow by its upstream wf_ id.
func GetWorkflowByWorkflowID(database *gorm.DB, siteID uint, workflowID string) (*models.Workflow, error) {
	var wf models.Workflow
	if err := database.Where("site_id = ? AND workflow_id = ?", siteID, workflowID).First(&wf).Error; err != nil {
		return nil, err
	}
	return &wf, nil
}

// GetWorkflowByID fetches one workflow row.
func GetWorkflowByID(database *gorm.DB, id uint) (*models.Workflow, error) {
	var wf models.Workflow
	if err := database.First(&wf, id).Error; err != nil {
		return nil, err
	}
	return &wf, nil
}

// CreateWorkflow inserts a new workflow. Violating the per-site key or
// workflow-id uniqueness is a conflict.
func CreateWorkflow(database *gorm.DB, wf *models.Workflow) error {
	if err := database.Create(wf).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// WorkflowUpdate carries the mutable workflow fields. Nil pointers are
// left untouched.
type WorkflowUpdate struct {
	Label        *string
	APIKey       *string
	ScriptCode   *string
	WidgetConfig *string
}

// UpdateWorkflow applies a partial update to one workflow row.
func UpdateWorkflow(database *gorm.DB, id uint, upd WorkflowUpdate) error {
	fields := map[string]interface{}{}
	if upd.Label != nil {
		fields["label"] = *upd.Label
	}
	if upd.APIKey != nil {
		fields["api_key"] = *upd.APIKey
	}
	if upd.ScriptCode != nil {
		fields["script_code"] = *upd.ScriptCode
	}
	if upd.WidgetConfig != nil {
		fields["widget_config"] = *upd.WidgetConfig
	}
	if len(fields) == 0 {
		return nil
	}
	return database.Model(&models.Workflow{}).Where("id = ?", id).Updates(fields).Error
}

// DeleteWorkflow removes one workflow row.
func DeleteWorkflow(database *gorm.DB, id uint) error {
	return database.Delete(&models.Workflow{}, id).Error
}

// UpsertWorkflow registers a workflow for a site, updating the existing
// row in place when the site already holds the same upstream workflow id.
// The read-then-write runs in a transaction so two requests racing to
// register the same (site, workflow_id) cannot produce duplicate rows.
// Returns the stored row and whether it already existed.
func UpsertWorkflow(database *gorm.DB, wf *models.Workflow) (*models.Workflow, bool, error) {
	var out models.Workflow
	var updated bool

	err := database.Transaction(func(tx *gorm.DB) error {
		var existing models.Workflow
		err := tx.Where("site_id = ? AND workflow_id = ?", wf.SiteID, wf.WorkflowID).
			First(&existing).Error
		if err == nil {
			fields := map[string]interface{}{
				"label":   wf.Label,
				"api_key": wf.APIKey,
			}
			if wf.ScriptCode != "" {
				fields["script_code"] = wf.ScriptCode
			}
			if wf.WidgetConfig != "" {
				fields["widget_config"] = wf.WidgetConfig
			}
			if err := tx.Model(&existing).Updates(fields).Error; err != nil {
				return err
			}
			out = existing
			updated = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(wf).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
		out = *wf
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, updated, nil
}
