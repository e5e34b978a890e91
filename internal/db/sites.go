package db

import (
	"errors"

	"github.com/sitechat/chatkit-broker/internal/db/models"
	"gorm.io/gorm"
)

// GetAllSites returns every registered site, most recently created first.
func GetAllSites(database *gorm.DB) ([]models.Site, error) {
	var sites []models.Site
	err := database.Order("created_at DESC, id DESC").Find(&sites).Error
	return sites, err
}

// GetSiteByOrigin looks up the site registered for an exact origin string.
// Returns ErrNotFound when no site matches.
func GetSiteByOrigin(database *gorm.DB, origin string) (*models.Site, error) {
	var site models.Site
	if err := database.Where("origin = ?", origin).First(&site).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

// GetSiteByID fetches one site row.
func GetSiteByID(database *gorm.DB, id uint) (*models.Site, error) {
	var site models.Site
	if err := database.First(&site, id).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

// CreateSite registers a new origin. A second site for an existing origin
// is a conflict, never a silent overwrite.
func CreateSite(database *gorm.DB, origin, defaultWorkflowKey string) (*models.Site, error) {
	site := models.Site{Origin: origin, DefaultWorkflowKey: defaultWorkflowKey}
	if err := database.Create(&site).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return &site, nil
}

// GetOrCreateSite returns the site for an origin, creating it lazily the
// first time an operator generates an embed for a new origin. A racing
// create resolves to the winner's row.
func GetOrCreateSite(database *gorm.DB, origin, defaultWorkflowKey string) (*models.Site, error) {
	site, err := GetSiteByOrigin(database, origin)
	if err == nil {
		return site, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	site, err = CreateSite(database, origin, defaultWorkflowKey)
	if errors.Is(err, ErrConflict) {
		return GetSiteByOrigin(database, origin)
	}
	return site, err
}

// UpdateSiteDefaultWorkflow sets the site's default workflow key.
func UpdateSiteDefaultWorkflow(database *gorm.DB, siteID uint, workflowKey string) error {
	return database.Model(&models.Site{}).Where("id = ?", siteID).
		Update("default_workflow_key", workflowKey).Error
}

// DeleteSite removes a site and all of its workflows.
func DeleteSite(database *gorm.DB, siteID uint) error {
	return database.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("site_id = ?", siteID).Delete(&models.Workflow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Site{}, siteID).Error
	})
}

// AllOrigins returns every distinct registered origin, for the CORS
// allow-list merge.
func AllOrigins(database *gorm.DB) ([]string, error) {
	var origins []string
	err := database.Model(&models.Site{}).Pluck("origin", &origins).Error
	return origins, err
}
