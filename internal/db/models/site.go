package models

import "time"

// Site represents one customer property, keyed by its exact Origin string
// (scheme+host, no trailing slash). At most one site exists per origin.
type Site struct {
	ID                 uint   `gorm:"primaryKey" json:"id"`
	Origin             string `gorm:"uniqueIndex;not null" json:"origin"`
	DefaultWorkflowKey string `json:"default_workflow_key"`

	// Workflows are removed when the site is deleted.
	Workflows []Workflow `gorm:"constraint:OnDelete:CASCADE" json:"workflows,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
