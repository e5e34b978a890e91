package models

import "time"

// Workflow binds a site to one upstream ChatKit workflow. Key is the
// operator-chosen slug the embed script requests by; WorkflowID is the
// upstream id (wf_...). A site cannot hold the same key or the same
// upstream workflow twice.
type Workflow struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	SiteID     uint   `gorm:"uniqueIndex:idx_site_key,priority:1;uniqueIndex:idx_site_workflow,priority:1;not null" json:"site_id"`
	Key        string `gorm:"uniqueIndex:idx_site_key,priority:2;not null" json:"key"`
	WorkflowID string `gorm:"uniqueIndex:idx_site_workflow,priority:2;not null" json:"workflow_id"`
	Label      string `json:"label"`

	// APIKey is the upstream secret, stored in clear server-side and only
	// ever surfaced to clients masked.
	APIKey string `gorm:"not null" json:"api_key"`

	// ScriptCode is the last generated embed snippet for this workflow.
	ScriptCode string `json:"script_code,omitempty"`

	// WidgetConfig is an optional serialized widget-configuration document
	// sent on session creation in place of the env defaults.
	WidgetConfig string `json:"widget_config,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
