// Package resolver picks the concrete (workflow id, API key) pair for an
// inbound origin, falling back through site defaults, the most recently
// created workflow, and environment-level defaults.
package resolver

import (
	"errors"
	"regexp"
	"strings"

	"github.com/sitechat/chatkit-broker/internal/db"
	"github.com/sitechat/chatkit-broker/internal/db/models"
	"gorm.io/gorm"
)

var (
	// ErrWorkflowNotFound means the origin's site exists but holds no
	// workflows at all.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrMisconfigured means no usable (workflow id, API key) pair exists
	// anywhere: not on the site, not in the environment.
	ErrMisconfigured = errors.New("no usable workflow configuration")
)

var keyCharset = regexp.MustCompile(`[^a-z0-9_-]`)

// ValidateWorkflowID checks the upstream id shape: prefix wf_ and total
// length greater than 10.
func ValidateWorkflowID(id string) bool {
	return strings.HasPrefix(id, "wf_") && len(id) > 10
}

// NormalizeWorkflowKey lowercases a slug and strips everything outside
// [a-z0-9_-].
func NormalizeWorkflowKey(key string) string {
	return keyCharset.ReplaceAllString(strings.ToLower(strings.TrimSpace(key)), "")
}

// Resolution is a usable credential pair for one session creation.
type Resolution struct {
	WorkflowID string
	APIKey     string

	// Workflow is the registry row the resolution came from, nil when the
	// environment fallback was used.
	Workflow *models.Workflow
}

// Resolver resolves origins against the registry with environment-level
// defaults as the last resort.
type Resolver struct {
	DB *gorm.DB

	// DefaultAPIKey fills in for workflows stored without their own key,
	// and pairs with DefaultWorkflowID for unregistered origins.
	DefaultAPIKey     string
	DefaultWorkflowID string
}

// Resolve picks the credential pair for an origin and an optional
// requested workflow key.
func (r *Resolver) Resolve(origin, requestedKey string) (*Resolution, error) {
	if origin != "" && r.DB != nil {
		site, err := db.GetSiteByOrigin(r.DB, origin)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		if site != nil {
			return r.resolveForSite(site, requestedKey)
		}
	}
	return r.resolveFromEnv()
}

func (r *Resolver) resolveForSite(site *models.Site, requestedKey string) (*Resolution, error) {
	workflows, err := db.GetWorkflowsBySiteID(r.DB, site.ID)
	if err != nil {
		return nil, err
	}

	desired := strings.TrimSpace(requestedKey)
	if desired == "" {
		desired = site.DefaultWorkflowKey
	}

	var match *models.Workflow
	for i := range workflows {
		if workflows[i].Key == desired {
			match = &workflows[i]
			break
		}
	}

	switch {
	case match != nil && ValidateWorkflowID(match.WorkflowID):
		return r.resolutionFor(match)
	case len(workflows) > 0:
		// Unknown or absent key: the most recently created workflow is
		// the implicit default.
		return r.resolutionFor(&workflows[0])
	default:
		return nil, ErrWorkflowNotFound
	}
}

func (r *Resolver) resolutionFor(wf *models.Workflow) (*Resolution, error) {
	apiKey := wf.APIKey
	if apiKey == "" {
		apiKey = r.DefaultAPIKey
	}
	if apiKey == "" {
		return nil, ErrMisconfigured
	}
	return &Resolution{WorkflowID: wf.WorkflowID, APIKey: apiKey, Workflow: wf}, nil
}

func (r *Resolver) resolveFromEnv() (*Resolution, error) {
	if r.DefaultWorkflowID == "" || r.DefaultAPIKey == "" || !ValidateWorkflowID(r.DefaultWorkflowID) {
		return nil, ErrMisconfigured
	}
	return &Resolution{WorkflowID: r.DefaultWorkflowID, APIKey: r.DefaultAPIKey}, nil
}

// ListedWorkflow is one entry in the public workflow-picker listing.
type ListedWorkflow struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	ID    string `json:"id"`
}

// Listing is the public workflow-picker payload for one origin.
type Listing struct {
	Workflows          []ListedWorkflow `json:"workflows"`
	DefaultWorkflowKey *string          `json:"default_workflow_key"`
}

// ListForOrigin resolves the workflows visible to an origin, existence
// only: no API key is required. Unregistered origins fall back to the
// environment workflow id when it validates, surfaced under the key
// "default".
func (r *Resolver) ListForOrigin(origin string) (*Listing, error) {
	if origin != "" && r.DB != nil {
		site, err := db.GetSiteByOrigin(r.DB, origin)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		if site != nil {
			return r.listForSite(site)
		}
	}
	return r.listFromEnv(), nil
}

func (r *Resolver) listForSite(site *models.Site) (*Listing, error) {
	workflows, err := db.GetWorkflowsBySiteID(r.DB, site.ID)
	if err != nil {
		return nil, err
	}

	listing := &Listing{Workflows: []ListedWorkflow{}}
	for _, wf := range workflows {
		if !ValidateWorkflowID(wf.WorkflowID) {
			continue
		}
		label := wf.Label
		if label == "" {
			label = wf.Key
		}
		listing.Workflows = append(listing.Workflows, ListedWorkflow{
			Key:   wf.Key,
			Label: label,
			ID:    wf.WorkflowID,
		})
	}

	if site.DefaultWorkflowKey != "" {
		k := site.DefaultWorkflowKey
		listing.DefaultWorkflowKey = &k
	} else if len(listing.Workflows) > 0 {
		k := listing.Workflows[0].Key
		listing.DefaultWorkflowKey = &k
	}
	return listing, nil
}

func (r *Resolver) listFromEnv() *Listing {
	if !ValidateWorkflowID(r.DefaultWorkflowID) {
		return &Listing{Workflows: []ListedWorkflow{}}
	}
	k := "default"
	return &Listing{
		Workflows:          []ListedWorkflow{{Key: "default", Label: "Default", ID: r.DefaultWorkflowID}},
		DefaultWorkflowKey: &k,
	}
}
