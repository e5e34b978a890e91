// Package cors decides whether a caller's Origin header is allowed, by
// merging the static env allow-list with every origin in the registry.
package cors

import (
	"log"

	"github.com/sitechat/chatkit-broker/internal/db"
	"gorm.io/gorm"
)

// AllowedOrigins returns the merged allow-list: the static list plus all
// registered site origins. If the registry is unavailable the resolver
// degrades to the static list only, never to allow-all.
func AllowedOrigins(static []string, database *gorm.DB) []string {
	merged := make([]string, 0, len(static))
	merged = append(merged, static...)

	if database == nil {
		return merged
	}
	origins, err := db.AllOrigins(database)
	if err != nil {
		log.Printf("[cors] registry unavailable, using static allow-list only: %v", err)
		return merged
	}
	return append(merged, origins...)
}

// IsOriginAllowed reports whether origin appears verbatim in the
// allow-list. No wildcarding, no scheme normalization.
func IsOriginAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == origin {
			return true
		}
	}
	return false
}
