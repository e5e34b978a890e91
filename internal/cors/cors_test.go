package cors

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sitechat/chatkit-broker/internal/db"
	"github.com/sitechat/chatkit-broker/internal/db/models"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.AutoMigrate(&models.Site{}, &models.Workflow{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func TestIsOriginAllowed_ExactMatchOnly(t *testing.T) {
	allowed := []string{"https://example.com", "http://localhost:3000"}

	if !IsOriginAllowed("https://example.com", allowed) {
		t.Fatal("expected exact match to be allowed")
	}
	if IsOriginAllowed("https://example.com/", allowed) {
		t.Fatal("trailing slash must not match")
	}
	if IsOriginAllowed("http://example.com", allowed) {
		t.Fatal("scheme must match verbatim")
	}
	if IsOriginAllowed("", allowed) {
		t.Fatal("empty origin is never allowed")
	}
	if IsOriginAllowed("https://example.com", nil) {
		t.Fatal("empty allow-list rejects everything")
	}
}

func TestAllowedOrigins_MergesRegistry(t *testing.T) {
	database := newTestDB(t)
	if _, err := db.CreateSite(database, "https://registered.example", ""); err != nil {
		t.Fatalf("seed site: %v", err)
	}

	merged := AllowedOrigins([]string{"https://static.example"}, database)

	if !IsOriginAllowed("https://static.example", merged) {
		t.Fatal("static origin missing from merge")
	}
	if !IsOriginAllowed("https://registered.example", merged) {
		t.Fatal("registry origin missing from merge")
	}
	if IsOriginAllowed("https://unknown.example", merged) {
		t.Fatal("unlisted origin must be rejected")
	}
}

func TestAllowedOrigins_DegradesToStatic(t *testing.T) {
	merged := AllowedOrigins([]string{"https://static.example"}, nil)
	if len(merged) != 1 || merged[0] != "https://static.example" {
		t.Fatalf("expected static-only fallback, got %v", merged)
	}
}
