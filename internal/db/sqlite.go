package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/sitechat/chatkit-broker/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrConflict is returned when a write would violate one of the registry's
// uniqueness invariants (site origin, (site,key), (site,workflow_id)).
var ErrConflict = errors.New("registry conflict")

// ErrNotFound is returned when a row lookup finds nothing.
var ErrNotFound = gorm.ErrRecordNotFound

// InitDB opens the SQLite registry and runs migrations. The parent
// directory is created on first use.
func InitDB(dbPath string) (*gorm.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	database, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := database.AutoMigrate(&models.Site{}, &models.Workflow{}); err != nil {
		return nil, err
	}

	return database, nil
}

// isUniqueViolation detects a unique-index failure from the sqlite driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
