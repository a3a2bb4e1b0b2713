// Package testutil opens throwaway in-memory databases for service tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"drims-backend/internal/database"
	"drims-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a fresh in-memory SQLite database migrated with the full schema.
// A single connection is shared so concurrent test goroutines serialize on the
// driver instead of each opening an empty database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:drims_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	// handlers and the audit writer go through the package-level handle
	database.DB = db
	return db
}

// Logger returns a silenced zerolog logger for service construction.
func Logger() zerolog.Logger {
	return zerolog.Nop()
}

func CreateDepot(t *testing.T, db *gorm.DB, name string, tier models.HubTier) *models.Depot {
	t.Helper()
	depot := models.Depot{Name: name, Tier: tier, Parish: name}
	if err := db.Create(&depot).Error; err != nil {
		t.Fatalf("create depot %s: %v", name, err)
	}
	return &depot
}

func CreateItem(t *testing.T, db *gorm.DB, name, category string, minQty int64) *models.Item {
	t.Helper()
	item := models.Item{
		SKU:      fmt.Sprintf("TST-%s-%d", name, dbSeq.Add(1)),
		Name:     name,
		Category: category,
		Unit:     "pcs",
		MinQty:   minQty,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("create item %s: %v", name, err)
	}
	return &item
}

func CreateUser(t *testing.T, db *gorm.DB, name string, role models.UserRole, depotID *uint) *models.User {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s-%d@test.local", name, dbSeq.Add(1)),
		PasswordHash: "x",
		Role:         role,
		DepotID:      depotID,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return &user
}
