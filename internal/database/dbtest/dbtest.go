// Package dbtest opens a migrated SQLite store for package tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"dhuni-backend/internal/database"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/tenant"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh database in t.TempDir(). A single connection keeps
// SQLite writers serialised.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dhuni.db")
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=1&_busy_timeout=5000"), &gorm.Config{
		Logger:         logger.Discard,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Prepare(db); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return db
}

// NewTenant provisions a vendor with one user of the given role and returns
// a context scoped to it.
func NewTenant(t testing.TB, db *gorm.DB, name string, role tenant.Role) (context.Context, tenant.Scope) {
	t.Helper()

	skip := tenant.WithoutScope(context.Background())
	vendor := models.Vendor{Name: name}
	if err := db.WithContext(skip).Create(&vendor).Error; err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	user := models.User{ID: uuid.New(), VendorID: vendor.ID, Role: role}
	if err := db.WithContext(skip).Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	scope := tenant.Scope{VendorID: vendor.ID, UserID: user.ID, Role: role}
	return tenant.WithScope(context.Background(), scope), scope
}
