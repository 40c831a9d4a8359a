package database

import (
	"errors"
	"fmt"
	"time"

	"dhuni-backend/internal/config"
	"dhuni-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the Postgres store, installs the tenant guard and migrates
// the schema.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}
	if err := Prepare(db); err != nil {
		return nil, err
	}
	config.GetLogger().Info("database connected, migration complete")
	return db, nil
}

// Prepare registers the tenant guard and runs AutoMigrate. Tests call it on
// their SQLite handle so both stores share one code path.
func Prepare(db *gorm.DB) error {
	if err := db.Use(NewTenantGuardPlugin()); err != nil {
		return fmt.Errorf("register tenant guard: %w", err)
	}
	if err := db.WithContext(skipCtx()).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// IsDuplicateKey reports a unique index violation. It needs the handle to be
// opened with TranslateError.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
