// Package testdb opens throwaway sqlite databases carrying the reconciler
// schema for repository and service tests.
package testdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLite returns a migrated sqlite database in a per-test temp dir.
// The TBD project and the resolution version row are seeded the way the
// SQL migrations seed them on postgres.
func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "reconciler.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewSeededSQLite is NewSQLite plus the rows every migration seeds
func NewSeededSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db := NewSQLite(t)
	Seed(t, db)
	return db
}

// Seed inserts the TBD sentinel project and resolution version 1
func Seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	now := time.Now().UTC()
	tbd := models.InternalProjectModel{
		Name:        "TBD",
		Description: "To Be Determined",
		IsTBD:       true,
	}
	tbd.ID = TBDProjectID
	tbd.CreatedAt, tbd.UpdatedAt = now, now
	require.NoError(t, db.Create(&tbd).Error)
	require.NoError(t, db.Create(&models.ResolutionVersionModel{
		ID:        models.ResolutionVersionID,
		Version:   1,
		UpdatedAt: now,
	}).Error)
}
