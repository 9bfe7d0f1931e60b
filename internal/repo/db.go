// Package repo implements the persistence layer over GORM. This file opens
// the SQLite database and migrates the schema.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-click-backend/internal/domain"
)

// sqlitePragmas tune the file store for a small concurrent web service: WAL
// lets the leaderboard reads proceed during click-burst writes, NORMAL sync
// is durable enough under WAL, and the busy timeout absorbs write contention
// instead of surfacing SQLITE_BUSY to callers.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA foreign_keys=ON;",
	"PRAGMA busy_timeout=5000;",
}

// OpenSQLite opens (or creates) the database at path, applies the PRAGMAs,
// sizes the connection pool, and installs query tracing.
func OpenSQLite(path string) (*gorm.DB, error) {
	// A missing parent directory otherwise surfaces from the driver as the
	// misleading "out of memory (14)"; check it up front.
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	for _, pragma := range sqlitePragmas {
		db.Exec(pragma)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	// Query spans attach to whatever tracer provider observability installed.
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics(), tracing.WithoutQueryVariables())); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for every domain model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Click{},
		&domain.Idempotency{},
	)
}
