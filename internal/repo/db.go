// Package repo implements the durable local queue for the terminal,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
//
// The queue database is the single shared mutable resource on the terminal:
// the pending tables, the cached-transaction mirror, and the metadata record
// all live here and survive process restarts. Migrations are additive only;
// a schema change must never drop or rewrite the pending tables, because they
// may hold unsynced orders taken while the terminal was offline.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/looppos/terminal-sync/internal/domain"
)

// OpenSQLite opens (or creates) the queue database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// EnableTracing attaches the GORM OpenTelemetry plugin. Metrics are exported
// separately via Prometheus, so only tracing is enabled here.
func EnableTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}

// AutoMigrate creates or extends the queue schema. GORM's auto-migration is
// additive (new tables, new columns); it never removes pending entries.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.PendingOrder{},
		&domain.PendingPayment{},
		&domain.CachedTransaction{},
		&domain.Metadata{},
		&domain.Idempotency{},
	)
}
