// Package repo implements the durable local queue for the terminal,
// backed by GORM. This file provides access to the metadata table: a single
// logical record spread across keyed rows holding the last known transaction
// id and the last successful sync time.
//
// Error semantics:
//   - GetMeta returns ErrNotFound for a missing key.
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/looppos/terminal-sync/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetMeta returns the value stored under key, or ErrNotFound.
func GetMeta(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var m domain.Metadata
	err := db.WithContext(ctx).Where("key = ?", key).First(&m).Error
	if err != nil {
		return "", err
	}
	return m.Value, nil
}

// PutMeta upserts the value stored under key.
func PutMeta(ctx context.Context, db *gorm.DB, key, value string, now time.Time) error {
	m := domain.Metadata{Key: key, Value: value, UpdatedAt: now.UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&m).Error
}

// EnsureMetaDefaults seeds the metadata record on first run only. An existing
// value is never overwritten: the last known transaction id must survive
// restarts, and re-seeding it would risk allocating ids that collide with
// real server records.
func EnsureMetaDefaults(ctx context.Context, db *gorm.DB, now time.Time) error {
	defaults := map[string]string{
		domain.MetaLastTransactionID: domain.SeedTransactionID,
		domain.MetaLastSyncTime:      domain.SyncTimeNever,
	}
	for key, value := range defaults {
		_, err := GetMeta(ctx, db, key)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := PutMeta(ctx, db, key, value, now); err != nil {
			return err
		}
	}
	return nil
}
