// Package repo implements the durable local queue for the terminal,
// backed by GORM. This file maintains the cached-transaction mirror: a
// read replica of the backend's transaction list used to serve recall while
// offline. The mirror is never a source of truth for identifiers.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/looppos/terminal-sync/internal/domain"
)

// ReplaceCache rebuilds the mirror from a fresh server fetch. The clear and
// repopulate run inside one database transaction: either the whole mirror is
// refreshed or the previous cache is retained untouched. A stale mirror is
// still safe for offline recall; a half-written one is not.
//
// Individual malformed records (missing transaction id, unserializable
// payload) are skipped and the rest of the refresh continues. Offline-to-
// server id mappings recorded by earlier drains are carried over so a
// provisional receipt stays reconcilable after a rebuild.
//
// Returns the number of records cached.
func ReplaceCache(ctx context.Context, db *gorm.DB, txs []domain.Transaction, now time.Time) (int, error) {
	cached := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Preserve offline id mappings before clearing.
		var mapped []domain.CachedTransaction
		if err := tx.Select("transaction_id", "offline_transaction_id").
			Where("offline_transaction_id <> ''").
			Find(&mapped).Error; err != nil {
			return err
		}
		offlineByID := make(map[string]string, len(mapped))
		for _, m := range mapped {
			offlineByID[m.TransactionID] = m.OfflineTransactionID
		}

		if err := tx.Where("1 = 1").Delete(&domain.CachedTransaction{}).Error; err != nil {
			return err
		}

		for _, t := range txs {
			if t.TransactionID == "" {
				continue // malformed record from the server; skip, keep going
			}
			payload, err := json.Marshal(t)
			if err != nil {
				continue
			}
			rec := domain.CachedTransaction{
				TransactionID:        t.TransactionID,
				OfflineTransactionID: offlineByID[t.TransactionID],
				Payload:              string(payload),
				Total:                t.Total,
				Date:                 t.Date,
				CachedAt:             now.UTC(),
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
				return err
			}
			cached++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cached, nil
}

// RecordSyncedTransaction upserts a mirror record immediately after a drained
// order was acknowledged, linking the provisional offline id to the server
// issued one.
func RecordSyncedTransaction(ctx context.Context, db *gorm.DB, offlineID string, t domain.Transaction, now time.Time) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	rec := domain.CachedTransaction{
		TransactionID:        t.TransactionID,
		OfflineTransactionID: offlineID,
		Payload:              string(payload),
		Total:                t.Total,
		Date:                 t.Date,
		CachedAt:             now.UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

// CountCached returns the number of mirrored transactions.
func CountCached(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.CachedTransaction{}).Count(&n).Error
	return n, err
}

// ListCached returns a page of mirrored transactions, most recent first,
// decoded back into their wire shape.
func ListCached(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Transaction, error) {
	var recs []domain.CachedTransaction
	err := db.WithContext(ctx).
		Order("date desc").
		Offset(offset).
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(recs))
	for _, rec := range recs {
		var t domain.Transaction
		if err := json.Unmarshal([]byte(rec.Payload), &t); err != nil {
			continue // tolerate a corrupt row rather than failing the listing
		}
		out = append(out, t)
	}
	return out, nil
}

// GetCached fetches a single mirrored transaction by its server id,
// or ErrNotFound.
func GetCached(ctx context.Context, db *gorm.DB, transactionID string) (*domain.Transaction, error) {
	var rec domain.CachedTransaction
	if err := db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&rec).Error; err != nil {
		return nil, err
	}
	var t domain.Transaction
	if err := json.Unmarshal([]byte(rec.Payload), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByOfflineID resolves a provisional offline id to the mirror record that
// maps it to a server id, or ErrNotFound if the order has not synced yet.
func FindByOfflineID(ctx context.Context, db *gorm.DB, offlineID string) (*domain.CachedTransaction, error) {
	var rec domain.CachedTransaction
	err := db.WithContext(ctx).Where("offline_transaction_id = ?", offlineID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
