// Package repo implements the durable local queue for the terminal,
// backed by GORM. This file provides repository functions for the pending
// tables: orders and payments captured while the backend was unreachable.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no sync logic, only CRUD
// persistence and query composition.
//
// Queue invariants:
//   - An entry's full payload is written in a single row insert; a pending
//     order is never partially persisted.
//   - Entries are only removed after the backend acknowledged the operation;
//     everything else survives restarts.
//   - Listing is strictly oldest-first by created_at, the order the drain
//     must submit in.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/looppos/terminal-sync/internal/domain"
)

// EnqueueOrder persists a pending order. The payload is stored verbatim as a
// single row, so the write is atomic.
func EnqueueOrder(ctx context.Context, db *gorm.DB, entry *domain.PendingOrder) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(entry).Error
}

// EnqueuePayment persists a pending payment.
func EnqueuePayment(ctx context.Context, db *gorm.DB, entry *domain.PendingPayment) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(entry).Error
}

// ListPendingOrders returns queued orders oldest-first. When includeRejected
// is false, entries the backend permanently refused are filtered out; the
// drain uses that mode so rejected payloads are not retried automatically.
func ListPendingOrders(ctx context.Context, db *gorm.DB, includeRejected bool) ([]domain.PendingOrder, error) {
	q := db.WithContext(ctx).Order("created_at asc")
	if !includeRejected {
		q = q.Where("rejected = ?", false)
	}
	var out []domain.PendingOrder
	err := q.Find(&out).Error
	return out, err
}

// ListPendingPayments returns queued payments oldest-first, with the same
// rejected filtering as ListPendingOrders.
func ListPendingPayments(ctx context.Context, db *gorm.DB, includeRejected bool) ([]domain.PendingPayment, error) {
	q := db.WithContext(ctx).Order("created_at asc")
	if !includeRejected {
		q = q.Where("rejected = ?", false)
	}
	var out []domain.PendingPayment
	err := q.Find(&out).Error
	return out, err
}

// RemovePendingOrder deletes a queue entry after the backend acknowledged it.
// Returns ErrNotFound if no entry with that local id exists.
func RemovePendingOrder(ctx context.Context, db *gorm.DB, localID string) error {
	res := db.WithContext(ctx).Where("local_id = ?", localID).Delete(&domain.PendingOrder{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RemovePendingPayment deletes a queued payment after acknowledgment.
func RemovePendingPayment(ctx context.Context, db *gorm.DB, localID string) error {
	res := db.WithContext(ctx).Where("local_id = ?", localID).Delete(&domain.PendingPayment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOrderAttempt records a failed submission: bumps the attempt counter,
// stores the error text for diagnostics, and flags permanent rejections.
func MarkOrderAttempt(ctx context.Context, db *gorm.DB, localID, lastError string, rejected bool) error {
	res := db.WithContext(ctx).
		Model(&domain.PendingOrder{}).
		Where("local_id = ?", localID).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
			"rejected":   rejected,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaymentAttempt is the payment counterpart of MarkOrderAttempt.
func MarkPaymentAttempt(ctx context.Context, db *gorm.DB, localID, lastError string, rejected bool) error {
	res := db.WithContext(ctx).
		Model(&domain.PendingPayment{}).
		Where("local_id = ?", localID).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
			"rejected":   rejected,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RewritePaymentTransactionID updates a queued payment after the paired
// offline order was remapped to a server-issued id. Both the indexed column
// and the serialized payload are replaced in one update.
func RewritePaymentTransactionID(ctx context.Context, db *gorm.DB, localID, transactionID, payload string) error {
	res := db.WithContext(ctx).
		Model(&domain.PendingPayment{}).
		Where("local_id = ?", localID).
		Updates(map[string]interface{}{
			"transaction_id": transactionID,
			"payload":        payload,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPending returns the total number of queued entries (orders plus
// payments), including rejected ones: the operator must be able to see
// everything that has not reached the backend yet.
func CountPending(ctx context.Context, db *gorm.DB) (int64, error) {
	var orders, payments int64
	if err := db.WithContext(ctx).Model(&domain.PendingOrder{}).Count(&orders).Error; err != nil {
		return 0, err
	}
	if err := db.WithContext(ctx).Model(&domain.PendingPayment{}).Count(&payments).Error; err != nil {
		return 0, err
	}
	return orders + payments, nil
}

// CountRejected returns the number of queued entries flagged as permanently
// rejected by the backend.
func CountRejected(ctx context.Context, db *gorm.DB) (int64, error) {
	var orders, payments int64
	if err := db.WithContext(ctx).Model(&domain.PendingOrder{}).Where("rejected = ?", true).Count(&orders).Error; err != nil {
		return 0, err
	}
	if err := db.WithContext(ctx).Model(&domain.PendingPayment{}).Where("rejected = ?", true).Count(&payments).Error; err != nil {
		return 0, err
	}
	return orders + payments, nil
}

// HasPendingOrderWithOfflineID reports whether an un-synced order still holds
// the given provisional transaction id. The drain uses this to defer payments
// that reference an order which has not been remapped yet.
func HasPendingOrderWithOfflineID(ctx context.Context, db *gorm.DB, offlineID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.PendingOrder{}).
		Where("offline_transaction_id = ?", offlineID).
		Count(&n).Error
	return n > 0, err
}
