// Package domain defines the core persistence models for the terminal.
// These types are used by GORM for database schema mapping and are shared
// across the store and service layers.
package domain

import "time"

// Idempotency scopes for commit endpoints.
const (
	IdemScopeOrder   = "order"
	IdemScopePayment = "payment"
)

// Idempotency records the outcome of a previously processed commit, keyed by
// (station_id, scope, key). A cashier double-tapping "send to kitchen" or a
// UI retry after a timeout replays the originally issued transaction id
// instead of punching the order twice.
type Idempotency struct {
	ID            string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	StationID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_station_scope_key,priority:1"`
	Scope         string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_station_scope_key,priority:2"`
	Key           string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_station_scope_key,priority:3"`
	TransactionID string    `gorm:"type:TEXT NOT NULL"`
	Offline       bool      `gorm:"type:INTEGER NOT NULL;default:0"`
	CreatedAt     time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt     time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
