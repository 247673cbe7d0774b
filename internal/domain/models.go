// Package domain defines the persistence models for the terminal's durable
// offline queue and the wire types exchanged with the POS backend. The queue
// models are mapped with GORM onto the embedded SQLite store; the wire types
// mirror the backend's transaction documents.
package domain

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Transaction field values as stored by the backend. Transactions are never
// physically deleted; they only move between these statuses.
const (
	OrderPunchedYes = "yes"
	OrderPunchedNo  = "no"

	PaidStatusPaid    = "paid"
	PaidStatusNotPaid = "not paid"

	StatusProcessed = "processed"
	StatusSuspended = "suspended"
)

// Metadata keys used by the local store. SeedTransactionID matches the
// backend counter's initial value, so a fresh terminal that has never synced
// still allocates provisional ids in the server's range.
const (
	MetaLastTransactionID = "lastTransactionID"
	MetaLastSyncTime      = "lastSyncTime"

	SeedTransactionID = "110000"
	SyncTimeNever     = "never"
)

// LineItem is a single order line as the cashier builds it and as the order
// and payment endpoints accept it.
type LineItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// TransactionItem is a line item in the shape the backend stores and returns.
type TransactionItem struct {
	ItemID   ItemID  `json:"itemId"`
	ItemName string  `json:"itemName"`
	Quantity int     `json:"itemQuantity"`
	Price    float64 `json:"price"`
}

// Transaction is the backend's unit of business record. TransactionID is a
// six digit, zero padded string: server issued from a persistent counter, or
// locally provisional while offline.
type Transaction struct {
	TransactionID     string            `json:"transactionID"`
	Items             []TransactionItem `json:"items"`
	Total             float64           `json:"total"`
	PaymentMethod     string            `json:"paymentMethod"`
	Date              time.Time         `json:"date"`
	OrderPunched      string            `json:"orderPunched"`
	PaidStatus        string            `json:"paidStatus"`
	TransactionStatus string            `json:"transactionStatus"`
}

// OrderPayload is the body of POST /transactions/order. The field names
// match the backend contract, including the provisional TransactionID carried
// by orders created while offline.
type OrderPayload struct {
	Items         []LineItem `json:"selectedItems"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"selectedPaymentMethod"`
	Date          time.Time  `json:"date,omitempty"`
	TransactionID string     `json:"transactionID,omitempty"`
}

// PaymentPayload is the body of POST /transactions/pay.
type PaymentPayload struct {
	TransactionID string     `json:"transactionID"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"paymentMethod"`
	Items         []LineItem `json:"items"`
}

// PendingOrder is a queued order commit awaiting sync. LocalID is the queue's
// primary key and never leaves the terminal; OfflineTransactionID is the
// provisional id allocated when the order was taken.
//
// Rejected marks entries the server refused with a permanent (4xx) error.
// They are excluded from automatic retry but kept visible for the operator.
type PendingOrder struct {
	LocalID              string    `json:"local_id"               gorm:"type:TEXT NOT NULL;primaryKey"`
	OfflineTransactionID string    `json:"offline_transaction_id" gorm:"type:TEXT NOT NULL;index"`
	Payload              string    `json:"payload"                gorm:"type:TEXT NOT NULL"`
	Attempts             int       `json:"attempts"               gorm:"type:INTEGER NOT NULL;default:0"`
	Rejected             bool      `json:"rejected"               gorm:"type:INTEGER NOT NULL;default:0"`
	LastError            string    `json:"last_error,omitempty"   gorm:"type:TEXT"`
	CreatedAt            time.Time `json:"created_at"             gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (PendingOrder) TableName() string { return "pending_orders" }

// PendingPayment is a queued payment commit awaiting sync. TransactionID may
// reference a provisional offline order id; the drain rewrites it to the
// server id once the paired order has synced.
type PendingPayment struct {
	LocalID       string    `json:"local_id"             gorm:"type:TEXT NOT NULL;primaryKey"`
	TransactionID string    `json:"transaction_id"       gorm:"type:TEXT NOT NULL;index"`
	Payload       string    `json:"payload"              gorm:"type:TEXT NOT NULL"`
	Attempts      int       `json:"attempts"             gorm:"type:INTEGER NOT NULL;default:0"`
	Rejected      bool      `json:"rejected"             gorm:"type:INTEGER NOT NULL;default:0"`
	LastError     string    `json:"last_error,omitempty" gorm:"type:TEXT"`
	CreatedAt     time.Time `json:"created_at"           gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (PendingPayment) TableName() string { return "pending_payments" }

// CachedTransaction is the read-only local mirror of a server transaction,
// rebuilt on every successful online fetch and used only for offline recall.
// OfflineTransactionID links a synced record back to the provisional id it
// was taken under, so a provisional receipt printed offline can still be
// reconciled by a human.
type CachedTransaction struct {
	TransactionID        string    `json:"transaction_id"                   gorm:"type:TEXT NOT NULL;primaryKey"`
	OfflineTransactionID string    `json:"offline_transaction_id,omitempty" gorm:"type:TEXT;index"`
	Payload              string    `json:"payload"                          gorm:"type:TEXT NOT NULL"`
	Total                float64   `json:"total"                            gorm:"type:REAL NOT NULL"`
	Date                 time.Time `json:"date"                             gorm:"type:DATETIME NOT NULL;index"`
	CachedAt             time.Time `json:"cached_at"                        gorm:"type:DATETIME NOT NULL"`
}

// TableName implements the GORM tabler interface.
func (CachedTransaction) TableName() string { return "cached_transactions" }

// Metadata is a key/value record. The store holds one logical metadata
// document (last transaction id, last sync time) spread across keyed rows.
type Metadata struct {
	Key       string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Value     string    `gorm:"type:TEXT NOT NULL"`
	UpdatedAt time.Time `gorm:"type:DATETIME NOT NULL"`
}

// TableName implements the GORM tabler interface.
func (Metadata) TableName() string { return "metadata" }

// NewLocalID returns a process-unique queue key: millisecond timestamp plus a
// random suffix. It is never sent to the server.
func NewLocalID(now time.Time) string {
	return fmt.Sprintf("local_%d_%03d", now.UnixMilli(), rand.IntN(1000))
}
