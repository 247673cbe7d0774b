// Package idgen produces transaction identifiers for the terminal.
//
// Server-issued ids come from the backend's persistent counter (seeded at
// 110000) and are zero-padded six digit strings. While offline, the terminal
// derives provisional ids by incrementing the last id it has seen, persisting
// each allocation immediately so that two offline orders in a row can never
// collide, even across a process restart.
//
// The last known id is monotonic: a server id observed during sync only
// replaces it when numerically greater. It never regresses.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/looppos/terminal-sync/internal/domain"
	"github.com/looppos/terminal-sync/internal/repo"
)

// Width is the zero-padded width of a transaction id.
const Width = 6

// ErrCorruptID reports a stored last-known id that is not numeric. This is
// fatal for offline allocation: silently defaulting would risk handing out
// ids that collide with real server records, so the operator must intervene.
var ErrCorruptID = errors.New("last known transaction id is corrupt")

// Parse returns the numeric value of a zero-padded transaction id.
// It rejects empty and non-numeric values with ErrCorruptID.
func Parse(id string) (int64, error) {
	s := strings.TrimSpace(id)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrCorruptID)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrCorruptID, id)
		}
	}
	// Strip leading zeros; all-zero input parses to 0.
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrCorruptID, id)
	}
	return n, nil
}

// Format renders a numeric id back to its zero-padded string form. Values
// wider than six digits keep their natural length.
func Format(n int64) string {
	return fmt.Sprintf("%0*d", Width, n)
}

// Next returns the id following lastKnown.
func Next(lastKnown string) (string, error) {
	n, err := Parse(lastKnown)
	if err != nil {
		return "", err
	}
	return Format(n + 1), nil
}

// Allocator manages the persisted last-known transaction id through the
// queue database's metadata table.
//
// Safe for concurrent use: the HTTP server commits orders concurrently, so
// every read-modify-write of the counter is serialized under a single mutex.
type Allocator struct {
	// DB is the GORM handle for the local queue database.
	DB *gorm.DB

	// mu serializes counter updates. The daemon is the sole writer of the
	// queue database, so a process-level lock is sufficient.
	mu sync.Mutex
}

// NewAllocator constructs an Allocator over the queue database.
func NewAllocator(db *gorm.DB) *Allocator {
	return &Allocator{DB: db}
}

// LastKnown returns the persisted last-known transaction id.
func (a *Allocator) LastKnown(ctx context.Context) (string, error) {
	v, err := repo.GetMeta(ctx, a.DB, domain.MetaLastTransactionID)
	if err != nil {
		return "", err
	}
	if _, perr := Parse(v); perr != nil {
		return "", perr
	}
	return v, nil
}

// NextOffline allocates a provisional id for an order taken while offline:
// last known plus one, persisted as the new last known before it is returned.
// Concurrent callers always receive distinct ids.
func (a *Allocator) NextOffline(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	last, err := a.LastKnown(ctx)
	if err != nil {
		return "", err
	}
	id, err := Next(last)
	if err != nil {
		return "", err
	}
	if err := repo.PutMeta(ctx, a.DB, domain.MetaLastTransactionID, id, time.Now()); err != nil {
		return "", err
	}
	return id, nil
}

// RecordServerID folds a server-issued id into the last-known value. The
// update only happens when the server id is numerically greater than the
// current value; it reports whether the value advanced.
func (a *Allocator) RecordServerID(ctx context.Context, serverID string) (bool, error) {
	n, err := Parse(serverID)
	if err != nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	last, err := a.LastKnown(ctx)
	if err != nil {
		return false, err
	}
	cur, err := Parse(last)
	if err != nil {
		return false, err
	}
	if n <= cur {
		return false, nil
	}
	if err := repo.PutMeta(ctx, a.DB, domain.MetaLastTransactionID, Format(n), time.Now()); err != nil {
		return false, err
	}
	return true, nil
}
