// Package scan decodes QR scanner keystrokes into transaction ids.
//
// Hardware scanners present as keyboards: they type the code very quickly
// and finish with Enter. The Buffer accumulates characters, treats a long
// inter-key gap as the start of a new scan (a human typing, or a previous
// scan that never terminated), and completes on the terminator. It is a pure
// state machine fed with explicit timestamps, so it is trivially testable
// and independent of any UI event loop.
package scan

import (
	"strings"
	"time"

	"github.com/looppos/terminal-sync/internal/domain"
	"github.com/looppos/terminal-sync/internal/idgen"
)

// DefaultGap is the maximum inter-key delay within one scan. Scanners send
// characters far faster than this; humans far slower.
const DefaultGap = 50 * time.Millisecond

// CompletedScan is one terminated scan, normalized for journal lookup.
type CompletedScan struct {
	// Code is the scanned value; all-numeric codes shorter than the id width
	// are zero-padded to six digits.
	Code string
	// Raw is the untouched buffer content.
	Raw string
}

// Buffer accumulates scanner keystrokes. Not safe for concurrent use; feed
// it from a single input source.
type Buffer struct {
	gap  time.Duration
	buf  strings.Builder
	last time.Time
}

// NewBuffer returns a Buffer with the given inter-key gap; gap <= 0 uses
// DefaultGap.
func NewBuffer(gap time.Duration) *Buffer {
	if gap <= 0 {
		gap = DefaultGap
	}
	return &Buffer{gap: gap}
}

// Feed consumes one keystroke at the given time. It returns a CompletedScan
// and true when the terminator arrives on a non-empty buffer; otherwise the
// zero value and false.
func (b *Buffer) Feed(r rune, at time.Time) (CompletedScan, bool) {
	// A long silence means whatever was buffered belongs to an abandoned
	// scan or manual typing; start fresh.
	if b.buf.Len() > 0 && !b.last.IsZero() && at.Sub(b.last) > b.gap {
		b.buf.Reset()
	}
	b.last = at

	if r == '\n' || r == '\r' {
		if b.buf.Len() == 0 {
			return CompletedScan{}, false
		}
		raw := b.buf.String()
		b.buf.Reset()
		return CompletedScan{Code: normalizeCode(raw), Raw: raw}, true
	}

	b.buf.WriteRune(r)
	return CompletedScan{}, false
}

// Pending returns the unterminated buffer content, for diagnostics.
func (b *Buffer) Pending() string { return b.buf.String() }

// Reset discards any buffered input.
func (b *Buffer) Reset() {
	b.buf.Reset()
	b.last = time.Time{}
}

// normalizeCode zero-pads short all-numeric codes to the id width. QR labels
// are sometimes produced without the leading zeros the journal stores.
func normalizeCode(code string) string {
	if len(code) >= idgen.Width || !allDigits(code) {
		return code
	}
	return strings.Repeat("0", idgen.Width-len(code)) + code
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MatchTransactionID reports whether a stored journal id refers to the same
// transaction as a scanned code. Besides the exact match it tolerates the
// two historical padding mismatches: ids stored without leading zeros, and
// codes scanned without them.
func MatchTransactionID(stored, code string) bool {
	if stored == code {
		return true
	}
	sn, serr := idgen.Parse(stored)
	cn, cerr := idgen.Parse(code)
	if serr != nil || cerr != nil {
		return false
	}
	return sn == cn
}

// FindTransaction locates the journal entry a completed scan refers to.
func FindTransaction(txs []domain.Transaction, code string) (*domain.Transaction, bool) {
	for i := range txs {
		if MatchTransactionID(txs[i].TransactionID, code) {
			return &txs[i], true
		}
	}
	return nil, false
}
