// Package session models the order currently being handled at the till: the
// line items, the chosen payment method, and the computed totals, together
// with the operator identity the rest of the engine stamps onto logs and
// dockets.
//
// The operator identity is an explicit value passed into the reconciler's
// constructor, deliberately not a package-level global: two terminals in one
// process (tests do this constantly) must never share a cashier name.
package session

import (
	"strings"
	"sync"

	"github.com/looppos/terminal-sync/internal/domain"
)

// Context identifies who is operating which till.
type Context struct {
	StationID string
	Cashier   string
}

// Rates holds the tax rates the session applies: one for cash, one for
// everything else.
type Rates struct {
	Cash float64
	Card float64
}

// PaymentCash is the payment method value that selects the cash tax rate.
const PaymentCash = "cash"

// Order is a snapshot of the current order, ready to commit.
type Order struct {
	Items         []domain.LineItem
	PaymentMethod string
	// RecalledID is set when the order was recalled from the journal for
	// payment; it carries the transaction id the payment references.
	RecalledID string
}

// Subtotal sums price times quantity over all lines. Missing prices count
// as zero rather than failing the whole order.
func (o Order) Subtotal() float64 {
	var sum float64
	for _, it := range o.Items {
		if it.Quantity <= 0 {
			continue
		}
		sum += it.Price * float64(it.Quantity)
	}
	return sum
}

// TaxRate selects the rate for the order's payment method.
func (o Order) TaxRate(r Rates) float64 {
	if strings.EqualFold(o.PaymentMethod, PaymentCash) {
		return r.Cash
	}
	return r.Card
}

// Tax returns the tax amount for the order.
func (o Order) Tax(r Rates) float64 {
	return o.Subtotal() * o.TaxRate(r)
}

// Total returns subtotal plus tax.
func (o Order) Total(r Rates) float64 {
	return o.Subtotal() + o.Tax(r)
}

// Session is a mutable order under construction. It is safe for concurrent
// use; the till UI mutates it from user actions while background syncs read
// snapshots.
type Session struct {
	mu            sync.Mutex
	items         []domain.LineItem
	paymentMethod string
	recalledID    string
}

// New returns an empty session.
func New() *Session {
	return &Session{}
}

// AddItem appends a line, merging quantity into an existing line with the
// same item id.
func (s *Session) AddItem(item domain.LineItem) {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == item.ID {
			s.items[i].Quantity += item.Quantity
			return
		}
	}
	s.items = append(s.items, item)
}

// RemoveItem drops the line with the given item id, if present.
func (s *Session) RemoveItem(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// SetPaymentMethod records the selected payment method.
func (s *Session) SetPaymentMethod(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentMethod = method
}

// Recall loads a journal transaction into the session for payment.
func (s *Session) Recall(t domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recalledID = t.TransactionID
	s.paymentMethod = t.PaymentMethod
	s.items = s.items[:0]
	for _, it := range t.Items {
		s.items = append(s.items, domain.LineItem{
			ID:       it.ItemID.String(),
			Name:     it.ItemName,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}
}

// Clear empties the session. The recalled id is dropped too: clearing a
// recalled transaction abandons the payment, it does not delete the record.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.items[:0]
	s.paymentMethod = ""
	s.recalledID = ""
}

// Snapshot returns an immutable copy of the current order.
func (s *Session) Snapshot() Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.LineItem, len(s.items))
	copy(items, s.items)
	return Order{
		Items:         items,
		PaymentMethod: s.paymentMethod,
		RecalledID:    s.recalledID,
	}
}
