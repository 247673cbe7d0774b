package session

import (
	"math"
	"testing"

	"github.com/looppos/terminal-sync/internal/domain"
)

var testRates = Rates{Cash: 0.15, Card: 0.05}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestOrder_Totals(t *testing.T) {
	o := Order{
		Items: []domain.LineItem{
			{ID: "1", Name: "latte", Quantity: 2, Price: 4.50},
			{ID: "2", Name: "muffin", Quantity: 1, Price: 3.00},
			{ID: "3", Name: "void line", Quantity: 0, Price: 99}, // ignored
		},
		PaymentMethod: "card",
	}
	if got := o.Subtotal(); !approx(got, 12.00) {
		t.Fatalf("Subtotal = %v; want 12.00", got)
	}
	if got := o.Tax(testRates); !approx(got, 0.60) {
		t.Fatalf("Tax = %v; want 0.60", got)
	}
	if got := o.Total(testRates); !approx(got, 12.60) {
		t.Fatalf("Total = %v; want 12.60", got)
	}
}

func TestOrder_TaxRateByPaymentMethod(t *testing.T) {
	cash := Order{PaymentMethod: "cash"}
	if cash.TaxRate(testRates) != 0.15 {
		t.Fatalf("cash rate = %v", cash.TaxRate(testRates))
	}
	// Case-insensitive match.
	caps := Order{PaymentMethod: "CASH"}
	if caps.TaxRate(testRates) != 0.15 {
		t.Fatalf("CASH rate = %v", caps.TaxRate(testRates))
	}
	card := Order{PaymentMethod: "card"}
	if card.TaxRate(testRates) != 0.05 {
		t.Fatalf("card rate = %v", card.TaxRate(testRates))
	}
	// Unknown methods fall through to the card rate.
	other := Order{PaymentMethod: "voucher"}
	if other.TaxRate(testRates) != 0.05 {
		t.Fatalf("voucher rate = %v", other.TaxRate(testRates))
	}
}

func TestSession_AddItem_MergesQuantities(t *testing.T) {
	s := New()
	s.AddItem(domain.LineItem{ID: "1", Name: "latte", Quantity: 1, Price: 4.50})
	s.AddItem(domain.LineItem{ID: "1", Name: "latte", Quantity: 2, Price: 4.50})
	s.AddItem(domain.LineItem{ID: "2", Name: "muffin", Price: 3.00}) // quantity defaults to 1

	got := s.Snapshot()
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 lines, got %+v", got.Items)
	}
	if got.Items[0].Quantity != 3 {
		t.Fatalf("quantities not merged: %+v", got.Items[0])
	}
	if got.Items[1].Quantity != 1 {
		t.Fatalf("default quantity not applied: %+v", got.Items[1])
	}
}

func TestSession_RemoveItem(t *testing.T) {
	s := New()
	s.AddItem(domain.LineItem{ID: "1", Quantity: 1})
	s.AddItem(domain.LineItem{ID: "2", Quantity: 1})
	s.RemoveItem("1")
	s.RemoveItem("nope") // no-op

	got := s.Snapshot()
	if len(got.Items) != 1 || got.Items[0].ID != "2" {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
}

func TestSession_RecallAndClear(t *testing.T) {
	s := New()
	s.AddItem(domain.LineItem{ID: "leftover", Quantity: 1})

	s.Recall(domain.Transaction{
		TransactionID: "110205",
		PaymentMethod: "cash",
		Items: []domain.TransactionItem{
			{ItemID: domain.ItemID("1"), ItemName: "latte", Quantity: 2, Price: 4.50},
		},
	})
	got := s.Snapshot()
	if got.RecalledID != "110205" || got.PaymentMethod != "cash" {
		t.Fatalf("recall metadata wrong: %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].ID != "1" || got.Items[0].Quantity != 2 {
		t.Fatalf("recall should replace items: %+v", got.Items)
	}

	s.Clear()
	got = s.Snapshot()
	if len(got.Items) != 0 || got.PaymentMethod != "" || got.RecalledID != "" {
		t.Fatalf("clear left state behind: %+v", got)
	}
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	s := New()
	s.AddItem(domain.LineItem{ID: "1", Quantity: 1, Price: 4.50})

	snap := s.Snapshot()
	snap.Items[0].Price = 999

	if got := s.Snapshot(); got.Items[0].Price != 4.50 {
		t.Fatalf("snapshot mutation leaked into session: %+v", got.Items[0])
	}
}
