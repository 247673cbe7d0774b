package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/looppos/terminal-sync/internal/domain"
)

func TestEnqueueAndListPendingOrders_OldestFirst(t *testing.T) {
	db := newRepoDB(t, &domain.PendingOrder{})
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	// insert out of order on purpose
	entries := []domain.PendingOrder{
		{LocalID: "l2", OfflineTransactionID: "110002", Payload: "{}", CreatedAt: t0.Add(time.Second)},
		{LocalID: "l1", OfflineTransactionID: "110001", Payload: "{}", CreatedAt: t0},
		{LocalID: "l3", OfflineTransactionID: "110003", Payload: "{}", CreatedAt: t0.Add(2 * time.Second)},
	}
	for i := range entries {
		if err := EnqueueOrder(ctx, db, &entries[i]); err != nil {
			t.Fatalf("enqueue %s: %v", entries[i].LocalID, err)
		}
	}

	got, err := ListPendingOrders(ctx, db, false)
	if err != nil {
		t.Fatalf("ListPendingOrders: %v", err)
	}
	if len(got) != 3 || got[0].LocalID != "l1" || got[1].LocalID != "l2" || got[2].LocalID != "l3" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestEnqueueOrder_DefaultsCreatedAt(t *testing.T) {
	db := newRepoDB(t, &domain.PendingOrder{})
	e := domain.PendingOrder{LocalID: "l1", OfflineTransactionID: "110001", Payload: "{}"}
	if err := EnqueueOrder(context.Background(), db, &e); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if e.CreatedAt.IsZero() || time.Since(e.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt not set reasonably: %v", e.CreatedAt)
	}
}

func TestListPending_RejectedFiltering(t *testing.T) {
	db := newRepoDB(t, &domain.PendingOrder{}, &domain.PendingPayment{})
	ctx := context.Background()

	for _, e := range []domain.PendingOrder{
		{LocalID: "ok", OfflineTransactionID: "110001", Payload: "{}"},
		{LocalID: "bad", OfflineTransactionID: "110002", Payload: "{}", Rejected: true},
	} {
		e := e
		if err := EnqueueOrder(ctx, db, &e); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	// includeRejected=false is the drain's view
	drainable, err := ListPendingOrders(ctx, db, false)
	if err != nil {
		t.Fatalf("ListPendingOrders(false): %v", err)
	}
	if len(drainable) != 1 || drainable[0].LocalID != "ok" {
		t.Fatalf("rejected entry should be filtered: %+v", drainable)
	}

	// includeRejected=true is the operator's view
	all, err := ListPendingOrders(ctx, db, true)
	if err != nil {
		t.Fatalf("ListPendingOrders(true): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both entries, got %+v", all)
	}
}

func TestRemovePending_DeletesAndNotFound(t *testing.T) {
	db := newRepoDB(t, &domain.PendingOrder{}, &domain.PendingPayment{})
	ctx := context.Background()

	o := domain.PendingOrder{LocalID: "lo", OfflineTransactionID: "110001", Payload: "{}"}
	if err := EnqueueOrder(ctx, db, &o); err != nil {
		t.Fatalf("enqueue order: %v", err)
	}
	p := domain.PendingPayment{LocalID: "lp", TransactionID: "110001", Payload: "{}"}
	if err := EnqueuePayment(ctx, db, &p); err != nil {
		t.Fatalf("enqueue payment: %v", err)
	}

	if err := RemovePendingOrder(ctx, db, "lo"); err != nil {
		t.Fatalf("RemovePendingOrder: %v", err)
	}
	if err := RemovePendingOrder(ctx, db, "lo"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
	if err := RemovePendingPayment(ctx, db, "lp"); err != nil {
		t.Fatalf("RemovePendingPayment: %v", err)
	}
	if err := RemovePendingPayment(ctx, db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown payment, got %v", err)
	}
}

func TestMarkAttempt_BumpsCounterAndFlagsRejection(t *testing.T) {
	db := newRepoDB(t, &domain.PendingOrder{})
	ctx := context.Background()

	e := domain.PendingOrder{LocalID: "l1", OfflineTransactionID: "110001", Payload: "{}"}
	if err := EnqueueOrder(ctx, db, &e); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := MarkOrderAttempt(ctx, db, "l1", "connection refused", false); err != nil {
		t.Fatalf("first MarkOrderAttempt: %v", err)
	}
	if err := MarkOrderAttempt(ctx, db, "l1", "status 400: bad item", true); err != nil {
		t.Fatalf("second MarkOrderAttempt: %v", err)
	}

	var got domain.PendingOrder
	if err := db.First(&got, "local_id = ?", "l1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.Attempts != 2 || !got.Rejected || got.LastError != "status 400: bad item" {
		t.Fatalf("unexpected entry after attempts: %+v", got)
	}

	if err := MarkOrderAttempt(ctx, db, "missing", "x", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown entry, got %v", err)
	}
}

func TestRewritePaymentTransactionID(t *testing.T) {
	db := newRepoDB(t, &domain.PendingPayment{})
	ctx := context.Background()

	p := domain.PendingPayment{LocalID: "lp", TransactionID: "110001", Payload: `{"transactionID":"110001"}`}
	if err := EnqueuePayment(ctx, db, &p); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := RewritePaymentTransactionID(ctx, db, "lp", "110300", `{"transactionID":"110300"}`); err != nil {
		t.Fatalf("RewritePaymentTransactionID: %v", err)
	}
	var got domain.PendingPayment
	if err := db.First(&got, "local_id = ?", "lp").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.TransactionID != "110300" || got.Payload != `{"transactionID":"110300"}` {
		t.Fatalf("rewrite did not take: %+v", got)
	}

	if err := RewritePaymentTransactionID(ctx, db, "nope", "1", "{}"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown entry, got %v", err)
	}
}

func TestCountPendingAndRejected(t *testing.T) {
	db := newRepoDB(t, &domain.PendingOrder{}, &domain.PendingPayment{})
	ctx := context.Background()

	o1 := domain.PendingOrder{LocalID: "o1", OfflineTransactionID: "110001", Payload: "{}"}
	o2 := domain.PendingOrder{LocalID: "o2", OfflineTransactionID: "110002", Payload: "{}", Rejected: true}
	p1 := domain.PendingPayment{LocalID: "p1", TransactionID: "110001", Payload: "{}"}
	for _, err := range []error{
		EnqueueOrder(ctx, db, &o1),
		EnqueueOrder(ctx, db, &o2),
		EnqueuePayment(ctx, db, &p1),
	} {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// CountPending includes rejected entries: still not on the backend.
	total, err := CountPending(ctx, db)
	if err != nil || total != 3 {
		t.Fatalf("CountPending = %d, %v; want 3", total, err)
	}
	rejected, err := CountRejected(ctx, db)
	if err != nil || rejected != 1 {
		t.Fatalf("CountRejected = %d, %v; want 1", rejected, err)
	}
}

func TestHasPendingOrderWithOfflineID(t *testing.T) {
	db := newRepoDB(t, &domain.PendingOrder{})
	ctx := context.Background()

	e := domain.PendingOrder{LocalID: "l1", OfflineTransactionID: "110005", Payload: "{}"}
	if err := EnqueueOrder(ctx, db, &e); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if ok, err := HasPendingOrderWithOfflineID(ctx, db, "110005"); err != nil || !ok {
		t.Fatalf("expected pending order for 110005, got ok=%v err=%v", ok, err)
	}
	if ok, err := HasPendingOrderWithOfflineID(ctx, db, "110006"); err != nil || ok {
		t.Fatalf("expected no pending order for 110006, got ok=%v err=%v", ok, err)
	}
}
