package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/looppos/terminal-sync/internal/domain"
)

// newBackend spins up a stub backend with per-route handlers.
func newBackend(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second)
}

func TestLatestTransactionID_DedicatedEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transactions/latest-transaction-id", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"latestTransactionID": "110321"})
	})
	c := newBackend(t, mux)

	id, err := c.LatestTransactionID(context.Background())
	if err != nil || id != "110321" {
		t.Fatalf("LatestTransactionID = %q, %v", id, err)
	}
}

func TestLatestTransactionID_FallsBackToListing(t *testing.T) {
	mux := http.NewServeMux()
	// Dedicated endpoint missing on older backends.
	mux.HandleFunc("/api/transactions/latest-transaction-id", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/api/transactions/orders", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]domain.Transaction{
			{TransactionID: "110002"},
			{TransactionID: "110010"},
			{TransactionID: "corrupt"},
			{TransactionID: "110003"},
		})
	})
	c := newBackend(t, mux)

	id, err := c.LatestTransactionID(context.Background())
	if err != nil || id != "110010" {
		t.Fatalf("LatestTransactionID fallback = %q, %v", id, err)
	}
}

func TestLatestTransactionID_EmptyBackendReturnsSeed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transactions/latest-transaction-id", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/api/transactions/orders", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r) // empty collection answers 404
	})
	c := newBackend(t, mux)

	id, err := c.LatestTransactionID(context.Background())
	if err != nil || id != domain.SeedTransactionID {
		t.Fatalf("LatestTransactionID on empty backend = %q, %v", id, err)
	}
}

func TestMaxTransactionID(t *testing.T) {
	txs := []domain.Transaction{
		{TransactionID: "110002"},
		{TransactionID: "000110"},
		{TransactionID: "garbage"},
	}
	if got := MaxTransactionID(txs); got != "110002" {
		t.Fatalf("MaxTransactionID = %q", got)
	}
	if got := MaxTransactionID(nil); got != "" {
		t.Fatalf("MaxTransactionID(nil) = %q", got)
	}
}

func TestSubmitOrder_ReturnsServerID(t *testing.T) {
	var got domain.OrderPayload
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transactions/order", func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "ok", "transactionID": "110205"})
	})
	c := newBackend(t, mux)

	id, err := c.SubmitOrder(context.Background(), domain.OrderPayload{
		Items:         []domain.LineItem{{ID: "1", Name: "latte", Quantity: 2, Price: 4.5}},
		Total:         9.45,
		PaymentMethod: "card",
	})
	if err != nil || id != "110205" {
		t.Fatalf("SubmitOrder = %q, %v", id, err)
	}
	if len(got.Items) != 1 || got.PaymentMethod != "card" {
		t.Fatalf("payload not delivered intact: %+v", got)
	}
}

func TestSubmitOrder_MissingIDIsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transactions/order", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	})
	c := newBackend(t, mux)
	if _, err := c.SubmitOrder(context.Background(), domain.OrderPayload{}); err == nil {
		t.Fatalf("expected error when acknowledgment lacks a transaction id")
	}
}

func TestSubmitPayment_ErrorEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transactions/pay", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "transaction not found"})
	})
	c := newBackend(t, mux)

	err := c.SubmitPayment(context.Background(), domain.PaymentPayload{TransactionID: "110001"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "transaction not found" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
	if !IsPermanent(err) || IsTransient(err) {
		t.Fatalf("400 should be permanent")
	}
}

func TestListTransactions_Empty404IsNotAnError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transactions/orders", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	c := newBackend(t, mux)

	txs, err := c.ListTransactions(context.Background())
	if err != nil || txs != nil {
		t.Fatalf("ListTransactions on empty backend = %v, %v", txs, err)
	}
}

func TestSuspendTransactions_SendsIDs(t *testing.T) {
	var got map[string][]string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transactions/suspend", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	})
	c := newBackend(t, mux)

	if err := c.SuspendTransactions(context.Background(), []string{"110001", "110002"}); err != nil {
		t.Fatalf("SuspendTransactions: %v", err)
	}
	if len(got["transactionIDs"]) != 2 {
		t.Fatalf("ids not delivered: %+v", got)
	}
}

func TestStockEndpoints_Roundtrip(t *testing.T) {
	var written []StockItem
	mux := http.NewServeMux()
	mux.HandleFunc("/api/menu/finishedgoods", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]FinishedGood{
			{ID: "1", Name: "latte", RawIngredients: []RawIngredient{{RawID: "milk", RawConsume: 0.2}}},
		})
	})
	mux.HandleFunc("/api/menu/bom", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]StockItem{{RawID: "milk", Name: "Milk", Quantity: 5}})
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&written)
			w.WriteHeader(http.StatusOK)
		}
	})
	c := newBackend(t, mux)
	ctx := context.Background()

	goods, err := c.FinishedGoods(ctx)
	if err != nil || len(goods) != 1 || goods[0].RawIngredients[0].RawID != "milk" {
		t.Fatalf("FinishedGoods = %+v, %v", goods, err)
	}
	stock, err := c.StockLevels(ctx)
	if err != nil || len(stock) != 1 || stock[0].Quantity != 5 {
		t.Fatalf("StockLevels = %+v, %v", stock, err)
	}
	stock[0].Quantity = 4.6
	if err := c.UpdateStock(ctx, stock); err != nil {
		t.Fatalf("UpdateStock: %v", err)
	}
	if len(written) != 1 || written[0].Quantity != 4.6 {
		t.Fatalf("stock write not delivered: %+v", written)
	}
}

func TestProbe_AnyResponseIsReachable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transactions/latest-transaction-id", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusInternalServerError)
	})
	c := newBackend(t, mux)

	// A 500 still means the link is up and the backend answered.
	if err := c.Probe(context.Background()); err != nil {
		t.Fatalf("Probe on 500 should be reachable: %v", err)
	}
}

func TestProbe_TransportFailureIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	srv.Close() // closed on purpose
	c := New(srv.URL, time.Second)

	if err := c.Probe(context.Background()); err == nil {
		t.Fatalf("expected probe failure against closed server")
	}
}

func TestAPIError_Classification(t *testing.T) {
	perm := &APIError{StatusCode: 422, Message: "bad item"}
	if !perm.Permanent() || !IsPermanent(perm) || IsTransient(perm) {
		t.Fatalf("422 should be permanent")
	}
	srvErr := &APIError{StatusCode: 503}
	if srvErr.Permanent() || IsPermanent(srvErr) || !IsTransient(srvErr) {
		t.Fatalf("503 should be transient")
	}
	if !IsTransient(errors.New("dial tcp: connection refused")) {
		t.Fatalf("transport errors are transient")
	}
	if IsTransient(nil) {
		t.Fatalf("nil error is not transient")
	}
	if perm.Error() != "backend returned 422: bad item" {
		t.Fatalf("unexpected message: %q", perm.Error())
	}
	if srvErr.Error() != "backend returned 503" {
		t.Fatalf("unexpected message: %q", srvErr.Error())
	}
}
