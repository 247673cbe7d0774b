package printer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/looppos/terminal-sync/internal/domain"
)

func testDocket() Docket {
	return Docket{
		Type:          DocketOrder,
		TransactionID: "110205",
		Items:         []domain.LineItem{{ID: "1", Name: "latte", Quantity: 2, Price: 4.50}},
		Subtotal:      9.00,
		Tax:           0.45,
		Total:         9.45,
		PaymentMethod: "card",
		StationID:     "till-1",
		IssuedAt:      time.Now().UTC(),
	}
}

func TestHTTPPrinter_PostsDocket(t *testing.T) {
	var got Docket
	var path, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode docket: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTP(srv.URL, 2*time.Second)
	if err := p.Print(context.Background(), testDocket()); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if path != "/api/print" {
		t.Fatalf("unexpected path %q", path)
	}
	if contentType != "application/json" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	if got.TransactionID != "110205" || got.Type != DocketOrder || len(got.Items) != 1 {
		t.Fatalf("unexpected docket received: %+v", got)
	}
}

func TestHTTPPrinter_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "jam", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewHTTP(srv.URL, 2*time.Second)
	if err := p.Print(context.Background(), testDocket()); err == nil {
		t.Fatalf("expected error on 503")
	}
}

func TestHTTPPrinter_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed on purpose

	p := NewHTTP(srv.URL, time.Second)
	if err := p.Print(context.Background(), testDocket()); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestNop_Discards(t *testing.T) {
	if err := (Nop{}).Print(context.Background(), testDocket()); err != nil {
		t.Fatalf("Nop.Print: %v", err)
	}
}
