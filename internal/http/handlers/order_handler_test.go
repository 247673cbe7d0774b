package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/looppos/terminal-sync/internal/client"
	"github.com/looppos/terminal-sync/internal/domain"
	"github.com/looppos/terminal-sync/internal/http/middleware"
	"github.com/looppos/terminal-sync/internal/repo"
	"github.com/looppos/terminal-sync/internal/services"
	"github.com/looppos/terminal-sync/internal/session"
)

// ---------- test DB ----------

func newHandlersDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// ---------- flexible service stub ----------

type stubSyncService struct {
	commitOrder   func(context.Context, session.Order) (*services.CommitResult, error)
	commitPayment func(context.Context, string, session.Order) (*services.CommitResult, error)
	drain         func(context.Context) (*services.SyncReport, error)
	status        func(context.Context) (*services.SyncStatus, error)
	journal       func(context.Context, int, int) ([]domain.Transaction, int64, bool, error)
	recall        func(context.Context, string) (*domain.Transaction, error)
	suspend       func(context.Context, []string) error
}

func (s stubSyncService) CommitOrder(ctx context.Context, o session.Order) (*services.CommitResult, error) {
	if s.commitOrder != nil {
		return s.commitOrder(ctx, o)
	}
	return &services.CommitResult{TransactionID: "110205", Total: 9.45, Tax: 0.45}, nil
}

func (s stubSyncService) CommitPayment(ctx context.Context, id string, o session.Order) (*services.CommitResult, error) {
	if s.commitPayment != nil {
		return s.commitPayment(ctx, id, o)
	}
	return &services.CommitResult{TransactionID: id}, nil
}

func (s stubSyncService) Drain(ctx context.Context) (*services.SyncReport, error) {
	if s.drain != nil {
		return s.drain(ctx)
	}
	return &services.SyncReport{}, nil
}

func (s stubSyncService) Status(ctx context.Context) (*services.SyncStatus, error) {
	if s.status != nil {
		return s.status(ctx)
	}
	return &services.SyncStatus{StationID: "till-1"}, nil
}

func (s stubSyncService) Journal(ctx context.Context, page, pageSize int) ([]domain.Transaction, int64, bool, error) {
	if s.journal != nil {
		return s.journal(ctx, page, pageSize)
	}
	return nil, 0, false, nil
}

func (s stubSyncService) Recall(ctx context.Context, code string) (*domain.Transaction, error) {
	if s.recall != nil {
		return s.recall(ctx, code)
	}
	return nil, services.ErrTransactionNotFound
}

func (s stubSyncService) Suspend(ctx context.Context, ids []string) error {
	if s.suspend != nil {
		return s.suspend(ctx, ids)
	}
	return nil
}

// newOrderRouter wires the commit routes the way the real router does,
// including the idempotency key middleware.
func newOrderRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/orders", h.CommitOrder)
	r.POST("/payments", h.CommitPayment)
	return r
}

const orderBody = `{"selectedItems":[{"id":"1","name":"latte","quantity":2,"price":4.5}],"selectedPaymentMethod":"card"}`

// ---------- CommitOrder ----------

func TestCommitOrder_BadJSON(t *testing.T) {
	h := New(stubSyncService{}, nil, "till-1", time.Hour)
	r := newOrderRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{bad"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != ErrCodeBadRequest {
		t.Fatalf("unexpected envelope: %s", w.Body.String())
	}
}

func TestCommitOrder_Success(t *testing.T) {
	var got session.Order
	svc := stubSyncService{
		commitOrder: func(ctx context.Context, o session.Order) (*services.CommitResult, error) {
			got = o
			return &services.CommitResult{TransactionID: "110205", Total: 9.45, Tax: 0.45}, nil
		},
	}
	h := New(svc, nil, "till-1", time.Hour)
	r := newOrderRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(orderBody))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("commit -> %d body=%s", w.Code, w.Body.String())
	}

	var out CommitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.TransactionID != "110205" || out.Offline || out.Total != 9.45 || out.Replayed {
		t.Fatalf("unexpected response: %+v", out)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 || got.PaymentMethod != "card" {
		t.Fatalf("service args mismatch: %+v", got)
	}
}

func TestCommitOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no items", services.ErrNoItems, http.StatusBadRequest, ErrCodeBadRequest},
		{"no payment method", services.ErrNoPaymentMethod, http.StatusBadRequest, ErrCodeBadRequest},
		{"store unavailable", services.ErrOfflineStoreUnavailable, http.StatusServiceUnavailable, ErrCodeStoreUnavailable},
		{"backend unavailable", services.ErrBackendUnavailable, http.StatusServiceUnavailable, ErrCodeBackendUnavailable},
		{"backend rejection", &client.APIError{StatusCode: 422, Message: "bad item"}, http.StatusBadGateway, ErrCodeCommitFailed},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := stubSyncService{
				commitOrder: func(context.Context, session.Order) (*services.CommitResult, error) {
					return nil, tc.err
				},
			}
			h := New(svc, nil, "till-1", time.Hour)
			r := newOrderRouter(h)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(orderBody))
			r.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("status %d; want %d (body=%s)", w.Code, tc.wantStatus, w.Body.String())
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != tc.wantCode {
				t.Fatalf("code %q; want %q", er.Code, tc.wantCode)
			}
		})
	}
}

func TestCommitOrder_IdempotentReplay(t *testing.T) {
	db := newHandlersDB(t)
	commits := 0
	svc := stubSyncService{
		commitOrder: func(context.Context, session.Order) (*services.CommitResult, error) {
			commits++
			return &services.CommitResult{TransactionID: "110205", Total: 9.45, Tax: 0.45}, nil
		},
	}
	h := New(svc, db, "till-1", time.Hour)
	r := newOrderRouter(h)

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(orderBody))
		req.Header.Set(middleware.HeaderIdempotencyKey, "tap-1")
		r.ServeHTTP(w, req)
		return w
	}

	// First request commits.
	w := do()
	if w.Code != http.StatusCreated {
		t.Fatalf("first commit -> %d body=%s", w.Code, w.Body.String())
	}

	// Retry with the same key replays the stored outcome without committing.
	w = do()
	if w.Code != http.StatusOK {
		t.Fatalf("replay -> %d body=%s", w.Code, w.Body.String())
	}
	var out CommitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.TransactionID != "110205" || !out.Replayed {
		t.Fatalf("unexpected replay response: %+v", out)
	}
	if commits != 1 {
		t.Fatalf("expected exactly one commit, got %d", commits)
	}

	// A different key commits again.
	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(orderBody))
	req.Header.Set(middleware.HeaderIdempotencyKey, "tap-2")
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusCreated || commits != 2 {
		t.Fatalf("fresh key -> %d, commits=%d", w2.Code, commits)
	}
}

func TestCommitOrder_NilDB_NoReplay(t *testing.T) {
	commits := 0
	svc := stubSyncService{
		commitOrder: func(context.Context, session.Order) (*services.CommitResult, error) {
			commits++
			return &services.CommitResult{TransactionID: "110205"}, nil
		},
	}
	// Degraded mode: no store, so every request executes.
	h := New(svc, nil, "till-1", time.Hour)
	r := newOrderRouter(h)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(orderBody))
		req.Header.Set(middleware.HeaderIdempotencyKey, "tap-1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("commit %d -> %d", i, w.Code)
		}
	}
	if commits != 2 {
		t.Fatalf("expected both requests to commit, got %d", commits)
	}
}

// ---------- CommitPayment ----------

func TestCommitPayment_SuccessAndOfflineFlag(t *testing.T) {
	svc := stubSyncService{
		commitPayment: func(ctx context.Context, id string, o session.Order) (*services.CommitResult, error) {
			return &services.CommitResult{TransactionID: id, Offline: true, Total: 9.45, Tax: 0.45}, nil
		},
	}
	h := New(svc, nil, "till-1", time.Hour)
	r := newOrderRouter(h)

	body := `{"transactionID":"110001","items":[{"id":"1","quantity":1,"price":9}],"paymentMethod":"cash"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("payment -> %d body=%s", w.Code, w.Body.String())
	}
	var out CommitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.TransactionID != "110001" || !out.Offline {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestCommitPayment_MissingTransactionID(t *testing.T) {
	h := New(stubSyncService{}, nil, "till-1", time.Hour)
	r := newOrderRouter(h)

	// binding:"required" rejects the empty id before the service runs.
	body := `{"items":[{"id":"1","quantity":1,"price":9}],"paymentMethod":"cash"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing id -> %d", w.Code)
	}
}

func TestToCommitResponse_PrintFailure(t *testing.T) {
	res := &services.CommitResult{TransactionID: "110001", PrintErr: errors.New("printer jam")}
	out := toCommitResponse(res)
	if !out.PrintFailed {
		t.Fatalf("print failure not surfaced: %+v", out)
	}
}
