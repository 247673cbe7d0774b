// Order and payment commit handlers.
//
// This file exposes the two commit endpoints of the terminal API:
//   - POST /orders     (punch the current order to the kitchen)
//   - POST /payments   (settle a transaction)
//
// Handlers are transport-thin: they validate input, call the reconciliation
// service, and translate results into HTTP responses. The commit outcome is
// the same shape online and offline; clients look at the `offline` flag, not
// the status code, to know which path was taken.
//
// Both endpoints honor the Idempotency-Key header. A replayed key returns
// the previously committed transaction id instead of committing twice, which
// is what makes a double-tapped commit button safe.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/looppos/terminal-sync/internal/client"
	"github.com/looppos/terminal-sync/internal/domain"
	"github.com/looppos/terminal-sync/internal/http/middleware"
	"github.com/looppos/terminal-sync/internal/repo"
	"github.com/looppos/terminal-sync/internal/services"
	"github.com/looppos/terminal-sync/internal/session"
)

// SyncService defines the reconciliation operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context for cancellation and timeouts.
type SyncService interface {
	// CommitOrder finalizes an order, online or queued.
	CommitOrder(ctx context.Context, order session.Order) (*services.CommitResult, error)
	// CommitPayment settles a transaction, online or queued.
	CommitPayment(ctx context.Context, transactionID string, order session.Order) (*services.CommitResult, error)
	// Drain pushes the offline queue to the backend.
	Drain(ctx context.Context) (*services.SyncReport, error)
	// Status reports the terminal's reconciliation state.
	Status(ctx context.Context) (*services.SyncStatus, error)
	// Journal returns a page of the transaction journal.
	Journal(ctx context.Context, page, pageSize int) ([]domain.Transaction, int64, bool, error)
	// Recall finds a transaction by scanned or typed code.
	Recall(ctx context.Context, code string) (*domain.Transaction, error)
	// Suspend parks transactions server-side.
	Suspend(ctx context.Context, transactionIDs []string) error
}

// Handlers groups the HTTP endpoints of the terminal API. It depends on the
// abstract SyncService interface to keep transport concerns separate from
// reconciliation logic; the DB handle is used only for idempotency records.
type Handlers struct {
	svc       SyncService
	db        *gorm.DB
	stationID string
	idemTTL   time.Duration
}

// New constructs a Handlers instance. db may be nil (degraded mode), in
// which case idempotency replay is disabled and every commit executes.
func New(svc SyncService, db *gorm.DB, stationID string, idemTTL time.Duration) *Handlers {
	return &Handlers{svc: svc, db: db, stationID: stationID, idemTTL: idemTTL}
}

//
// DTOs
//

// CommitOrderRequest is the JSON payload for punching an order.
type CommitOrderRequest struct {
	Items         []domain.LineItem `json:"selectedItems" binding:"required"`
	PaymentMethod string            `json:"selectedPaymentMethod" binding:"required"`
}

// CommitPaymentRequest is the JSON payload for settling a transaction.
type CommitPaymentRequest struct {
	TransactionID string            `json:"transactionID" binding:"required"`
	Items         []domain.LineItem `json:"items" binding:"required"`
	PaymentMethod string            `json:"paymentMethod" binding:"required"`
}

// CommitResponse reports a commit outcome to the till UI.
type CommitResponse struct {
	TransactionID     string  `json:"transactionID"`
	Offline           bool    `json:"offline"`
	Total             float64 `json:"total"`
	Tax               float64 `json:"tax"`
	InventoryFollowUp bool    `json:"inventoryFollowUp,omitempty"`
	PrintFailed       bool    `json:"printFailed,omitempty"`
	Replayed          bool    `json:"replayed,omitempty"`
}

//
// Handlers
//

// CommitOrder handles POST /orders. It finalizes the submitted order via the
// reconciliation service and returns the assigned transaction id, which is
// provisional when the terminal is offline.
func (h *Handlers) CommitOrder(c *gin.Context) {
	var req CommitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ctx := c.Request.Context()

	if resp, hit := h.replay(ctx, c, domain.IdemScopeOrder); hit {
		ok(c, http.StatusOK, resp)
		return
	}

	res, err := h.svc.CommitOrder(ctx, session.Order{
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		failCommit(c, err)
		return
	}

	h.remember(ctx, c, domain.IdemScopeOrder, res)
	ok(c, http.StatusCreated, toCommitResponse(res))
}

// CommitPayment handles POST /payments. The referenced transaction id may be
// a provisional offline id; the drain rewrites it once the order syncs.
func (h *Handlers) CommitPayment(c *gin.Context) {
	var req CommitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ctx := c.Request.Context()

	if resp, hit := h.replay(ctx, c, domain.IdemScopePayment); hit {
		ok(c, http.StatusOK, resp)
		return
	}

	res, err := h.svc.CommitPayment(ctx, req.TransactionID, session.Order{
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		failCommit(c, err)
		return
	}

	h.remember(ctx, c, domain.IdemScopePayment, res)
	ok(c, http.StatusCreated, toCommitResponse(res))
}

//
// Helpers
//

// replay checks whether the request's Idempotency-Key already completed a
// commit in scope and, if so, returns the stored outcome.
func (h *Handlers) replay(ctx context.Context, c *gin.Context, scope string) (CommitResponse, bool) {
	if h.db == nil {
		return CommitResponse{}, false
	}
	key, present := middleware.GetIdempotencyKey(c)
	if !present {
		return CommitResponse{}, false
	}
	rec, err := repo.GetIdempotency(ctx, h.db, h.stationID, scope, key, time.Now().UTC())
	if err != nil {
		return CommitResponse{}, false
	}
	return CommitResponse{
		TransactionID: rec.TransactionID,
		Offline:       rec.Offline,
		Replayed:      true,
	}, true
}

// remember stores the commit outcome under the request's Idempotency-Key so
// a retry of the same key replays instead of recommitting. Best effort: a
// failed write is logged, never surfaced.
func (h *Handlers) remember(ctx context.Context, c *gin.Context, scope string, res *services.CommitResult) {
	if h.db == nil {
		return
	}
	key, present := middleware.GetIdempotencyKey(c)
	if !present {
		return
	}
	if _, err := repo.CreateIdempotency(ctx, h.db, h.stationID, scope, key, res.TransactionID, res.Offline, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		middleware.LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency record not stored")
	}
}

// toCommitResponse maps a service result onto the wire shape.
func toCommitResponse(res *services.CommitResult) CommitResponse {
	return CommitResponse{
		TransactionID:     res.TransactionID,
		Offline:           res.Offline,
		Total:             res.Total,
		Tax:               res.Tax,
		InventoryFollowUp: res.InventoryFollowUp,
		PrintFailed:       res.PrintErr != nil,
	}
}

// failCommit maps service and backend errors onto the error envelope.
func failCommit(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoItems),
		errors.Is(err, services.ErrNoPaymentMethod),
		errors.Is(err, services.ErrNoTransactionID):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrOfflineStoreUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, err.Error())
	case errors.Is(err, services.ErrBackendUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeBackendUnavailable, err.Error())
	default:
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			fail(c, http.StatusBadGateway, ErrCodeCommitFailed, apiErr.Message)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
