// Transaction journal handlers.
//
// This file exposes the journal endpoints:
//   - GET /transactions           (list, paginated, live or mirrored)
//   - POST /transactions/recall   (find one by scanned or typed code)
//   - PUT  /transactions/suspend  (park transactions for another till)
//
// Listing is served from the backend when reachable and from the local
// mirror otherwise; the response says which. Recall matches codes
// tolerantly, so a receipt scanned as "110" finds transaction "000110".
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/looppos/terminal-sync/internal/domain"
	"github.com/looppos/terminal-sync/internal/services"
	"github.com/looppos/terminal-sync/internal/utils"
)

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListTransactionsResponse wraps a page of the journal. FromCache is true
// when the page was served from the local mirror rather than the backend.
type ListTransactionsResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
	Pagination   Pagination           `json:"pagination"`
	FromCache    bool                 `json:"from_cache"`
}

// RecallRequest is the JSON payload for looking up a transaction by code.
type RecallRequest struct {
	Code string `json:"code" binding:"required"`
}

// SuspendRequest is the JSON payload for parking transactions.
type SuspendRequest struct {
	TransactionIDs []string `json:"transactionIDs" binding:"required"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// ListTransactions handles GET /transactions.
func (h *Handlers) ListTransactions(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, fromCache, err := h.svc.Journal(c.Request.Context(), page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrOfflineStoreUnavailable) {
			fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListTransactionsResponse{
		Transactions: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
		FromCache: fromCache,
	})
}

// RecallTransaction handles POST /transactions/recall.
func (h *Handlers) RecallTransaction(c *gin.Context) {
	var req RecallRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code required")
		return
	}

	t, err := h.svc.Recall(c.Request.Context(), strings.TrimSpace(req.Code))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTransactionNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "transaction not found")
		case errors.Is(err, services.ErrOfflineStoreUnavailable):
			fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, t)
}

// SuspendTransactions handles PUT /transactions/suspend. Suspension mutates
// shared backend state and is refused while offline.
func (h *Handlers) SuspendTransactions(c *gin.Context) {
	var req SuspendRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.TransactionIDs) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "transactionIDs required")
		return
	}

	if err := h.svc.Suspend(c.Request.Context(), req.TransactionIDs); err != nil {
		switch {
		case errors.Is(err, services.ErrBackendUnavailable):
			fail(c, http.StatusServiceUnavailable, ErrCodeBackendUnavailable, err.Error())
		case errors.Is(err, services.ErrNoTransactionID):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}
