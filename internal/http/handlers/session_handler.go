// Current-order session handlers.
//
// This file exposes the order being built at the till:
//   - GET    /session             (current items and totals)
//   - POST   /session/items       (add a line, merging duplicates)
//   - DELETE /session/items/:id   (remove a line)
//   - PUT    /session/payment     (select the payment method)
//   - POST   /session/recall      (load a journal transaction for payment)
//   - DELETE /session             (clear the order)
//
// The session is in-memory state scoped to the till, not a journal record;
// nothing here touches the queue or the backend except recall, which reads
// the journal through the service.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/looppos/terminal-sync/internal/domain"
	"github.com/looppos/terminal-sync/internal/services"
	"github.com/looppos/terminal-sync/internal/session"
)

// SessionHandler serves the till's current order. Mutations go through the
// session's own locking; the handler holds no state of its own.
type SessionHandler struct {
	sess  *session.Session
	svc   SyncService
	rates session.Rates
}

// NewSessionHandler constructs a SessionHandler over the given session.
func NewSessionHandler(sess *session.Session, svc SyncService, rates session.Rates) *SessionHandler {
	if sess == nil {
		sess = session.New()
	}
	return &SessionHandler{sess: sess, svc: svc, rates: rates}
}

// AddItemRequest is the JSON payload for adding a line to the order.
type AddItemRequest struct {
	ID       string  `json:"id" binding:"required"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// PaymentMethodRequest selects the payment method for the order.
type PaymentMethodRequest struct {
	PaymentMethod string `json:"paymentMethod" binding:"required"`
}

// SessionView is the wire shape of the current order, totals included so the
// till UI can display live numbers without re-deriving tax rules.
type SessionView struct {
	Items         []domain.LineItem `json:"items"`
	PaymentMethod string            `json:"paymentMethod"`
	RecalledID    string            `json:"recalledID,omitempty"`
	Subtotal      float64           `json:"subtotal"`
	Tax           float64           `json:"tax"`
	Total         float64           `json:"total"`
}

func (h *SessionHandler) view() SessionView {
	o := h.sess.Snapshot()
	return SessionView{
		Items:         o.Items,
		PaymentMethod: o.PaymentMethod,
		RecalledID:    o.RecalledID,
		Subtotal:      o.Subtotal(),
		Tax:           o.Tax(h.rates),
		Total:         o.Total(h.rates),
	}
}

// Show handles GET /session.
func (h *SessionHandler) Show(c *gin.Context) {
	ok(c, http.StatusOK, h.view())
}

// AddItem handles POST /session/items.
func (h *SessionHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item id required")
		return
	}
	h.sess.AddItem(domain.LineItem{
		ID:       req.ID,
		Name:     req.Name,
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	ok(c, http.StatusOK, h.view())
}

// RemoveItem handles DELETE /session/items/:id. Removing an absent line is
// not an error; the result is the same order either way.
func (h *SessionHandler) RemoveItem(c *gin.Context) {
	h.sess.RemoveItem(c.Param("id"))
	ok(c, http.StatusOK, h.view())
}

// SetPaymentMethod handles PUT /session/payment.
func (h *SessionHandler) SetPaymentMethod(c *gin.Context) {
	var req PaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "paymentMethod required")
		return
	}
	h.sess.SetPaymentMethod(req.PaymentMethod)
	ok(c, http.StatusOK, h.view())
}

// Recall handles POST /session/recall: look the code up in the journal and
// load the matching transaction into the session for payment.
func (h *SessionHandler) Recall(c *gin.Context) {
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
	h.sess.Recall(*t)
	ok(c, http.StatusOK, h.view())
}

// Clear handles DELETE /session.
func (h *SessionHandler) Clear(c *gin.Context) {
	h.sess.Clear()
	noContent(c)
}
