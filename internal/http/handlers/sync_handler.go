// Sync HTTP handlers.
//
// This file exposes the reconciliation endpoints:
//   - POST /sync         (drain the offline queue now)
//   - GET  /sync/status  (queue depth, connectivity, last sync point)
//
// Draining also happens automatically on connectivity transitions; the POST
// endpoint exists for the operator's "sync now" button and for external
// schedulers. A drain already in flight is reported, not duplicated.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looppos/terminal-sync/internal/services"
)

// SyncNow handles POST /sync. It runs one drain pass and returns the report.
// The call is idempotent by construction: an empty queue drains to an empty
// report, and a concurrent drain yields {"alreadyRunning": true}.
func (h *Handlers) SyncNow(c *gin.Context) {
	report, err := h.svc.Drain(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrOfflineStoreUnavailable) {
			fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeSyncFailed, err.Error())
		return
	}
	if report.Offline {
		// Not an error: the probe failed, the queue is intact.
		ok(c, http.StatusAccepted, report)
		return
	}
	ok(c, http.StatusOK, report)
}

// SyncStatus handles GET /sync/status.
func (h *Handlers) SyncStatus(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}
