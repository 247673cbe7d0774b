package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsRequestsAndFallsBackOnUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.POST("/orders", func(c *gin.Context) {
		c.String(http.StatusCreated, `{"transactionID":"110205"}`)
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent) // no body, size stays -1
	})

	// Baselines first; the registry is process-global and shared across tests.
	baseOrders := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/orders", "201"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /orders -> %d", w.Code)
	}

	// Unmatched route: the path label falls back to the raw URL.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope -> %d", w.Code)
	}

	// Bodyless response exercises the size < 0 skip.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/empty", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("GET /empty -> %d", w.Code)
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/orders", "201")); got != baseOrders+1 {
		t.Fatalf("counter POST /orders 201 = %v, want %v", got, baseOrders+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404")); got != baseMiss+1 {
		t.Fatalf("counter 404 fallback = %v, want %v", got, baseMiss+1)
	}
	if inflight := testutil.ToFloat64(httpInflight); inflight != 0 {
		t.Fatalf("httpInflight = %v, want 0 after completion", inflight)
	}
}
