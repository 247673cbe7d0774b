// Package client talks to the POS backend over HTTP. It is the terminal's
// only path to the authoritative store: order and payment submission, the
// transaction list used to rebuild the offline mirror, the transaction id
// counter, and the stock endpoints consumed by the online commit path.
//
// All methods are context-aware and return *APIError for responses the
// backend produced, so the reconciler can distinguish permanent rejections
// from transient outages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/looppos/terminal-sync/internal/domain"
	"github.com/looppos/terminal-sync/internal/idgen"
)

// probeTimeout caps the connectivity probe so a dead link fails fast.
const probeTimeout = 3 * time.Second

// Client is an HTTP client for the POS backend.
type Client struct {
	// BaseURL is the backend root, without a trailing slash.
	BaseURL string
	// HTTP is the underlying client; its Timeout is the per-request budget.
	HTTP *http.Client
}

// New constructs a Client for the given backend base URL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// latestIDResponse is the body of GET /api/transactions/latest-transaction-id.
type latestIDResponse struct {
	LatestTransactionID string `json:"latestTransactionID"`
}

// orderResponse is the body of a successful POST /api/transactions/order.
type orderResponse struct {
	Message       string `json:"message"`
	TransactionID string `json:"transactionID"`
}

// errorResponse is the backend's error envelope.
type errorResponse struct {
	Message string `json:"message"`
}

// FinishedGood describes a sellable menu item and the raw ingredients one
// unit consumes.
type FinishedGood struct {
	ID             domain.ItemID   `json:"id"`
	Name           string          `json:"name"`
	RawIngredients []RawIngredient `json:"rawIngredients"`
}

// RawIngredient is one line of a finished good's bill of materials.
type RawIngredient struct {
	RawID      string  `json:"RawID"`
	RawConsume float64 `json:"RawConsume"`
}

// StockItem is the current level of one raw material.
type StockItem struct {
	RawID    string  `json:"RawID"`
	Name     string  `json:"ItemName,omitempty"`
	Quantity float64 `json:"Quantity"`
}

// LatestTransactionID asks the backend for its current counter value. The
// dedicated endpoint is best-effort: when it is missing or failing, the
// client falls back to listing transactions and taking the numeric maximum.
func (c *Client) LatestTransactionID(ctx context.Context) (string, error) {
	var out latestIDResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/transactions/latest-transaction-id", nil, &out)
	if err == nil && out.LatestTransactionID != "" {
		return out.LatestTransactionID, nil
	}

	txs, lerr := c.ListTransactions(ctx)
	if lerr != nil {
		if err != nil {
			return "", err
		}
		return "", lerr
	}
	if id := MaxTransactionID(txs); id != "" {
		return id, nil
	}
	return domain.SeedTransactionID, nil
}

// MaxTransactionID returns the numerically largest transaction id in txs,
// or "" when none parses.
func MaxTransactionID(txs []domain.Transaction) string {
	var best string
	var bestN int64 = -1
	for _, t := range txs {
		n, err := idgen.Parse(t.TransactionID)
		if err != nil {
			continue
		}
		if n > bestN {
			bestN = n
			best = t.TransactionID
		}
	}
	return best
}

// SubmitOrder posts an order and returns the server-issued transaction id.
func (c *Client) SubmitOrder(ctx context.Context, payload domain.OrderPayload) (string, error) {
	var out orderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/transactions/order", payload, &out); err != nil {
		return "", err
	}
	if out.TransactionID == "" {
		return "", fmt.Errorf("order accepted but no transaction id in response")
	}
	return out.TransactionID, nil
}

// SubmitPayment posts a payment for an existing transaction.
func (c *Client) SubmitPayment(ctx context.Context, payload domain.PaymentPayload) error {
	return c.doJSON(ctx, http.MethodPost, "/api/transactions/pay", payload, nil)
}

// ListTransactions fetches the full transaction list. The backend answers
// 404 when the collection is empty; that is an empty list, not an error.
func (c *Client) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := c.doJSON(ctx, http.MethodGet, "/api/transactions/orders", nil, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// SuspendTransactions flags the given processed transactions as suspended.
func (c *Client) SuspendTransactions(ctx context.Context, transactionIDs []string) error {
	body := map[string][]string{"transactionIDs": transactionIDs}
	return c.doJSON(ctx, http.MethodPut, "/api/transactions/suspend", body, nil)
}

// FinishedGoods fetches the menu items with their ingredient consumption.
func (c *Client) FinishedGoods(ctx context.Context) ([]FinishedGood, error) {
	var out []FinishedGood
	if err := c.doJSON(ctx, http.MethodGet, "/api/menu/finishedgoods", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StockLevels fetches current raw material levels.
func (c *Client) StockLevels(ctx context.Context) ([]StockItem, error) {
	var out []StockItem
	if err := c.doJSON(ctx, http.MethodGet, "/api/menu/bom", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStock writes back the full stock list after reductions.
func (c *Client) UpdateStock(ctx context.Context, items []StockItem) error {
	return c.doJSON(ctx, http.MethodPut, "/api/menu/bom", items, nil)
}

// Probe checks live reachability of the backend. Any HTTP response counts as
// reachable, even an error status: the link is up and the backend answered.
// Only transport failures mean offline.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/transactions/latest-transaction-id", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
	return nil
}

// doJSON performs one JSON request/response round trip. Non-2xx responses
// become *APIError with the backend's message when it is parseable.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope errorResponse
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Message = envelope.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			// A success status with an unparseable body is not an
			// acknowledgment the reconciler can act on.
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}
