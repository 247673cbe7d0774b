// Package printer delivers docket slips to the receipt print service.
//
// The print pipeline itself (rendering, spooling, hardware) is a black box
// behind the Printer interface; the reconciler only needs a success/failure
// result so it can warn the operator. A failed print never rolls back the
// committed transaction: the sale is real even when the paper is not.
package printer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/looppos/terminal-sync/internal/domain"
)

// Docket types.
const (
	DocketOrder = "order"
	DocketPaid  = "paid"
)

// Docket is one printable receipt document: exactly one is produced per
// completed commit, with the provisional id and an offline marker when the
// order was taken without connectivity.
type Docket struct {
	Type          string            `json:"type"` // order|paid
	TransactionID string            `json:"transactionID"`
	Items         []domain.LineItem `json:"items"`
	Subtotal      float64           `json:"subtotal"`
	Tax           float64           `json:"tax"`
	Total         float64           `json:"total"`
	PaymentMethod string            `json:"paymentMethod"`
	Offline       bool              `json:"offline"`
	StationID     string            `json:"stationID"`
	Cashier       string            `json:"cashier,omitempty"`
	IssuedAt      time.Time         `json:"issuedAt"`
}

// Printer submits a docket for printing.
type Printer interface {
	Print(ctx context.Context, d Docket) error
}

// HTTPPrinter posts dockets to the print service.
type HTTPPrinter struct {
	// BaseURL is the print service root, without a trailing slash.
	BaseURL string
	// HTTP is the underlying client.
	HTTP *http.Client
}

// NewHTTP constructs an HTTPPrinter for the given print service.
func NewHTTP(baseURL string, timeout time.Duration) *HTTPPrinter {
	return &HTTPPrinter{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Print posts the docket and reports any non-success status as an error.
func (p *HTTPPrinter) Print(ctx context.Context, d Docket) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/print", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("print service returned %d", resp.StatusCode)
	}
	return nil
}

// Nop is a Printer that discards dockets. Used when no print service is
// configured and in tests.
type Nop struct{}

// Print implements Printer.
func (Nop) Print(context.Context, Docket) error { return nil }
