package gift

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nbd-wtf/go-nostr"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/daybook-labs/daybook/internal/profile"
)

// DefaultHTTPTimeout bounds each LNURL round trip.
const DefaultHTTPTimeout = 10 * time.Second

// Invoice is a fetched Lightning invoice ready to be paid.
type Invoice struct {
	PaymentRequest string
	AmountSats     int64
	VerifyURL      string // optional LNURL-verify endpoint
}

// WalletURI is the handoff form for external wallet applications.
func (inv *Invoice) WalletURI() string {
	return "lightning:" + inv.PaymentRequest
}

// QRCode renders the invoice as a PNG for manual payment.
func (inv *Invoice) QRCode(size int) ([]byte, error) {
	png, err := qrcode.Encode(inv.WalletURI(), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("gift: rendering invoice QR: %w", err)
	}
	return png, nil
}

// payEndpointResponse is the first LNURL-pay response.
type payEndpointResponse struct {
	Status      string `json:"status"`
	Reason      string `json:"reason"`
	Callback    string `json:"callback"`
	MinSendable int64  `json:"minSendable"` // msats
	MaxSendable int64  `json:"maxSendable"` // msats
	AllowsNostr bool   `json:"allowsNostr"`
}

// callbackResponse carries the invoice itself.
type callbackResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	PR     string `json:"pr"`
	Verify string `json:"verify"`
}

// InvoiceFetcher acquires invoices from LNURL-pay endpoints.
type InvoiceFetcher struct {
	httpc *http.Client
}

// NewInvoiceFetcher builds a fetcher; httpc may be nil for a default client
// with DefaultHTTPTimeout.
func NewInvoiceFetcher(httpc *http.Client) *InvoiceFetcher {
	if httpc == nil {
		httpc = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &InvoiceFetcher{httpc: httpc}
}

// Fetch resolves the recipient's lightning address to its pay endpoint and
// requests an invoice for the signed zap request.
func (f *InvoiceFetcher) Fetch(ctx context.Context, address string, amountSats int64, zapRequest *nostr.Event) (*Invoice, error) {
	endpoint, err := profile.LNURLEndpoint(address)
	if err != nil {
		return nil, fmt.Errorf("gift: resolving pay endpoint: %w", err)
	}

	var meta payEndpointResponse
	if err := f.getJSON(ctx, endpoint, &meta); err != nil {
		return nil, fmt.Errorf("gift: querying pay endpoint: %w", err)
	}
	if meta.Status == "ERROR" {
		return nil, fmt.Errorf("gift: pay endpoint rejected: %s", meta.Reason)
	}
	if meta.Callback == "" {
		return nil, fmt.Errorf("gift: pay endpoint returned no callback")
	}

	msats := amountSats * 1000
	if meta.MinSendable > 0 && msats < meta.MinSendable {
		return nil, fmt.Errorf("gift: amount %d sats below endpoint minimum %d msats", amountSats, meta.MinSendable)
	}
	if meta.MaxSendable > 0 && msats > meta.MaxSendable {
		return nil, fmt.Errorf("gift: amount %d sats above endpoint maximum %d msats", amountSats, meta.MaxSendable)
	}

	cb, err := url.Parse(meta.Callback)
	if err != nil {
		return nil, fmt.Errorf("gift: bad callback URL: %w", err)
	}
	q := cb.Query()
	q.Set("amount", strconv.FormatInt(msats, 10))
	if meta.AllowsNostr && zapRequest != nil {
		encoded, err := json.Marshal(zapRequest)
		if err != nil {
			return nil, fmt.Errorf("gift: encoding zap request: %w", err)
		}
		q.Set("nostr", string(encoded))
	}
	cb.RawQuery = q.Encode()

	var result callbackResponse
	if err := f.getJSON(ctx, cb.String(), &result); err != nil {
		return nil, fmt.Errorf("gift: requesting invoice: %w", err)
	}
	if result.Status == "ERROR" {
		return nil, fmt.Errorf("gift: invoice request rejected: %s", result.Reason)
	}
	if result.PR == "" {
		return nil, fmt.Errorf("gift: endpoint returned no payment request")
	}

	return &Invoice{
		PaymentRequest: result.PR,
		AmountSats:     amountSats,
		VerifyURL:      result.Verify,
	}, nil
}

func (f *InvoiceFetcher) getJSON(ctx context.Context, rawURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := f.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, target)
}

// verifyResponse is the LNURL-verify poll payload.
type verifyResponse struct {
	Status  string `json:"status"`
	Settled bool   `json:"settled"`
}

// VerifySettled polls the invoice's verify endpoint until it reports
// settlement or the context ends. Many endpoints do not implement verify;
// callers must treat false as "unknown", not "unpaid".
func (f *InvoiceFetcher) VerifySettled(ctx context.Context, inv *Invoice, interval time.Duration) (bool, error) {
	if inv.VerifyURL == "" {
		return false, nil
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		var status verifyResponse
		if err := f.getJSON(ctx, inv.VerifyURL, &status); err == nil {
			if status.Status == "ERROR" {
				return false, nil
			}
			if status.Settled {
				return true, nil
			}
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
