package gift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/daybook-labs/daybook/internal/apperr"
	"github.com/daybook-labs/daybook/internal/relays"
	"github.com/daybook-labs/daybook/internal/signer"
)

// Status is the flow state of one gift.
type Status string

const (
	StatusRequestBuilt   Status = "request_built"
	StatusPaid           Status = "paid"
	StatusAwaitingManual Status = "awaiting_manual_payment"
	StatusVerified       Status = "verified"
)

// Pending is an in-flight gift: the signed request, its invoice, and how
// far the payment got.
type Pending struct {
	ID         string
	Status     Status
	ZapRequest *nostr.Event
	Invoice    *Invoice
	PaidVia    string
}

// Flow orchestrates one gift from request to published receipt trigger.
type Flow struct {
	signer  signer.Signer
	client  *relays.Client
	fetcher *InvoiceFetcher
	payers  []Payer
	log     *slog.Logger
}

// NewFlow wires the flow. payers are tried in order; an empty list means
// every gift lands in manual payment.
func NewFlow(sgn signer.Signer, client *relays.Client, fetcher *InvoiceFetcher, payers []Payer, logger *slog.Logger) *Flow {
	if fetcher == nil {
		fetcher = NewInvoiceFetcher(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{signer: sgn, client: client, fetcher: fetcher, payers: payers, log: logger}
}

// Send builds and signs the zap request, fetches the invoice, and walks the
// payment chain. When no payer settles the invoice the gift comes back in
// StatusAwaitingManual with the invoice attached for out-of-band payment.
func (f *Flow) Send(ctx context.Context, req Request, address string) (*Pending, error) {
	zapRequest, err := BuildZapRequest(ctx, f.signer, req, f.client.URLs())
	if err != nil {
		return nil, err
	}

	inv, err := f.fetcher.Fetch(ctx, address, req.AmountSats, zapRequest)
	if err != nil {
		return nil, err
	}

	p := &Pending{
		ID:         zapRequest.ID,
		Status:     StatusRequestBuilt,
		ZapRequest: zapRequest,
		Invoice:    inv,
	}

	for _, payer := range f.payers {
		err := payer.Pay(ctx, inv)
		if err == nil {
			p.Status = StatusPaid
			p.PaidVia = payer.Name()
			f.log.Info("gift paid",
				slog.String("via", payer.Name()),
				slog.Int64("sats", req.AmountSats))
			f.publishRequest(ctx, p)
			return p, nil
		}
		if errors.Is(err, apperr.ErrNotConnected) {
			f.log.Debug("gift payer unavailable", slog.String("payer", payer.Name()))
			continue
		}
		f.log.Warn("gift payment attempt failed",
			slog.String("payer", payer.Name()),
			slog.String("error", err.Error()))
	}

	p.Status = StatusAwaitingManual
	return p, nil
}

// AwaitVerification polls the invoice's verify endpoint for a manually paid
// gift. It returns true once settled. Endpoints without verify support
// report false immediately; the caller falls back to ConfirmPaid.
func (f *Flow) AwaitVerification(ctx context.Context, p *Pending, interval time.Duration) (bool, error) {
	if p.Status != StatusAwaitingManual {
		return false, fmt.Errorf("gift: nothing to verify in status %q", p.Status)
	}
	if p.Invoice.VerifyURL == "" {
		return false, nil
	}
	settled, err := f.fetcher.VerifySettled(ctx, p.Invoice, interval)
	if err != nil || !settled {
		return false, err
	}
	p.Status = StatusVerified
	f.publishRequest(ctx, p)
	return true, nil
}

// ConfirmPaid records the user's explicit statement that a manual payment
// went through, and publishes the request.
func (f *Flow) ConfirmPaid(ctx context.Context, p *Pending) error {
	if p.Status != StatusAwaitingManual {
		return fmt.Errorf("gift: cannot confirm in status %q", p.Status)
	}
	p.Status = StatusVerified
	f.publishRequest(ctx, p)
	return nil
}

// publishRequest pushes the signed zap request to the relays so the
// recipient can observe the gift. The payment already happened and cannot
// be rolled back, so failure here is logged and swallowed.
func (f *Flow) publishRequest(ctx context.Context, p *Pending) {
	if err := f.client.Publish(ctx, *p.ZapRequest); err != nil {
		f.log.Warn("gift: publishing zap request failed",
			slog.String("id", p.ID),
			slog.String("error", err.Error()))
	}
}
