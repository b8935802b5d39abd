package gift

import (
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/daybook-labs/daybook/internal/apperr"
	"github.com/daybook-labs/daybook/internal/relays"
	"github.com/daybook-labs/daybook/internal/signer"
)

type stubPayer struct {
	name   string
	err    error
	called bool
}

func (p *stubPayer) Name() string { return p.name }

func (p *stubPayer) Pay(context.Context, *Invoice) error {
	p.called = true
	return p.err
}

func testFlow(t *testing.T, srv *httptest.Server, payers ...Payer) *Flow {
	t.Helper()
	quiet := slog.New(slog.DiscardHandler)
	client := relays.NewClient(context.Background(), nil, quiet)
	return NewFlow(signer.NewEphemeralSigner(), client, NewInvoiceFetcher(srv.Client()), payers, quiet)
}

func giftRequest() Request {
	return Request{RecipientPubKey: recipientKey, AmountSats: 21, Comment: "hi"}
}

func TestFlow_PayerChainOrder(t *testing.T) {
	srv, _ := lnurlServer(t, true, 1)
	offline := &stubPayer{name: "wallet_connect", err: apperr.ErrNotConnected}
	working := &stubPayer{name: "browser"}
	never := &stubPayer{name: "manual-ish"}

	f := testFlow(t, srv, offline, working, never)

	p, err := f.Send(context.Background(), giftRequest(), addressFor(srv))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if p.Status != StatusPaid || p.PaidVia != "browser" {
		t.Fatalf("status=%s via=%s, want paid via browser", p.Status, p.PaidVia)
	}
	if !offline.called || !working.called {
		t.Fatal("payers before success must all be attempted")
	}
	if never.called {
		t.Fatal("payers after success must not run")
	}
}

func TestFlow_FallsThroughToManual(t *testing.T) {
	srv, _ := lnurlServer(t, true, 1)
	failing := &stubPayer{name: "wallet_connect", err: errors.New("wallet refused")}
	f := testFlow(t, srv, failing)

	p, err := f.Send(context.Background(), giftRequest(), addressFor(srv))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if p.Status != StatusAwaitingManual {
		t.Fatalf("status = %s, want awaiting manual payment", p.Status)
	}
	if p.Invoice == nil || p.Invoice.PaymentRequest == "" {
		t.Fatal("manual path must expose the invoice")
	}
}

func TestFlow_ConfirmPaid(t *testing.T) {
	srv, _ := lnurlServer(t, true, 1)
	f := testFlow(t, srv)

	p, err := f.Send(context.Background(), giftRequest(), addressFor(srv))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := f.ConfirmPaid(context.Background(), p); err != nil {
		t.Fatalf("ConfirmPaid: %v", err)
	}
	if p.Status != StatusVerified {
		t.Fatalf("status = %s, want verified", p.Status)
	}
	if err := f.ConfirmPaid(context.Background(), p); err == nil {
		t.Fatal("double confirmation must fail")
	}
}

func TestParseWalletConnection(t *testing.T) {
	wc, err := ParseWalletConnection("nostr+walletconnect://" + recipientKey + "?relay=wss%3A%2F%2Frelay.example&secret=0000000000000000000000000000000000000000000000000000000000000002")
	if err != nil {
		t.Fatalf("ParseWalletConnection: %v", err)
	}
	if wc.WalletPubKey != recipientKey || wc.RelayURL != "wss://relay.example" || wc.Secret == "" {
		t.Fatalf("parsed %+v", wc)
	}

	for _, raw := range []string{
		"https://example.com",
		"nostr+walletconnect://" + recipientKey, // no relay/secret
		"::::",
	} {
		if _, err := ParseWalletConnection(raw); err == nil {
			t.Fatalf("want error for %q", raw)
		}
	}
}

func TestNWCPayer_NotConfigured(t *testing.T) {
	p := NewNWCPayer(nil, 0)
	err := p.Pay(context.Background(), &Invoice{PaymentRequest: "lnbc1u1p0zzzzzpp5fake"})
	if !errors.Is(err, apperr.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}
