package gift

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/daybook-labs/daybook/internal/signer"
)

// lnurlServer fakes an LNURL-pay endpoint: /.well-known/lnurlp/<name> plus
// a /callback invoice handler.
func lnurlServer(t *testing.T, allowsNostr bool, verifySettledAfter int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var verifyCalls atomic.Int32
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/.well-known/lnurlp/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"callback":    srv.URL + "/callback",
			"minSendable": 1000,
			"maxSendable": 100_000_000,
			"allowsNostr": allowsNostr,
		})
	})
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("amount") == "" {
			json.NewEncoder(w).Encode(map[string]any{"status": "ERROR", "reason": "missing amount"})
			return
		}
		if allowsNostr {
			var evt nostr.Event
			if err := json.Unmarshal([]byte(r.URL.Query().Get("nostr")), &evt); err != nil {
				json.NewEncoder(w).Encode(map[string]any{"status": "ERROR", "reason": "bad zap request"})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"pr":     "lnbc210n1p0zzzzzpp5fake",
			"verify": srv.URL + "/verify",
		})
	})
	mux.HandleFunc("/verify", func(w http.ResponseWriter, r *http.Request) {
		n := verifyCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"settled": n >= verifySettledAfter})
	})

	// The endpoint is always derived as https, so the fake must speak TLS;
	// srv.Client() trusts its certificate.
	srv = httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)
	return srv, &verifyCalls
}

// addressFor turns a test server URL into a lightning address on its host.
func addressFor(srv *httptest.Server) string {
	return "tester@" + strings.TrimPrefix(srv.URL, "https://")
}

func TestInvoiceFetcher_Fetch(t *testing.T) {
	srv, _ := lnurlServer(t, true, 1)
	f := NewInvoiceFetcher(srv.Client())

	sgn := signer.NewEphemeralSigner()
	zapRequest, err := BuildZapRequest(context.Background(), sgn, Request{
		RecipientPubKey: recipientKey,
		AmountSats:      21,
	}, nil)
	if err != nil {
		t.Fatalf("BuildZapRequest: %v", err)
	}

	inv, err := f.Fetch(context.Background(), addressFor(srv), 21, zapRequest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if inv.PaymentRequest != "lnbc210n1p0zzzzzpp5fake" {
		t.Fatalf("payment request = %q", inv.PaymentRequest)
	}
	if inv.VerifyURL == "" {
		t.Fatal("verify URL not captured")
	}
	if inv.WalletURI() != "lightning:"+inv.PaymentRequest {
		t.Fatalf("wallet URI = %q", inv.WalletURI())
	}
}

func TestInvoiceFetcher_AmountBounds(t *testing.T) {
	srv, _ := lnurlServer(t, false, 1)
	f := NewInvoiceFetcher(srv.Client())

	// minSendable is 1000 msat, so zero sats must be rejected locally...
	if _, err := f.Fetch(context.Background(), addressFor(srv), 0, nil); err == nil {
		t.Fatal("want error below endpoint minimum")
	}
	// ...and maxSendable is 100_000_000 msat (100k sats).
	if _, err := f.Fetch(context.Background(), addressFor(srv), 200_000, nil); err == nil {
		t.Fatal("want error above endpoint maximum")
	}
}

func TestInvoiceFetcher_BadAddress(t *testing.T) {
	f := NewInvoiceFetcher(nil)
	if _, err := f.Fetch(context.Background(), "not-an-address", 21, nil); err == nil {
		t.Fatal("want error for unparsable lightning address")
	}
}

func TestInvoiceFetcher_VerifyPolling(t *testing.T) {
	srv, calls := lnurlServer(t, false, 3) // settles on the third poll
	f := NewInvoiceFetcher(srv.Client())

	inv := &Invoice{PaymentRequest: "lnbc210n1p0zzzzzpp5fake", VerifyURL: srv.URL + "/verify"}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	settled, err := f.VerifySettled(ctx, inv, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("VerifySettled: %v", err)
	}
	if !settled {
		t.Fatal("invoice never reported settled")
	}
	if got := calls.Load(); got < 3 {
		t.Fatalf("verify polled %d times, want at least 3", got)
	}
}

func TestInvoiceFetcher_VerifyUnsupported(t *testing.T) {
	f := NewInvoiceFetcher(nil)
	settled, err := f.VerifySettled(context.Background(), &Invoice{PaymentRequest: "lnbc1u1p0zzzzzpp5fake"}, time.Millisecond)
	if err != nil {
		t.Fatalf("VerifySettled: %v", err)
	}
	if settled {
		t.Fatal("settled without a verify endpoint")
	}
}

func TestQRCode(t *testing.T) {
	inv := &Invoice{PaymentRequest: "lnbc210n1p0zzzzzpp5fake"}
	png, err := inv.QRCode(256)
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	if len(png) == 0 || fmt.Sprintf("%x", png[:4]) != "89504e47" {
		t.Fatal("output is not a PNG")
	}
}
