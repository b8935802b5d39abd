package gift

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"

	"github.com/daybook-labs/daybook/internal/apperr"
)

// Wallet Connect request/response kinds.
const (
	KindWalletRequest  = 23194
	KindWalletResponse = 23195
)

// DefaultPayTimeout bounds one wallet-connect payment round trip.
const DefaultPayTimeout = 30 * time.Second

// Payer attempts to settle an invoice through one payment channel. It
// returns apperr.ErrNotConnected when the channel is not available so the
// chain can move on to the next one.
type Payer interface {
	Name() string
	Pay(ctx context.Context, inv *Invoice) error
}

// WalletConnection is a parsed nostr+walletconnect:// pairing URI.
type WalletConnection struct {
	WalletPubKey string
	RelayURL     string
	Secret       string
}

// ParseWalletConnection parses the pairing URI a wallet hands out.
func ParseWalletConnection(raw string) (*WalletConnection, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("gift: bad wallet connection URI: %w", err)
	}
	if u.Scheme != "nostr+walletconnect" {
		return nil, fmt.Errorf("gift: unexpected scheme %q", u.Scheme)
	}
	wc := &WalletConnection{
		WalletPubKey: u.Host,
		RelayURL:     u.Query().Get("relay"),
		Secret:       u.Query().Get("secret"),
	}
	if wc.WalletPubKey == "" {
		wc.WalletPubKey = strings.TrimPrefix(u.Opaque, "//")
	}
	if wc.WalletPubKey == "" || wc.RelayURL == "" || wc.Secret == "" {
		return nil, fmt.Errorf("gift: wallet connection URI missing pubkey, relay, or secret")
	}
	return wc, nil
}

// NWCPayer pays invoices through a Nostr Wallet Connect channel.
type NWCPayer struct {
	conn    *WalletConnection
	timeout time.Duration
}

// NewNWCPayer builds the payer; conn may be nil when no wallet is paired,
// in which case Pay reports ErrNotConnected.
func NewNWCPayer(conn *WalletConnection, timeout time.Duration) *NWCPayer {
	if timeout <= 0 {
		timeout = DefaultPayTimeout
	}
	return &NWCPayer{conn: conn, timeout: timeout}
}

func (p *NWCPayer) Name() string { return "wallet_connect" }

type nwcRequest struct {
	Method string    `json:"method"`
	Params nwcParams `json:"params"`
}

type nwcParams struct {
	Invoice string `json:"invoice"`
}

type nwcResponse struct {
	ResultType string `json:"result_type"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Result *struct {
		Preimage string `json:"preimage"`
	} `json:"result"`
}

// Pay sends a pay_invoice request over the wallet relay and waits for the
// wallet's response event.
func (p *NWCPayer) Pay(ctx context.Context, inv *Invoice) error {
	if p.conn == nil {
		return apperr.ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	shared, err := nip04.ComputeSharedSecret(p.conn.WalletPubKey, p.conn.Secret)
	if err != nil {
		return fmt.Errorf("gift: wallet shared secret: %w", err)
	}
	payload, err := json.Marshal(nwcRequest{Method: "pay_invoice", Params: nwcParams{Invoice: inv.PaymentRequest}})
	if err != nil {
		return fmt.Errorf("gift: encoding wallet request: %w", err)
	}
	ciphertext, err := nip04.Encrypt(string(payload), shared)
	if err != nil {
		return fmt.Errorf("gift: encrypting wallet request: %w", err)
	}

	evt := nostr.Event{
		Kind:      KindWalletRequest,
		CreatedAt: nostr.Now(),
		Content:   ciphertext,
		Tags:      nostr.Tags{{"p", p.conn.WalletPubKey}},
	}
	if err := evt.Sign(p.conn.Secret); err != nil {
		return fmt.Errorf("gift: signing wallet request: %w", err)
	}

	relay, err := nostr.RelayConnect(ctx, p.conn.RelayURL)
	if err != nil {
		return fmt.Errorf("gift: connecting wallet relay: %w", apperr.ErrNotConnected)
	}
	defer relay.Close()

	// Subscribe for the response before publishing so it cannot be missed.
	sub, err := relay.Subscribe(ctx, nostr.Filters{{
		Kinds:   []int{KindWalletResponse},
		Authors: []string{p.conn.WalletPubKey},
		Tags:    nostr.TagMap{"e": []string{evt.ID}},
	}})
	if err != nil {
		return fmt.Errorf("gift: subscribing for wallet response: %w", err)
	}
	defer sub.Unsub()

	if err := relay.Publish(ctx, evt); err != nil {
		return fmt.Errorf("gift: publishing wallet request: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("gift: waiting for wallet response: %w", apperr.ErrTimeout)
		case respEvt, ok := <-sub.Events:
			if !ok {
				return fmt.Errorf("gift: wallet relay closed: %w", apperr.ErrNotConnected)
			}
			plaintext, err := nip04.Decrypt(respEvt.Content, shared)
			if err != nil {
				continue
			}
			var resp nwcResponse
			if err := json.Unmarshal([]byte(plaintext), &resp); err != nil {
				continue
			}
			if resp.Error != nil {
				return fmt.Errorf("gift: wallet refused payment: %s (%s)", resp.Error.Message, resp.Error.Code)
			}
			if resp.Result == nil || resp.Result.Preimage == "" {
				return fmt.Errorf("gift: wallet response carries no preimage")
			}
			return nil
		}
	}
}
