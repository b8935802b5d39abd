// Package gift sends a small anonymous Lightning zap to a chosen recipient:
// build a signed zap request, fetch an invoice from the recipient's
// LNURL-pay endpoint, try the configured payment channels in order, and
// fall back to manual payment with best-effort verification.
package gift

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/nbd-wtf/go-nostr"

	"github.com/daybook-labs/daybook/internal/signer"
)

// KindZapRequest is the event kind of zap requests.
const KindZapRequest = 9734

// PromoURL is appended to every gift comment so recipients can find out
// where the gift came from.
const PromoURL = "https://daybook.to"

// DefaultComment is used when the giver writes nothing.
const DefaultComment = "a little gift for you"

// Limits on the gift amount in sats.
const (
	MinGiftSats = 1
	MaxGiftSats = 1_000_000
)

// Request describes a gift before it becomes a signed zap request event.
type Request struct {
	RecipientPubKey string
	AmountSats      int64
	Comment         string
	EventID         string // optional target post
}

// Validate rejects bad input before any network call.
func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RecipientPubKey, validation.Required, validation.Length(64, 64)),
		validation.Field(&r.AmountSats, validation.Required, validation.Min(MinGiftSats), validation.Max(MaxGiftSats)),
	)
}

// BuildZapRequest constructs and signs the kind-9734 zap request. The
// comment gets PromoURL appended exactly once; relayURLs become the relay
// hints the receiving wallet publishes the receipt to.
func BuildZapRequest(ctx context.Context, sgn signer.Signer, req Request, relayURLs []string) (*nostr.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gift: invalid request: %w", err)
	}

	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		comment = DefaultComment
	}
	if !strings.Contains(comment, PromoURL) {
		comment += " " + PromoURL
	}

	relaysTag := append(nostr.Tag{"relays"}, relayURLs...)
	evt := nostr.Event{
		Kind:      KindZapRequest,
		CreatedAt: nostr.Now(),
		Content:   comment,
		Tags: nostr.Tags{
			relaysTag,
			{"amount", strconv.FormatInt(req.AmountSats*1000, 10)},
			{"p", req.RecipientPubKey},
		},
	}
	if req.EventID != "" {
		evt.Tags = append(evt.Tags, nostr.Tag{"e", req.EventID})
	}

	if err := sgn.Sign(ctx, &evt); err != nil {
		return nil, fmt.Errorf("gift: signing zap request: %w", err)
	}
	return &evt, nil
}
