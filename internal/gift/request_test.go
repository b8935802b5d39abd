package gift

import (
	"context"
	"strings"
	"testing"

	"github.com/daybook-labs/daybook/internal/signer"
)

const recipientKey = "aaaa000000000000000000000000000000000000000000000000000000000001"

func TestBuildZapRequest(t *testing.T) {
	sgn := signer.NewEphemeralSigner()
	evt, err := BuildZapRequest(context.Background(), sgn, Request{
		RecipientPubKey: recipientKey,
		AmountSats:      21,
		Comment:         "enjoy!",
		EventID:         "f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0",
	}, []string{"wss://one.example", "wss://two.example"})
	if err != nil {
		t.Fatalf("BuildZapRequest: %v", err)
	}

	if evt.Kind != KindZapRequest {
		t.Fatalf("kind = %d, want %d", evt.Kind, KindZapRequest)
	}
	if ok, _ := evt.CheckSignature(); !ok {
		t.Fatal("event signature does not verify")
	}
	if got := evt.Tags.GetFirst([]string{"amount"}).Value(); got != "21000" {
		t.Fatalf("amount tag = %q, want millisats 21000", got)
	}
	if got := evt.Tags.GetFirst([]string{"p"}).Value(); got != recipientKey {
		t.Fatalf("p tag = %q", got)
	}
	if evt.Tags.GetFirst([]string{"e"}) == nil {
		t.Fatal("missing e tag for the target post")
	}
	relaysTag := evt.Tags.GetFirst([]string{"relays"})
	if relaysTag == nil || len(*relaysTag) != 3 {
		t.Fatalf("relays tag = %v, want two hint URLs", relaysTag)
	}
	if !strings.Contains(evt.Content, "enjoy!") || !strings.Contains(evt.Content, PromoURL) {
		t.Fatalf("content = %q, want comment plus promo URL", evt.Content)
	}
}

func TestBuildZapRequest_PromoAppendedOnce(t *testing.T) {
	sgn := signer.NewEphemeralSigner()
	evt, err := BuildZapRequest(context.Background(), sgn, Request{
		RecipientPubKey: recipientKey,
		AmountSats:      21,
		Comment:         "see " + PromoURL,
	}, nil)
	if err != nil {
		t.Fatalf("BuildZapRequest: %v", err)
	}
	if n := strings.Count(evt.Content, PromoURL); n != 1 {
		t.Fatalf("promo URL appears %d times, want 1: %q", n, evt.Content)
	}
}

func TestBuildZapRequest_DefaultComment(t *testing.T) {
	sgn := signer.NewEphemeralSigner()
	evt, err := BuildZapRequest(context.Background(), sgn, Request{
		RecipientPubKey: recipientKey,
		AmountSats:      5,
	}, nil)
	if err != nil {
		t.Fatalf("BuildZapRequest: %v", err)
	}
	if !strings.HasPrefix(evt.Content, DefaultComment) {
		t.Fatalf("content = %q, want default comment", evt.Content)
	}
}

func TestBuildZapRequest_RejectsBadInput(t *testing.T) {
	sgn := signer.NewEphemeralSigner()
	cases := []struct {
		name string
		req  Request
	}{
		{"missing recipient", Request{AmountSats: 21}},
		{"short recipient", Request{RecipientPubKey: "abcd", AmountSats: 21}},
		{"zero amount", Request{RecipientPubKey: recipientKey}},
		{"excessive amount", Request{RecipientPubKey: recipientKey, AmountSats: 2_000_000}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := BuildZapRequest(context.Background(), sgn, tc.req, nil); err == nil {
				t.Fatal("want validation error")
			}
		})
	}
}
