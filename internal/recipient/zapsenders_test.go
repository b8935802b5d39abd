package recipient

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/daybook-labs/daybook/internal/apperr"
	"github.com/daybook-labs/daybook/internal/zapscan"
)

func zapReceipt(t *testing.T, id, sender string) *nostr.Event {
	t.Helper()
	request := nostr.Event{PubKey: sender, Kind: 9734, CreatedAt: nostr.Now()}
	desc, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal zap request: %v", err)
	}
	return &nostr.Event{
		ID:        id,
		Kind:      zapscan.KindZapReceipt,
		CreatedAt: nostr.Now(),
		Tags: nostr.Tags{
			{"e", "f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0"},
			{"bolt11", "lnbc210n1p0zzzzzpp5fake"},
			{"description", string(desc)},
		},
	}
}

func cannedScanner(events ...*nostr.Event) *zapscan.Scanner {
	fetch := func(context.Context, string, nostr.Filter, time.Duration) ([]*nostr.Event, error) {
		return events, nil
	}
	return zapscan.New([]string{"wss://one.example"}, zapscan.WithFetcher(fetch))
}

func TestZapSenders_PicksDrawnSender(t *testing.T) {
	scanner := cannedScanner(zapReceipt(t, "ev-a", aliceKey))
	strategy := NewZapSendersStrategy(scanner, fakeProfiles{
		aliceKey: payable(aliceKey, "alice"),
	}, quiet())

	got, err := strategy.Pick(context.Background(), nil)
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if got.PubKey != aliceKey {
		t.Fatalf("picked %s, want alice", got.PubKey)
	}
}

func TestZapSenders_UnpayableWinnerFailsRound(t *testing.T) {
	// Two senders in the window, only alice payable. The round succeeds only
	// when the draw lands on alice; a bob draw must fail rather than slide
	// over to her.
	scanner := cannedScanner(
		zapReceipt(t, "ev-a", aliceKey),
		zapReceipt(t, "ev-b", bobKey),
	)
	strategy := NewZapSendersStrategy(scanner, fakeProfiles{
		aliceKey: payable(aliceKey, "alice"),
	}, quiet())

	var picked, failed int
	for range 100 {
		got, err := strategy.Pick(context.Background(), nil)
		switch {
		case err == nil:
			if got.PubKey != aliceKey {
				t.Fatalf("picked %s, want alice", got.PubKey)
			}
			picked++
		case errors.Is(err, apperr.ErrNoRecipient):
			failed++
		default:
			t.Fatalf("Pick: %v", err)
		}
	}
	if picked == 0 || failed == 0 {
		t.Fatalf("draws not uniform over both senders: picked=%d failed=%d", picked, failed)
	}
}

func TestZapSenders_HonorsExclusion(t *testing.T) {
	scanner := cannedScanner(zapReceipt(t, "ev-a", aliceKey))
	strategy := NewZapSendersStrategy(scanner, fakeProfiles{
		aliceKey: payable(aliceKey, "alice"),
	}, quiet())

	_, err := strategy.Pick(context.Background(), map[string]struct{}{aliceKey: {}})
	if !errors.Is(err, apperr.ErrNoRecipient) {
		t.Fatalf("err = %v, want ErrNoRecipient", err)
	}
}

func TestZapSenders_NoFallbackWithoutAddress(t *testing.T) {
	scanner := cannedScanner(zapReceipt(t, "ev-a", aliceKey))
	strategy := NewZapSendersStrategy(scanner, fakeProfiles{}, quiet())

	_, err := strategy.Pick(context.Background(), nil)
	if !errors.Is(err, apperr.ErrNoRecipient) {
		t.Fatalf("err = %v, want ErrNoRecipient", err)
	}
}
