package zapscan

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

const (
	senderA = "aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11aa11"
	senderB = "bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22bb22"
	senderC = "cc33cc33cc33cc33cc33cc33cc33cc33cc33cc33cc33cc33cc33cc33cc33cc33"
)

// receipt builds a zap receipt event carrying a zap request from sender in
// its description tag.
func receipt(t *testing.T, id, sender, bolt11 string) *nostr.Event {
	t.Helper()
	request := nostr.Event{
		PubKey:    sender,
		Kind:      9734,
		CreatedAt: nostr.Now(),
	}
	desc, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal zap request: %v", err)
	}
	return &nostr.Event{
		ID:        id,
		Kind:      KindZapReceipt,
		CreatedAt: nostr.Now(),
		Tags: nostr.Tags{
			{"e", "f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0"},
			{"bolt11", bolt11},
			{"description", string(desc)},
		},
	}
}

// fakeFetch serves a canned event list per relay URL.
func fakeFetch(byURL map[string][]*nostr.Event, failing map[string]bool) FetchFunc {
	return func(_ context.Context, url string, _ nostr.Filter, _ time.Duration) ([]*nostr.Event, error) {
		if failing[url] {
			return nil, fmt.Errorf("dial %s: connection refused", url)
		}
		return byURL[url], nil
	}
}

func TestScanDeduplicatesAcrossRelays(t *testing.T) {
	shared := receipt(t, "ev-shared", senderA, "lnbc210n1p0zzzzzpp5fake")
	only2 := receipt(t, "ev-only2", senderB, "lnbc420n1p0zzzzzpp5fake")

	urls := []string{"wss://one.example", "wss://two.example"}
	s := New(urls, WithFetcher(fakeFetch(map[string][]*nostr.Event{
		"wss://one.example": {shared},
		"wss://two.example": {shared, only2},
	}, nil)))

	got, err := s.Receipts(context.Background(), nil)
	if err != nil {
		t.Fatalf("Receipts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d receipts, want 2 (shared event deduplicated): %+v", len(got), got)
	}
	seen := map[string]bool{}
	for _, r := range got {
		if seen[r.ID] {
			t.Fatalf("receipt %s appears twice", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestScanAmountBoundary(t *testing.T) {
	atBoundary := receipt(t, "ev-ten", senderA, "lnbc100n1p0zzzzzpp5fake")   // 10 sats
	aboveBoundary := receipt(t, "ev-eleven", senderB, "lnbc110n1p0zzzzzpp5fake") // 11 sats

	s := New([]string{"wss://one.example"}, WithFetcher(fakeFetch(map[string][]*nostr.Event{
		"wss://one.example": {atBoundary, aboveBoundary},
	}, nil)))

	got, err := s.Receipts(context.Background(), nil)
	if err != nil {
		t.Fatalf("Receipts: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d receipts, want exactly the 11-sat one: %+v", len(got), got)
	}
	if got[0].Sender != senderB || got[0].AmountSats != 11 {
		t.Fatalf("got %+v, want sender %s with 11 sats", got[0], senderB)
	}
}

func TestScanDropsMalformedReceipts(t *testing.T) {
	valid := receipt(t, "ev-ok", senderA, "lnbc210n1p0zzzzzpp5fake")

	noTarget := receipt(t, "ev-notarget", senderB, "lnbc210n1p0zzzzzpp5fake")
	noTarget.Tags = nostr.Tags{noTarget.Tags[1], noTarget.Tags[2]} // strip the e tag

	noInvoice := receipt(t, "ev-noinvoice", senderB, "lnbc210n1p0zzzzzpp5fake")
	noInvoice.Tags = nostr.Tags{noInvoice.Tags[0], noInvoice.Tags[2]}

	badDescription := receipt(t, "ev-baddesc", senderB, "lnbc210n1p0zzzzzpp5fake")
	badDescription.Tags[2] = nostr.Tag{"description", "{not json"}

	s := New([]string{"wss://one.example"}, WithFetcher(fakeFetch(map[string][]*nostr.Event{
		"wss://one.example": {valid, noTarget, noInvoice, badDescription},
	}, nil)))

	got, err := s.Receipts(context.Background(), nil)
	if err != nil {
		t.Fatalf("Receipts: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ev-ok" {
		t.Fatalf("got %+v, want only ev-ok", got)
	}
}

func TestScanExcludesSenders(t *testing.T) {
	s := New([]string{"wss://one.example"}, WithFetcher(fakeFetch(map[string][]*nostr.Event{
		"wss://one.example": {
			receipt(t, "ev-a", senderA, "lnbc210n1p0zzzzzpp5fake"),
			receipt(t, "ev-b", senderB, "lnbc210n1p0zzzzzpp5fake"),
		},
	}, nil)))

	res, err := s.Scan(context.Background(), map[string]struct{}{senderA: {}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res == nil || res.Sender != senderB {
		t.Fatalf("got %+v, want sender %s", res, senderB)
	}
}

func TestScanToleratesFailedRelays(t *testing.T) {
	s := New([]string{"wss://dead.example", "wss://live.example"}, WithFetcher(fakeFetch(
		map[string][]*nostr.Event{
			"wss://live.example": {receipt(t, "ev-a", senderA, "lnbc210n1p0zzzzzpp5fake")},
		},
		map[string]bool{"wss://dead.example": true},
	)))

	res, err := s.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res == nil || res.Sender != senderA {
		t.Fatalf("got %+v, want sender %s", res, senderA)
	}
}

func TestScanEmptyWhenNoRelayResponds(t *testing.T) {
	s := New([]string{"wss://dead.example"}, WithFetcher(fakeFetch(nil,
		map[string]bool{"wss://dead.example": true})))

	res, err := s.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res != nil {
		t.Fatalf("got %+v, want nil result on total relay failure", res)
	}
}

func TestSenderSetKeepsLargestAmount(t *testing.T) {
	s := New([]string{"wss://one.example"}, WithFetcher(fakeFetch(map[string][]*nostr.Event{
		"wss://one.example": {
			receipt(t, "ev-1", senderA, "lnbc210n1p0zzzzzpp5fake"),  // 21 sats
			receipt(t, "ev-2", senderA, "lnbc1u1p0zzzzzpp5fake"),    // 100 sats
			receipt(t, "ev-3", senderC, "lnbc500n1p0zzzzzpp5fake"),  // 50 sats
		},
	}, nil)))

	set := s.SenderSet(context.Background(), nil)
	if len(set) != 2 {
		t.Fatalf("got %d senders, want 2: %v", len(set), set)
	}
	if set[senderA] != 100 {
		t.Fatalf("sender A amount = %d, want 100", set[senderA])
	}
	if set[senderC] != 50 {
		t.Fatalf("sender C amount = %d, want 50", set[senderC])
	}
}
