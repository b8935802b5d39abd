package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/daybook-labs/daybook/internal/relays"
	"github.com/daybook-labs/daybook/internal/sse"
)

func TestRecentSetEvictsOldest(t *testing.T) {
	rs := newRecentSet(3)
	for i := range 3 {
		if !rs.Add(fmt.Sprintf("ev-%d", i)) {
			t.Fatalf("ev-%d should be new", i)
		}
	}
	if rs.Add("ev-0") {
		t.Fatal("ev-0 must still be a duplicate at capacity")
	}

	// A fourth id evicts the oldest, keeping the set bounded.
	if !rs.Add("ev-3") {
		t.Fatal("ev-3 should be new")
	}
	if len(rs.seen) != 3 || len(rs.order) != 3 {
		t.Fatalf("set grew past its cap: seen=%d order=%d", len(rs.seen), len(rs.order))
	}
	if !rs.Add("ev-0") {
		t.Fatal("evicted ev-0 should read as new again")
	}
	if rs.Add("ev-3") {
		t.Fatal("ev-3 must still be a duplicate")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	quiet := slog.New(slog.DiscardHandler)
	client := relays.NewClient(context.Background(), nil, quiet)
	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	s := NewStreamer(client, broker, nil, quiet)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Run returned %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop with its context")
	}
}
