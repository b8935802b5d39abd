// Package zapscan discovers recent valid zap receipts across multiple
// independent relays and selects one sender at random. No single relay is
// authoritative and any one may be slow, unreachable, or incomplete, so the
// scanner queries all of them in parallel, accepts partial results, and
// merges what arrives.
package zapscan

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/errgroup"

	"github.com/daybook-labs/daybook/internal/relays"
)

// KindZapReceipt is the event kind of zap receipts.
const KindZapReceipt = 9735

// Defaults for the scan parameters. Amounts at or below MinAmountSats are
// dust and excluded; the boundary is strict (11 passes, 10 does not).
const (
	DefaultWindow       = 7 * time.Hour
	DefaultRelayTimeout = 15 * time.Second
	MinAmountSats       = 10
)

// FetchFunc gathers stored events from one relay; relays.FetchStored is the
// production implementation.
type FetchFunc func(ctx context.Context, url string, filter nostr.Filter, timeout time.Duration) ([]*nostr.Event, error)

// Receipt is one decoded, qualifying zap receipt.
type Receipt struct {
	ID         string
	Sender     string
	AmountSats int64
	SourceURL  string
}

// Result is the randomly selected sender of a qualifying receipt.
type Result struct {
	Sender     string
	AmountSats int64
	ReceiptID  string
}

// Scanner scans a fixed relay list for recent zap receipts.
type Scanner struct {
	urls     []string
	fetch    FetchFunc
	log      *slog.Logger
	window   time.Duration
	perRelay time.Duration
	minSats  int64
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWindow overrides the lookback window.
func WithWindow(d time.Duration) Option {
	return func(s *Scanner) { s.window = d }
}

// WithRelayTimeout overrides the per-relay collection timeout.
func WithRelayTimeout(d time.Duration) Option {
	return func(s *Scanner) { s.perRelay = d }
}

// WithMinAmount overrides the strict lower amount bound in sats.
func WithMinAmount(sats int64) Option {
	return func(s *Scanner) { s.minSats = sats }
}

// WithFetcher replaces the per-relay fetch implementation.
func WithFetcher(fn FetchFunc) Option {
	return func(s *Scanner) { s.fetch = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.log = l }
}

// New creates a Scanner over the given relay URLs.
func New(urls []string, opts ...Option) *Scanner {
	s := &Scanner{
		urls:     urls,
		fetch:    relays.FetchStored,
		log:      slog.Default(),
		window:   DefaultWindow,
		perRelay: DefaultRelayTimeout,
		minSats:  MinAmountSats,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan collects receipts over the lookback window, filters them, and
// returns one uniformly random sender. It returns nil (with no error) when
// nothing survives filtering or when every relay connection failed: an
// empty scan is a normal outcome, not a fault.
func (s *Scanner) Scan(ctx context.Context, exclude map[string]struct{}) (*Result, error) {
	receipts, err := s.Receipts(ctx, exclude)
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, nil
	}
	rand.Shuffle(len(receipts), func(i, j int) {
		receipts[i], receipts[j] = receipts[j], receipts[i]
	})
	pick := receipts[0]
	return &Result{Sender: pick.Sender, AmountSats: pick.AmountSats, ReceiptID: pick.ID}, nil
}

// SenderSet returns the set of qualifying senders seen in the window,
// mapped to the largest amount each sent. Used as a secondary quality
// signal by recipient selection.
func (s *Scanner) SenderSet(ctx context.Context, exclude map[string]struct{}) map[string]int64 {
	receipts, err := s.Receipts(ctx, exclude)
	if err != nil {
		return nil
	}
	out := make(map[string]int64, len(receipts))
	for _, r := range receipts {
		if r.AmountSats > out[r.Sender] {
			out[r.Sender] = r.AmountSats
		}
	}
	return out
}

// Receipts runs the parallel collection and filtering pipeline.
func (s *Scanner) Receipts(ctx context.Context, exclude map[string]struct{}) ([]Receipt, error) {
	since := nostr.Timestamp(time.Now().Add(-s.window).Unix())
	filter := nostr.Filter{
		Kinds: []int{KindZapReceipt},
		Since: &since,
	}

	var (
		mu        sync.Mutex
		collected []*nostr.Event
		sources   = make(map[string]string) // event id -> relay url
		responded int
	)

	g := new(errgroup.Group)
	for _, url := range s.urls {
		g.Go(func() error {
			events, err := s.fetch(ctx, url, filter, s.perRelay)
			if err != nil {
				// One relay failing must not cancel or delay its siblings.
				s.log.Debug("zap scan: relay failed",
					slog.String("relay", url),
					slog.String("error", err.Error()))
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			responded++
			for _, evt := range events {
				if _, dup := sources[evt.ID]; dup {
					continue // first occurrence wins
				}
				sources[evt.ID] = url
				collected = append(collected, evt)
			}
			return nil
		})
	}
	_ = g.Wait()

	if responded == 0 {
		s.log.Warn("zap scan: no relay responded", slog.Int("relays", len(s.urls)))
		return nil, nil
	}

	var out []Receipt
	for _, evt := range collected {
		r, ok := s.decode(evt, exclude)
		if !ok {
			continue
		}
		r.SourceURL = sources[evt.ID]
		out = append(out, r)
	}
	s.log.Debug("zap scan complete",
		slog.Int("collected", len(collected)),
		slog.Int("qualifying", len(out)),
		slog.Int("relays_responded", responded))
	return out, nil
}

// decode applies the per-receipt validity rules. Malformed records are
// dropped silently; they only matter as diagnostics.
func (s *Scanner) decode(evt *nostr.Event, exclude map[string]struct{}) (Receipt, bool) {
	// Must reference a target post or addressable target.
	if evt.Tags.GetFirst([]string{"e"}) == nil && evt.Tags.GetFirst([]string{"a"}) == nil {
		return Receipt{}, false
	}

	bolt11 := evt.Tags.GetFirst([]string{"bolt11"})
	if bolt11 == nil {
		return Receipt{}, false
	}
	sats, err := DecodeAmountSats(bolt11.Value())
	if err != nil || sats <= s.minSats {
		return Receipt{}, false
	}

	// The original zap request rides inside the description tag; its author
	// is the paying identity.
	desc := evt.Tags.GetFirst([]string{"description"})
	if desc == nil {
		return Receipt{}, false
	}
	var request nostr.Event
	if err := json.Unmarshal([]byte(desc.Value()), &request); err != nil || request.PubKey == "" {
		return Receipt{}, false
	}
	if _, excluded := exclude[request.PubKey]; excluded {
		return Receipt{}, false
	}

	return Receipt{ID: evt.ID, Sender: request.PubKey, AmountSats: sats}, true
}
