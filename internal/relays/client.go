// Package relays wraps go-nostr with the small set of relay operations the
// rest of the daemon needs: best-effort publish, single-event query, live
// subscription, and parallel collect-until-EOSE. The relay list is swappable
// at runtime so config reloads take effect without restarting subscriptions.
package relays

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/errgroup"
)

// DefaultCollectTimeout bounds how long a single relay may take to reach
// EOSE before its partial results are accepted.
const DefaultCollectTimeout = 15 * time.Second

// Client is an injected relay-pool client. One instance is shared per
// process; it is safe for concurrent use.
type Client struct {
	pool *nostr.SimplePool
	urls atomic.Pointer[[]string]
	log  *slog.Logger
}

// NewClient creates a Client over the given relay URLs. ctx bounds the
// lifetime of the underlying pool connections.
func NewClient(ctx context.Context, urls []string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		pool: nostr.NewSimplePool(ctx),
		log:  logger,
	}
	c.SetURLs(urls)
	return c
}

// URLs returns the current relay list.
func (c *Client) URLs() []string {
	p := c.urls.Load()
	if p == nil {
		return nil
	}
	return *p
}

// SetURLs atomically replaces the relay list. In-flight operations keep the
// list they started with.
func (c *Client) SetURLs(urls []string) {
	cp := make([]string, len(urls))
	copy(cp, urls)
	c.urls.Store(&cp)
}

// Publish sends a signed event to every relay in the list and returns an
// error only when no relay accepted it. Individual relay rejections are
// logged and otherwise ignored.
func (c *Client) Publish(ctx context.Context, evt nostr.Event) error {
	urls := c.URLs()
	if len(urls) == 0 {
		return fmt.Errorf("relays: no relays configured")
	}
	accepted := 0
	for res := range c.pool.PublishMany(ctx, urls, evt) {
		if res.Error != nil {
			c.log.Debug("relay rejected event",
				slog.String("relay", res.RelayURL),
				slog.String("error", res.Error.Error()))
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return fmt.Errorf("relays: event %s accepted by no relay", evt.GetID())
	}
	return nil
}

// QuerySingle returns the first event matching filter from any relay, or nil
// when nothing matched before ctx expired.
func (c *Client) QuerySingle(ctx context.Context, filter nostr.Filter) *nostr.Event {
	re := c.pool.QuerySingle(ctx, c.URLs(), filter)
	if re == nil {
		return nil
	}
	return re.Event
}

// Subscribe opens a live subscription across the current relay list. The
// returned channel closes when ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, filter nostr.Filter) <-chan nostr.RelayEvent {
	return c.pool.SubscribeMany(ctx, c.URLs(), filter)
}

// CollectEOSE opens one short-lived connection per URL in parallel, collects
// events matching filter until that relay signals end-of-stored-events or
// perRelay elapses, and merges the results deduplicated by event id (first
// occurrence wins). Per-relay failures are independent: a dead relay only
// shrinks the result set. The returned count is the number of relays that
// produced any response at all.
func (c *Client) CollectEOSE(ctx context.Context, urls []string, filter nostr.Filter, perRelay time.Duration) ([]*nostr.Event, int) {
	if perRelay <= 0 {
		perRelay = DefaultCollectTimeout
	}

	var (
		mu        sync.Mutex
		seen      = make(map[string]struct{})
		merged    []*nostr.Event
		responded int
	)

	g := new(errgroup.Group)
	for _, url := range urls {
		g.Go(func() error {
			events, err := FetchStored(ctx, url, filter, perRelay)
			if err != nil {
				c.log.Debug("relay collect failed",
					slog.String("relay", url),
					slog.String("error", err.Error()))
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			responded++
			for _, evt := range events {
				if _, dup := seen[evt.ID]; dup {
					continue
				}
				seen[evt.ID] = struct{}{}
				merged = append(merged, evt)
			}
			return nil
		})
	}
	_ = g.Wait()
	return merged, responded
}

// FetchStored gathers stored events from a single relay over a short-lived
// connection, returning when the relay signals end-of-stored-events or the
// timeout elapses. Reaching the timeout is a normal outcome: whatever
// arrived so far is returned.
func FetchStored(parent context.Context, url string, filter nostr.Filter, timeout time.Duration) ([]*nostr.Event, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	relay, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("relays: connect %s: %w", url, err)
	}
	defer relay.Close()

	sub, err := relay.Subscribe(ctx, nostr.Filters{filter})
	if err != nil {
		return nil, fmt.Errorf("relays: subscribe %s: %w", url, err)
	}
	defer sub.Unsub()

	var out []*nostr.Event
	for {
		select {
		case evt, ok := <-sub.Events:
			if !ok {
				return out, nil
			}
			out = append(out, evt)
		case <-sub.EndOfStoredEvents:
			return out, nil
		case <-ctx.Done():
			// Partial results from a slow relay are acceptable.
			return out, nil
		}
	}
}
