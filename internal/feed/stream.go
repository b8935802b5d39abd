// Package feed keeps a live subscription on the community feed and pushes
// new posts to connected SSE clients, warming the profile cache for authors
// it has not seen before.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/daybook-labs/daybook/internal/journal"
	"github.com/daybook-labs/daybook/internal/profile"
	"github.com/daybook-labs/daybook/internal/profilecache"
	"github.com/daybook-labs/daybook/internal/relays"
	"github.com/daybook-labs/daybook/internal/sse"
)

// resubscribeDelay spaces reconnect attempts when the subscription channel
// closes while the daemon is still running.
const resubscribeDelay = 5 * time.Second

// profileFetchTimeout bounds each background author lookup.
const profileFetchTimeout = 10 * time.Second

// seenCap bounds the dedupe set; duplicates arrive close together (several
// relays delivering the same event), so only recent ids matter.
const seenCap = 4096

// recentSet is a fixed-capacity set of event ids that evicts its oldest
// entry once full.
type recentSet struct {
	limit int
	order []string
	seen  map[string]struct{}
}

func newRecentSet(limit int) *recentSet {
	return &recentSet{limit: limit, seen: make(map[string]struct{}, limit)}
}

// Add inserts id and reports whether it was new.
func (r *recentSet) Add(id string) bool {
	if _, dup := r.seen[id]; dup {
		return false
	}
	if len(r.order) >= r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.seen, oldest)
	}
	r.seen[id] = struct{}{}
	r.order = append(r.order, id)
	return true
}

// Streamer pumps live community posts into the SSE broker.
type Streamer struct {
	client *relays.Client
	broker *sse.Broker
	cache  *profilecache.Cache
	log    *slog.Logger
}

// NewStreamer wires the streamer. cache may be nil to skip profile warming.
func NewStreamer(client *relays.Client, broker *sse.Broker, cache *profilecache.Cache, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{client: client, broker: broker, cache: cache, log: logger}
}

// Run blocks until ctx ends, resubscribing whenever the relay subscription
// drops. Suitable as an errgroup task.
func (s *Streamer) Run(ctx context.Context) error {
	seen := newRecentSet(seenCap)
	for {
		since := nostr.Now()
		events := s.client.Subscribe(ctx, nostr.Filter{
			Kinds: []int{nostr.KindTextNote},
			Tags:  nostr.TagMap{"t": []string{journal.FeedTag}},
			Since: &since,
		})
		s.log.Info("feed stream subscribed", slog.Int("relays", len(s.client.URLs())))

		for re := range events {
			evt := re.Event
			if evt == nil {
				continue
			}
			if !seen.Add(evt.ID) {
				continue
			}
			s.broker.PublishFeedPost(evt.ID, evt.PubKey)
			s.warmProfile(ctx, evt.PubKey)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resubscribeDelay):
		}
	}
}

// warmProfile fetches an unseen author's metadata in the background so the
// feed can label them. Failures only cost a label.
func (s *Streamer) warmProfile(ctx context.Context, pubkey string) {
	if s.cache == nil {
		return
	}
	if p, err := s.cache.Get(pubkey); err == nil && p != nil {
		return
	}
	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, profileFetchTimeout)
		defer cancel()
		evt := s.client.QuerySingle(fetchCtx, nostr.Filter{
			Kinds:   []int{nostr.KindProfileMetadata},
			Authors: []string{pubkey},
		})
		p := profile.FromEvent(evt)
		if p == nil {
			return
		}
		if err := s.cache.Upsert(p); err != nil {
			s.log.Debug("feed: caching author profile failed",
				slog.String("pubkey", profile.ShortKey(pubkey)),
				slog.String("error", err.Error()))
		}
	}()
}
