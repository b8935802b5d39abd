package recipient

import (
	"context"
	"log/slog"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/daybook-labs/daybook/internal/profile"
	"github.com/daybook-labs/daybook/internal/profilecache"
	"github.com/daybook-labs/daybook/internal/relays"
)

// DefaultPostWindow is how far back RelayPostSource looks for post authors.
const DefaultPostWindow = 4 * time.Hour

const recentPostLimit = 200

// RelayPostSource lists authors of recent short text notes from the
// configured relays.
type RelayPostSource struct {
	client *relays.Client
	window time.Duration
}

// NewRelayPostSource builds a post source; window <= 0 uses
// DefaultPostWindow.
func NewRelayPostSource(client *relays.Client, window time.Duration) *RelayPostSource {
	if window <= 0 {
		window = DefaultPostWindow
	}
	return &RelayPostSource{client: client, window: window}
}

func (s *RelayPostSource) RecentAuthors(ctx context.Context) ([]string, error) {
	since := nostr.Timestamp(time.Now().Add(-s.window).Unix())
	filter := nostr.Filter{
		Kinds: []int{nostr.KindTextNote},
		Since: &since,
		Limit: recentPostLimit,
	}
	events, _ := s.client.CollectEOSE(ctx, s.client.URLs(), filter, relays.DefaultCollectTimeout)
	authors := make([]string, 0, len(events))
	for _, evt := range events {
		authors = append(authors, evt.PubKey)
	}
	return authors, nil
}

// CachingProfileSource resolves profiles through the sqlite cache, going to
// the relays only for misses and writing those back.
type CachingProfileSource struct {
	cache  *profilecache.Cache
	client *relays.Client
	log    *slog.Logger
}

// NewCachingProfileSource builds the resolver. cache may be nil, in which
// case every lookup hits the relays.
func NewCachingProfileSource(cache *profilecache.Cache, client *relays.Client, logger *slog.Logger) *CachingProfileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingProfileSource{cache: cache, client: client, log: logger}
}

func (s *CachingProfileSource) Resolve(ctx context.Context, pubkeys []string) (map[string]*profile.Profile, error) {
	out := make(map[string]*profile.Profile, len(pubkeys))

	if s.cache != nil {
		cached, err := s.cache.GetMany(pubkeys)
		if err != nil {
			s.log.Warn("profile cache read failed", slog.String("error", err.Error()))
		} else {
			for pk, p := range cached {
				out[pk] = p
			}
		}
	}

	var missing []string
	for _, pk := range pubkeys {
		if _, ok := out[pk]; !ok {
			missing = append(missing, pk)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	filter := nostr.Filter{
		Kinds:   []int{nostr.KindProfileMetadata},
		Authors: missing,
	}
	events, _ := s.client.CollectEOSE(ctx, s.client.URLs(), filter, relays.DefaultCollectTimeout)
	for _, evt := range events {
		p := profile.FromEvent(evt)
		if p == nil {
			continue
		}
		// Metadata is replaceable, keep whichever copy we saw first; the
		// pool already deduplicated by event id.
		if _, ok := out[p.PubKey]; ok {
			continue
		}
		out[p.PubKey] = p
		if s.cache != nil {
			if err := s.cache.Upsert(p); err != nil {
				s.log.Warn("profile cache write failed",
					slog.String("pubkey", profile.ShortKey(p.PubKey)),
					slog.String("error", err.Error()))
			}
		}
	}
	return out, nil
}
