package recipient

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/daybook-labs/daybook/internal/apperr"
	"github.com/daybook-labs/daybook/internal/profile"
	"github.com/daybook-labs/daybook/internal/zapscan"
)

// PostSource lists authors who published recently.
type PostSource interface {
	RecentAuthors(ctx context.Context) ([]string, error)
}

// ProfileSource resolves profiles for the given pubkeys. Unresolvable keys
// are simply absent from the result.
type ProfileSource interface {
	Resolve(ctx context.Context, pubkeys []string) (map[string]*profile.Profile, error)
}

// ZapActivity exposes recent zap senders as a quality signal.
type ZapActivity interface {
	SenderSet(ctx context.Context, exclude map[string]struct{}) map[string]int64
}

// RecentPostersStrategy samples authors of recent posts. Authors who have
// themselves zapped recently are preferred; when none of the pool has, the
// whole pool stays eligible rather than returning empty-handed.
type RecentPostersStrategy struct {
	posts    PostSource
	profiles ProfileSource
	zaps     ZapActivity
	classify Classifier
	log      *slog.Logger
}

// NewRecentPostersStrategy builds strategy over the given sources. zaps may
// be nil to disable the preference pass; classify defaults to
// DefaultClassifier.
func NewRecentPostersStrategy(posts PostSource, profiles ProfileSource, zaps ZapActivity, classify Classifier, logger *slog.Logger) *RecentPostersStrategy {
	if classify == nil {
		classify = DefaultClassifier
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecentPostersStrategy{posts: posts, profiles: profiles, zaps: zaps, classify: classify, log: logger}
}

func (s *RecentPostersStrategy) Name() string { return "recent_posters" }

func (s *RecentPostersStrategy) Pick(ctx context.Context, exclude map[string]struct{}) (*Candidate, error) {
	authors, err := s.posts.RecentAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("recipient: listing recent authors: %w", err)
	}

	seen := make(map[string]struct{}, len(authors))
	keys := make([]string, 0, len(authors))
	for _, pk := range authors {
		if _, dup := seen[pk]; dup {
			continue
		}
		if _, excluded := exclude[pk]; excluded {
			continue
		}
		seen[pk] = struct{}{}
		keys = append(keys, pk)
	}
	if len(keys) == 0 {
		return nil, apperr.ErrNoRecipient
	}

	resolved, err := s.profiles.Resolve(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("recipient: resolving profiles: %w", err)
	}

	var pool []*Candidate
	for _, pk := range keys {
		c, err := validateCandidate(resolved[pk], s.classify)
		if err != nil {
			s.log.Debug("recipient: candidate skipped", slog.String("reason", err.Error()))
			continue
		}
		pool = append(pool, c)
	}
	if len(pool) == 0 {
		return nil, apperr.ErrNoRecipient
	}

	if s.zaps != nil {
		if senders := s.zaps.SenderSet(ctx, nil); len(senders) > 0 {
			var preferred []*Candidate
			for _, c := range pool {
				if _, ok := senders[c.PubKey]; ok {
					preferred = append(preferred, c)
				}
			}
			if len(preferred) > 0 {
				pool = preferred
			}
		}
	}

	return pool[rand.IntN(len(pool))], nil
}

// ZapSendersStrategy samples people who recently sent zaps. Having paid an
// invoice proves both humanity and a working wallet, so candidates only
// need a payment address check.
type ZapSendersStrategy struct {
	scanner  *zapscan.Scanner
	profiles ProfileSource
	log      *slog.Logger
}

// NewZapSendersStrategy builds the strategy over a receipt scanner.
func NewZapSendersStrategy(scanner *zapscan.Scanner, profiles ProfileSource, logger *slog.Logger) *ZapSendersStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &ZapSendersStrategy{scanner: scanner, profiles: profiles, log: logger}
}

func (s *ZapSendersStrategy) Name() string { return "zap_senders" }

// Pick delegates the random draw to the scanner, then validates the one
// sender it returned. An unpayable winner fails the round outright; there is
// deliberately no fallback pool, unlike RecentPostersStrategy.
func (s *ZapSendersStrategy) Pick(ctx context.Context, exclude map[string]struct{}) (*Candidate, error) {
	result, err := s.scanner.Scan(ctx, exclude)
	if err != nil {
		return nil, fmt.Errorf("recipient: scanning zap receipts: %w", err)
	}
	if result == nil {
		return nil, apperr.ErrNoRecipient
	}

	resolved, err := s.profiles.Resolve(ctx, []string{result.Sender})
	if err != nil {
		return nil, fmt.Errorf("recipient: resolving profiles: %w", err)
	}

	c, err := validateCandidate(resolved[result.Sender], nil)
	if err != nil {
		s.log.Debug("recipient: drawn sender unpayable",
			slog.String("sender", profile.ShortKey(result.Sender)),
			slog.String("reason", err.Error()))
		return nil, apperr.ErrNoRecipient
	}
	return c, nil
}
