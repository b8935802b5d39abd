// Package recipient picks who receives an anonymous gift. Two strategies
// are available: one samples authors who posted recently, the other samples
// people who recently sent zaps themselves. Both exclude the giver and the
// last few recipients so gifts spread across the community.
package recipient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/daybook-labs/daybook/internal/apperr"
	"github.com/daybook-labs/daybook/internal/localstore"
	"github.com/daybook-labs/daybook/internal/profile"
)

// Candidate is a selected gift recipient with a usable payment address.
type Candidate struct {
	PubKey  string
	Profile *profile.Profile
	Address string
}

// Strategy produces one candidate, honoring the exclusion set. It returns
// apperr.ErrNoRecipient when nobody qualifies.
type Strategy interface {
	Name() string
	Pick(ctx context.Context, exclude map[string]struct{}) (*Candidate, error)
}

// Classifier reports whether a profile should be skipped as an automated
// or organizational account. Pluggable so deployments can tune it.
type Classifier func(p *profile.Profile) bool

// DefaultClassifier skips accounts whose NIP-05 identifier or lightning
// address looks like a bot or news mirror.
func DefaultClassifier(p *profile.Profile) bool {
	nip05 := strings.ToLower(p.NIP05)
	if strings.Contains(nip05, "bot") || strings.Contains(nip05, "news") {
		return true
	}
	addr := strings.ToLower(p.PaymentAddress())
	return strings.Contains(addr, "bot")
}

// Selector wraps a strategy with self/recent-recipient exclusion and
// recent-recipient bookkeeping.
type Selector struct {
	strategy Strategy
	self     string
	recent   *localstore.RecentLog
	log      *slog.Logger
}

// NewSelector builds a Selector. self is the giver's public key; recent may
// be nil when no local store is configured.
func NewSelector(strategy Strategy, self string, recent *localstore.RecentLog, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{strategy: strategy, self: self, recent: recent, log: logger}
}

// Select picks a recipient. The giver is always excluded. Recent recipients
// are excluded too, but that constraint is relaxed when it would otherwise
// leave nobody: repeating a recipient beats giving to no one.
func (s *Selector) Select(ctx context.Context) (*Candidate, error) {
	exclude := map[string]struct{}{s.self: {}}
	if s.recent != nil {
		for _, key := range s.recent.Keys() {
			exclude[key] = struct{}{}
		}
	}

	c, err := s.strategy.Pick(ctx, exclude)
	if err == apperr.ErrNoRecipient && len(exclude) > 1 {
		s.log.Info("recipient selection: relaxing recent-recipient exclusion",
			slog.String("strategy", s.strategy.Name()))
		c, err = s.strategy.Pick(ctx, map[string]struct{}{s.self: {}})
	}
	if err != nil {
		return nil, err
	}

	if s.recent != nil {
		if err := s.recent.Push(c.PubKey); err != nil {
			s.log.Warn("recipient selection: recording recipient failed",
				slog.String("error", err.Error()))
		}
	}
	s.log.Info("recipient selected",
		slog.String("strategy", s.strategy.Name()),
		slog.String("pubkey", profile.ShortKey(c.PubKey)))
	return c, nil
}

// validateCandidate checks that a profile is payable and passes the
// classifier, returning the finished candidate.
func validateCandidate(p *profile.Profile, classify Classifier) (*Candidate, error) {
	if p == nil {
		return nil, fmt.Errorf("recipient: no profile")
	}
	addr := p.PaymentAddress()
	if addr == "" {
		return nil, fmt.Errorf("recipient: %s has no payment address", profile.ShortKey(p.PubKey))
	}
	if classify != nil && classify(p) {
		return nil, fmt.Errorf("recipient: %s classified as automated", profile.ShortKey(p.PubKey))
	}
	return &Candidate{PubKey: p.PubKey, Profile: p, Address: addr}, nil
}
