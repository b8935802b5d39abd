// Package journal publishes daily reflections as addressable relay records
// and composes optional community share posts. Relays are the only durable
// store: saving a reflection for a date key replaces whatever the relays
// held for that key before (last write wins, no merge).
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/nbd-wtf/go-nostr"

	"github.com/daybook-labs/daybook/internal/apperr"
	"github.com/daybook-labs/daybook/internal/daycal"
	"github.com/daybook-labs/daybook/internal/relays"
	"github.com/daybook-labs/daybook/internal/signer"
)

// KindReflection is the addressable event kind holding one reflection per
// author per date key.
const KindReflection = 30777

// SiteURL is the canonical link attached to shared posts.
const SiteURL = "https://daybook.to"

// MaxBodyLen bounds the reflection text.
const MaxBodyLen = 8000

// Entry is one daily reflection.
type Entry struct {
	Author      string
	DateKey     string // YYYY-MM-DD
	Day         int    // 1..366
	Body        string
	PublishedAt time.Time
}

// Validate rejects bad user input before any network call. The date key
// must parse, must not lie in the future, and must agree with the declared
// day-of-year.
func (e Entry) Validate() error {
	if err := validation.ValidateStruct(&e,
		validation.Field(&e.DateKey, validation.Required, validation.Date(daycal.DateKeyLayout)),
		validation.Field(&e.Body, validation.Required, validation.Length(1, MaxBodyLen)),
	); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	date, err := daycal.ParseDateKey(e.DateKey)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	if daycal.IsFuture(date) {
		return fmt.Errorf("%w: date %s is not unlocked yet", apperr.ErrInvalidInput, e.DateKey)
	}
	if want := daycal.DayOfYear(date); e.Day != want {
		return fmt.Errorf("%w: day %d does not match date %s (day %d)", apperr.ErrInvalidInput, e.Day, e.DateKey, want)
	}
	return nil
}

// BuildEvent constructs and signs the addressable reflection event.
func BuildEvent(ctx context.Context, sgn signer.Signer, e Entry) (*nostr.Event, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	now := nostr.Now()
	evt := nostr.Event{
		Kind:      KindReflection,
		CreatedAt: now,
		Content:   e.Body,
		Tags: nostr.Tags{
			{"d", e.DateKey},
			{"published_at", strconv.FormatInt(int64(now), 10)},
			{"day", strconv.Itoa(e.Day)},
			{"alt", "Daily reflection for " + e.DateKey},
		},
	}
	if err := sgn.Sign(ctx, &evt); err != nil {
		return nil, fmt.Errorf("journal: signing reflection: %w", err)
	}
	return &evt, nil
}

// EntryFromEvent parses a reflection event. Returns nil for events of the
// wrong kind or without a date key.
func EntryFromEvent(evt *nostr.Event) *Entry {
	if evt == nil || evt.Kind != KindReflection {
		return nil
	}
	dTag := evt.Tags.GetFirst([]string{"d"})
	if dTag == nil {
		return nil
	}
	dateKey := dTag.Value()
	if _, err := daycal.ParseDateKey(dateKey); err != nil {
		return nil
	}
	e := &Entry{
		Author:      evt.PubKey,
		DateKey:     dateKey,
		Body:        evt.Content,
		PublishedAt: evt.CreatedAt.Time(),
	}
	if dayTag := evt.Tags.GetFirst([]string{"day"}); dayTag != nil {
		if n, err := strconv.Atoi(dayTag.Value()); err == nil {
			e.Day = n
		}
	}
	if pubTag := evt.Tags.GetFirst([]string{"published_at"}); pubTag != nil {
		if sec, err := strconv.ParseInt(pubTag.Value(), 10, 64); err == nil {
			e.PublishedAt = time.Unix(sec, 0)
		}
	}
	return e
}

// Service saves and reads reflections through the relay pool.
type Service struct {
	signer signer.Signer
	client *relays.Client
	log    *slog.Logger
}

// NewService wires the journal service.
func NewService(sgn signer.Signer, client *relays.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{signer: sgn, client: client, log: logger}
}

// Save validates, signs, and publishes a reflection for the acting user.
// Republishing the same date key replaces the previous record at the
// relays; there is nothing to delete.
func (s *Service) Save(ctx context.Context, dateKey, body string) (*Entry, error) {
	date, err := daycal.ParseDateKey(dateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	e := Entry{
		Author:  s.signer.PublicKey(),
		DateKey: dateKey,
		Day:     daycal.DayOfYear(date),
		Body:    body,
	}
	evt, err := BuildEvent(ctx, s.signer, e)
	if err != nil {
		return nil, err
	}
	if err := s.client.Publish(ctx, *evt); err != nil {
		return nil, fmt.Errorf("journal: publishing reflection: %w", err)
	}
	e.PublishedAt = evt.CreatedAt.Time()
	s.log.Info("reflection saved",
		slog.String("date", dateKey),
		slog.Int("day", e.Day))
	return &e, nil
}

// Get fetches the current reflection for one date key.
func (s *Service) Get(ctx context.Context, author, dateKey string) (*Entry, error) {
	if _, err := daycal.ParseDateKey(dateKey); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	evt := s.client.QuerySingle(ctx, nostr.Filter{
		Kinds:   []int{KindReflection},
		Authors: []string{author},
		Tags:    nostr.TagMap{"d": []string{dateKey}},
	})
	e := EntryFromEvent(evt)
	if e == nil {
		return nil, apperr.ErrNotFound
	}
	return e, nil
}

// List returns the author's reflections, newest first. Relays are expected
// to keep only the latest record per date key, but a lagging relay may
// still serve a stale copy, so duplicates are resolved newest-wins here.
func (s *Service) List(ctx context.Context, author string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	events, responded := s.client.CollectEOSE(ctx, s.client.URLs(), nostr.Filter{
		Kinds:   []int{KindReflection},
		Authors: []string{author},
		Limit:   limit,
	}, relays.DefaultCollectTimeout)
	if responded == 0 {
		return nil, fmt.Errorf("journal: %w: no relay responded", apperr.ErrTimeout)
	}

	byDate := make(map[string]Entry)
	for _, evt := range events {
		e := EntryFromEvent(evt)
		if e == nil {
			continue
		}
		if prev, ok := byDate[e.DateKey]; ok && !e.PublishedAt.After(prev.PublishedAt) {
			continue
		}
		byDate[e.DateKey] = *e
	}
	out := make([]Entry, 0, len(byDate))
	for _, e := range byDate {
		out = append(out, e)
	}
	// Date keys sort lexicographically in calendar order.
	slices.SortFunc(out, func(a, b Entry) int {
		return strings.Compare(b.DateKey, a.DateKey)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
