package journal

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/daybook-labs/daybook/internal/apperr"
	"github.com/daybook-labs/daybook/internal/daycal"
	"github.com/daybook-labs/daybook/internal/relays"
)

// FeedTag is the topical tag community posts carry and the feed filters on.
const FeedTag = "daybook"

var shareTags = []string{FeedTag, "journaling"}

// Post is one community share post.
type Post struct {
	ID        string
	Author    string
	Content   string
	CreatedAt time.Time
}

// ComposeShareText formats the public version of a reflection: day header,
// the day's quote and affirmation, the user's text, and the canonical link.
func ComposeShareText(e Entry, content daycal.DayContent) string {
	date, err := daycal.ParseDateKey(e.DateKey)
	total := 365
	if err == nil {
		total = daycal.TotalDays(date.Year())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Day %d/%d\n\n", e.Day, total)
	if content.Quote != "" {
		fmt.Fprintf(&b, "%q\n\n", content.Quote)
	}
	if content.Affirmation != "" {
		b.WriteString(content.Affirmation + "\n\n")
	}
	if text := strings.TrimSpace(e.Body); text != "" {
		b.WriteString(text + "\n\n")
	}
	b.WriteString(SiteURL)
	return b.String()
}

// Share publishes a kind-1 community post composed from the entry. The
// reflection itself stays a separate addressable record; sharing is
// optional and additive.
func (s *Service) Share(ctx context.Context, e Entry) (*Post, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	date, _ := daycal.ParseDateKey(e.DateKey)
	content := daycal.ContentFor(daycal.DayOfYear(date))

	tags := nostr.Tags{}
	for _, t := range shareTags {
		tags = append(tags, nostr.Tag{"t", t})
	}
	evt := nostr.Event{
		Kind:      nostr.KindTextNote,
		CreatedAt: nostr.Now(),
		Content:   ComposeShareText(e, content),
		Tags:      tags,
	}
	if err := s.signer.Sign(ctx, &evt); err != nil {
		return nil, fmt.Errorf("journal: signing share post: %w", err)
	}
	if err := s.client.Publish(ctx, evt); err != nil {
		return nil, fmt.Errorf("journal: publishing share post: %w", err)
	}
	return &Post{
		ID:        evt.ID,
		Author:    evt.PubKey,
		Content:   evt.Content,
		CreatedAt: evt.CreatedAt.Time(),
	}, nil
}

// Feed fetches recent community posts, newest first.
func (s *Service) Feed(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 50
	}
	events, responded := s.client.CollectEOSE(ctx, s.client.URLs(), nostr.Filter{
		Kinds: []int{nostr.KindTextNote},
		Tags:  nostr.TagMap{"t": []string{FeedTag}},
		Limit: limit,
	}, relays.DefaultCollectTimeout)
	if responded == 0 {
		return nil, fmt.Errorf("journal: %w: no relay responded", apperr.ErrTimeout)
	}

	posts := make([]Post, 0, len(events))
	for _, evt := range events {
		posts = append(posts, Post{
			ID:        evt.ID,
			Author:    evt.PubKey,
			Content:   evt.Content,
			CreatedAt: evt.CreatedAt.Time(),
		})
	}
	slices.SortFunc(posts, func(a, b Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}
