package api

import (
	"time"

	"github.com/daybook-labs/daybook/internal/daycal"
	"github.com/daybook-labs/daybook/internal/profile"
)

// SaveReflectionRequest is the request body for saving a reflection.
type SaveReflectionRequest struct {
	Body string `json:"body" example:"grateful for the rain" validate:"required"`
}

// ReflectionDetail is the full reflection response type.
type ReflectionDetail struct {
	Date        string    `json:"date" example:"2024-12-06"`
	Day         int       `json:"day" example:"341"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

// ReflectionListResponse wraps reflection listings.
type ReflectionListResponse struct {
	Reflections []ReflectionDetail `json:"reflections" validate:"required"`
	Total       int                `json:"total" example:"42" validate:"required"`
}

// DayResponse is the calendar payload for one date.
type DayResponse struct {
	Date        string `json:"date" example:"2024-12-06"`
	Day         int    `json:"day" example:"341"`
	TotalDays   int    `json:"total_days" example:"366"`
	Unlocked    bool   `json:"unlocked"`
	Today       bool   `json:"today"`
	Quote       string `json:"quote"`
	Prompt      string `json:"prompt"`
	Affirmation string `json:"affirmation"`
}

// ProfileDTO is the outward shape of a profile.
type ProfileDTO struct {
	PubKey         string `json:"pubkey"`
	Label          string `json:"label"`
	Name           string `json:"name,omitempty"`
	DisplayName    string `json:"display_name,omitempty"`
	Picture        string `json:"picture,omitempty"`
	NIP05          string `json:"nip05,omitempty"`
	PaymentAddress string `json:"payment_address,omitempty"`
}

func profileDTO(p *profile.Profile) ProfileDTO {
	return ProfileDTO{
		PubKey:         p.PubKey,
		Label:          p.Label(),
		Name:           p.Name,
		DisplayName:    p.DisplayName,
		Picture:        p.Picture,
		NIP05:          p.NIP05,
		PaymentAddress: p.PaymentAddress(),
	}
}

// SearchResponse wraps profile search results. Degraded marks answers
// served from the local cache while the search channel is down.
type SearchResponse struct {
	Results  []ProfileDTO `json:"results" validate:"required"`
	Degraded bool         `json:"degraded,omitempty"`
}

// FeedPost is one community post in the feed response.
type FeedPost struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Label     string    `json:"label"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedResponse wraps the community feed.
type FeedResponse struct {
	Posts []FeedPost `json:"posts" validate:"required"`
}

// RenderRequest is the request body for mention rendering.
type RenderRequest struct {
	Text string `json:"text" validate:"required"`
}

// RenderResponse carries text with mentions substituted for display.
type RenderResponse struct {
	Rendered string   `json:"rendered"`
	Mentions []string `json:"mentions"`
}

// RecipientResponse is a selected gift recipient.
type RecipientResponse struct {
	Recipient ProfileDTO `json:"recipient"`
	Address   string     `json:"address"`
}

// SendGiftRequest is the request body for sending a gift.
type SendGiftRequest struct {
	RecipientPubKey string `json:"recipient_pubkey" validate:"required"`
	Address         string `json:"address" validate:"required"`
	AmountSats      int64  `json:"amount_sats" example:"21" validate:"required"`
	Comment         string `json:"comment,omitempty"`
	EventID         string `json:"event_id,omitempty"`
}

// GiftResponse is the state of one gift.
type GiftResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	PaidVia        string `json:"paid_via,omitempty"`
	PaymentRequest string `json:"payment_request,omitempty"`
	WalletURI      string `json:"wallet_uri,omitempty"`
}

func dayResponse(date time.Time) DayResponse {
	day := daycal.DayOfYear(date)
	content := daycal.ContentFor(day)
	return DayResponse{
		Date:        daycal.DateKey(date),
		Day:         day,
		TotalDays:   daycal.TotalDays(date.Year()),
		Unlocked:    daycal.IsUnlocked(date),
		Today:       daycal.IsToday(date),
		Quote:       content.Quote,
		Prompt:      content.Prompt,
		Affirmation: content.Affirmation,
	}
}
