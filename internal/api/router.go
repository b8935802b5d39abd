package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, gh *GiftHandler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Calendar.
	r.Get("/days/{date}", h.GetDay)

	// Reflections.
	r.Get("/reflections", h.ListReflections)
	r.Get("/reflections/{date}", h.GetReflection)
	r.Put("/reflections/{date}", h.SaveReflection)
	r.Post("/reflections/{date}/share", h.ShareReflection)

	// Community feed.
	r.Get("/feed", h.Feed)

	// Profiles and mentions.
	r.Get("/search", h.SearchProfiles)
	r.Get("/profiles/{pubkey}", h.GetProfile)
	r.Post("/mentions/render", h.RenderMentions)

	// Gifts.
	if gh != nil {
		r.Post("/gifts/recipient", gh.SelectRecipient)
		r.Post("/gifts", gh.SendGift)
		r.Get("/gifts/{id}", gh.GetGift)
		r.Get("/gifts/{id}/qr", gh.GiftQR)
		r.Post("/gifts/{id}/verify", gh.VerifyGift)
		r.Post("/gifts/{id}/confirm", gh.ConfirmGift)
	}

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
