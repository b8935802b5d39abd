package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/daybook-labs/daybook/internal/apperr"
	"github.com/daybook-labs/daybook/internal/daycal"
	"github.com/daybook-labs/daybook/internal/journal"
	"github.com/daybook-labs/daybook/internal/mention"
	"github.com/daybook-labs/daybook/internal/profile"
)

// JournalService is the journal surface the API needs.
type JournalService interface {
	Save(ctx context.Context, dateKey, body string) (*journal.Entry, error)
	Get(ctx context.Context, author, dateKey string) (*journal.Entry, error)
	List(ctx context.Context, author string, limit int) ([]journal.Entry, error)
	Share(ctx context.Context, e journal.Entry) (*journal.Post, error)
	Feed(ctx context.Context, limit int) ([]journal.Post, error)
}

// ProfileSearcher is the profile lookup surface the API needs.
type ProfileSearcher interface {
	Search(ctx context.Context, text string, limit int) ([]profile.Profile, error)
	FetchByIdentity(ctx context.Context, pubkey string) (*profile.Profile, error)
}

// LocalSearcher is the cached name search consulted when the live search
// channel is down.
type LocalSearcher interface {
	Search(query string, limit int) ([]profile.Profile, error)
}

// Handler holds API route handlers.
type Handler struct {
	self     string
	journal  JournalService
	searcher ProfileSearcher
	local    LocalSearcher
	resolve  mention.Resolver
}

// NewHandler creates a new Handler. self is the acting user's public key;
// resolve labels mentions and feed authors from the profile cache; local
// and resolve may be nil.
func NewHandler(self string, journalSvc JournalService, searcher ProfileSearcher, local LocalSearcher, resolve mention.Resolver) *Handler {
	return &Handler{self: self, journal: journalSvc, searcher: searcher, local: local, resolve: resolve}
}

func dateParam(r *http.Request) string {
	return chi.URLParam(r, "date")
}

// GetDay handles GET /api/days/{date}.
//
//	@Summary		Get calendar content for one date
//	@Tags			days
//	@Produce		json
//	@Param			date	path		string	true	"Date key (YYYY-MM-DD)"
//	@Success		200		{object}	DayResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days/{date} [get]
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	date, err := daycal.ParseDateKey(dateParam(r))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid date key"))
		return
	}
	writeJSON(w, http.StatusOK, dayResponse(date))
}

// SaveReflection handles PUT /api/reflections/{date}.
//
//	@Summary		Save the reflection for a date, replacing any earlier one
//	@Tags			reflections
//	@Accept			json
//	@Produce		json
//	@Param			date	path		string					true	"Date key (YYYY-MM-DD)"
//	@Param			body	body		SaveReflectionRequest	true	"Reflection text"
//	@Success		200		{object}	ReflectionDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reflections/{date} [put]
func (h *Handler) SaveReflection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SaveReflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	entry, err := h.journal.Save(r.Context(), dateParam(r), req.Body)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		slog.Error("save reflection failed", slog.String("date", dateParam(r)), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("could not reach relays"))
		return
	}
	writeJSON(w, http.StatusOK, reflectionDetail(*entry))
}

// GetReflection handles GET /api/reflections/{date}.
//
//	@Summary		Get the current reflection for a date
//	@Tags			reflections
//	@Produce		json
//	@Param			date	path		string	true	"Date key (YYYY-MM-DD)"
//	@Success		200		{object}	ReflectionDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reflections/{date} [get]
func (h *Handler) GetReflection(w http.ResponseWriter, r *http.Request) {
	entry, err := h.journal.Get(r.Context(), h.self, dateParam(r))
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, errorBody("invalid date key"))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		default:
			slog.Error("get reflection failed", slog.String("date", dateParam(r)), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, reflectionDetail(*entry))
}

// ListReflections handles GET /api/reflections.
//
//	@Summary		List the acting user's reflections, newest first
//	@Tags			reflections
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{object}	ReflectionListResponse
//	@Security		BearerAuth
//	@Router			/reflections [get]
func (h *Handler) ListReflections(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.journal.List(r.Context(), h.self, limit)
	if err != nil {
		slog.Error("list reflections failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("could not reach relays"))
		return
	}
	items := make([]ReflectionDetail, 0, len(entries))
	for _, e := range entries {
		items = append(items, reflectionDetail(e))
	}
	writeJSON(w, http.StatusOK, ReflectionListResponse{Reflections: items, Total: len(items)})
}

// ShareReflection handles POST /api/reflections/{date}/share.
//
//	@Summary		Publish a community post composed from the reflection
//	@Tags			reflections
//	@Produce		json
//	@Param			date	path		string	true	"Date key (YYYY-MM-DD)"
//	@Success		201		{object}	FeedPost
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reflections/{date}/share [post]
func (h *Handler) ShareReflection(w http.ResponseWriter, r *http.Request) {
	entry, err := h.journal.Get(r.Context(), h.self, dateParam(r))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("no reflection for that date"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid date key"))
		return
	}
	post, err := h.journal.Share(r.Context(), *entry)
	if err != nil {
		slog.Error("share reflection failed", slog.String("date", dateParam(r)), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("could not reach relays"))
		return
	}
	writeJSON(w, http.StatusCreated, h.feedPost(*post))
}

// Feed handles GET /api/feed.
//
//	@Summary		Fetch recent community posts
//	@Tags			feed
//	@Produce		json
//	@Param			limit	query		int	false	"Max posts"
//	@Success		200		{object}	FeedResponse
//	@Security		BearerAuth
//	@Router			/feed [get]
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	posts, err := h.journal.Feed(r.Context(), limit)
	if err != nil {
		slog.Error("feed fetch failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("could not reach relays"))
		return
	}
	items := make([]FeedPost, 0, len(posts))
	for _, p := range posts {
		items = append(items, h.feedPost(p))
	}
	writeJSON(w, http.StatusOK, FeedResponse{Posts: items})
}

// SearchProfiles handles GET /api/search.
//
//	@Summary		Substring profile search through the cache service
//	@Tags			profiles
//	@Produce		json
//	@Param			q		query		string	true	"Search text (min 2 chars)"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) SearchProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	profiles, err := h.searcher.Search(r.Context(), q, limit)
	degraded := false
	if err != nil {
		if !errors.Is(err, apperr.ErrNotConnected) {
			slog.Error("profile search failed", slog.String("query", q), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, errorBody("search failed"))
			return
		}
		if h.local == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody("search service not connected"))
			return
		}
		// Channel down: answer from the local profile cache instead.
		profiles, err = h.local.Search(q, limit)
		if err != nil {
			slog.Error("cached profile search failed", slog.String("query", q), slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, errorBody("search service not connected"))
			return
		}
		degraded = true
	}
	results := make([]ProfileDTO, 0, len(profiles))
	for i := range profiles {
		results = append(results, profileDTO(&profiles[i]))
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results, Degraded: degraded})
}

// GetProfile handles GET /api/profiles/{pubkey}.
//
//	@Summary		Exact profile lookup by identity key
//	@Tags			profiles
//	@Produce		json
//	@Param			pubkey	path		string	true	"Hex public key"
//	@Success		200		{object}	ProfileDTO
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profiles/{pubkey} [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	pubkey := chi.URLParam(r, "pubkey")
	p, err := h.searcher.FetchByIdentity(r.Context(), pubkey)
	if err != nil {
		slog.Error("profile lookup failed", slog.String("pubkey", pubkey), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("lookup failed"))
		return
	}
	if p == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, profileDTO(p))
}

// RenderMentions handles POST /api/mentions/render.
//
//	@Summary		Substitute canonical mentions with display labels
//	@Tags			profiles
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenderRequest	true	"Committed text"
//	@Success		200		{object}	RenderResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mentions/render [post]
func (h *Handler) RenderMentions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	mentions := mention.Mentions(req.Text)
	if mentions == nil {
		mentions = []string{}
	}
	writeJSON(w, http.StatusOK, RenderResponse{
		Rendered: mention.Render(req.Text, h.resolve),
		Mentions: mentions,
	})
}

func reflectionDetail(e journal.Entry) ReflectionDetail {
	return ReflectionDetail{
		Date:        e.DateKey,
		Day:         e.Day,
		Body:        e.Body,
		PublishedAt: e.PublishedAt,
	}
}

func (h *Handler) feedPost(p journal.Post) FeedPost {
	label := profile.ShortKey(p.Author)
	if h.resolve != nil {
		if prof := h.resolve(p.Author); prof != nil {
			label = prof.Label()
		}
	}
	return FeedPost{
		ID:        p.ID,
		Author:    p.Author,
		Label:     label,
		Content:   mention.Render(p.Content, h.resolve),
		CreatedAt: p.CreatedAt,
	}
}
