package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/daybook-labs/daybook/internal/apperr"
	"github.com/daybook-labs/daybook/internal/gift"
	"github.com/daybook-labs/daybook/internal/recipient"
	"github.com/daybook-labs/daybook/internal/sse"
)

// RecipientSelector picks the gift recipient.
type RecipientSelector interface {
	Select(ctx context.Context) (*recipient.Candidate, error)
}

// GiftService runs the payment flow.
type GiftService interface {
	Send(ctx context.Context, req gift.Request, address string) (*gift.Pending, error)
	ConfirmPaid(ctx context.Context, p *gift.Pending) error
	AwaitVerification(ctx context.Context, p *gift.Pending, interval time.Duration) (bool, error)
}

// GiftHandler holds the gift route handlers plus the registry of in-flight
// manual payments. The registry is advisory process state, not durable.
type GiftHandler struct {
	selector RecipientSelector
	flow     GiftService
	broker   *sse.Broker

	mu      sync.Mutex
	pending map[string]*gift.Pending
}

// NewGiftHandler creates a GiftHandler. broker may be nil.
func NewGiftHandler(selector RecipientSelector, flow GiftService, broker *sse.Broker) *GiftHandler {
	return &GiftHandler{
		selector: selector,
		flow:     flow,
		broker:   broker,
		pending:  make(map[string]*gift.Pending),
	}
}

// SelectRecipient handles POST /api/gifts/recipient.
//
//	@Summary		Pick a random qualifying gift recipient
//	@Tags			gifts
//	@Produce		json
//	@Success		200	{object}	RecipientResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gifts/recipient [post]
func (h *GiftHandler) SelectRecipient(w http.ResponseWriter, r *http.Request) {
	c, err := h.selector.Select(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrNoRecipient) {
			writeJSON(w, http.StatusNotFound, retryableBody("no recipient found"))
			return
		}
		slog.Error("recipient selection failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("selection failed"))
		return
	}
	writeJSON(w, http.StatusOK, RecipientResponse{
		Recipient: profileDTO(c.Profile),
		Address:   c.Address,
	})
}

// SendGift handles POST /api/gifts.
//
//	@Summary		Build, invoice, and attempt payment of a gift
//	@Tags			gifts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SendGiftRequest	true	"Gift parameters"
//	@Success		200		{object}	GiftResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gifts [post]
func (h *GiftHandler) SendGift(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SendGiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	p, err := h.flow.Send(r.Context(), gift.Request{
		RecipientPubKey: req.RecipientPubKey,
		AmountSats:      req.AmountSats,
		Comment:         req.Comment,
		EventID:         req.EventID,
	}, req.Address)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	h.mu.Lock()
	h.pending[p.ID] = p
	h.mu.Unlock()
	h.notify(p)

	writeJSON(w, http.StatusOK, giftResponse(p))
}

// GetGift handles GET /api/gifts/{id}.
//
//	@Summary		Get the state of one gift
//	@Tags			gifts
//	@Produce		json
//	@Param			id	path		string	true	"Gift id"
//	@Success		200	{object}	GiftResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gifts/{id} [get]
func (h *GiftHandler) GetGift(w http.ResponseWriter, r *http.Request) {
	p, ok := h.get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, giftResponse(p))
}

// GiftQR handles GET /api/gifts/{id}/qr.
//
//	@Summary		Render the invoice as a QR PNG for manual payment
//	@Tags			gifts
//	@Produce		png
//	@Param			id	path	string	true	"Gift id"
//	@Success		200
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gifts/{id}/qr [get]
func (h *GiftHandler) GiftQR(w http.ResponseWriter, r *http.Request) {
	p, ok := h.get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	png, err := p.Invoice.QRCode(512)
	if err != nil {
		slog.Error("gift QR failed", slog.String("id", p.ID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// VerifyGift handles POST /api/gifts/{id}/verify.
//
//	@Summary		Poll the invoice's verify endpoint until settled or timeout
//	@Tags			gifts
//	@Produce		json
//	@Param			id	path		string	true	"Gift id"
//	@Success		200	{object}	GiftResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gifts/{id}/verify [post]
func (h *GiftHandler) VerifyGift(w http.ResponseWriter, r *http.Request) {
	p, ok := h.get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	settled, err := h.flow.AwaitVerification(ctx, p, 2*time.Second)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if settled {
		h.notify(p)
	}
	writeJSON(w, http.StatusOK, giftResponse(p))
}

// ConfirmGift handles POST /api/gifts/{id}/confirm.
//
//	@Summary		Record an explicit user confirmation of manual payment
//	@Tags			gifts
//	@Produce		json
//	@Param			id	path		string	true	"Gift id"
//	@Success		200	{object}	GiftResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gifts/{id}/confirm [post]
func (h *GiftHandler) ConfirmGift(w http.ResponseWriter, r *http.Request) {
	p, ok := h.get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.flow.ConfirmPaid(r.Context(), p); err != nil {
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		return
	}
	h.notify(p)
	writeJSON(w, http.StatusOK, giftResponse(p))
}

func (h *GiftHandler) get(id string) (*gift.Pending, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pending[id]
	return p, ok
}

func (h *GiftHandler) notify(p *gift.Pending) {
	if h.broker != nil {
		h.broker.PublishGiftStatus(p.ID, string(p.Status))
	}
}

func giftResponse(p *gift.Pending) GiftResponse {
	resp := GiftResponse{
		ID:      p.ID,
		Status:  string(p.Status),
		PaidVia: p.PaidVia,
	}
	if p.Status == gift.StatusAwaitingManual && p.Invoice != nil {
		resp.PaymentRequest = p.Invoice.PaymentRequest
		resp.WalletURI = p.Invoice.WalletURI()
	}
	return resp
}
