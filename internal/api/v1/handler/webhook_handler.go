package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"bakery/internal/api/v1/dto"
	"bakery/internal/billing"
	"bakery/internal/cache"
	"bakery/internal/errtrack"
	"bakery/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

const maxWebhookBody = 65536

// EventProcessor applies a verified Stripe event.
type EventProcessor interface {
	HandleEvent(ctx context.Context, event stripe.Event) error
}

type WebhookHandler struct {
	processor     EventProcessor
	deduper       cache.EventDeduper
	webhookSecret string
	logger        zerolog.Logger
}

func NewWebhookHandler(processor EventProcessor, deduper cache.EventDeduper, webhookSecret string, logger zerolog.Logger) *WebhookHandler {
	if deduper == nil {
		deduper = cache.NopDeduper()
	}
	return &WebhookHandler{
		processor:     processor,
		deduper:       deduper,
		webhookSecret: webhookSecret,
		logger:        logger.With().Str("handler", "WebhookHandler").Logger(),
	}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Stripe)
}

// Stripe godoc
// @Summary Stripe webhook receiver
// @Description Verifies the Stripe-Signature header and applies subscription, invoice and payment events.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200 {object} dto.WebhookResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse "customer not linked to a user"
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to read webhook body")
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	event, err := billing.VerifyEvent(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		h.logger.Warn().Err(err).Msg("webhook signature verification failed")
		writeError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	log := h.logger.With().Str("eventId", event.ID).Str("eventType", string(event.Type)).Logger()

	ctx := r.Context()
	claimed, err := h.deduper.Claim(ctx, event.ID)
	if err != nil {
		// Dedupe store is down; process anyway.
		log.Warn().Err(err).Msg("event dedupe unavailable")
		claimed = true
	}
	if !claimed {
		log.Info().Msg("duplicate webhook event skipped")
		writeJSON(w, http.StatusOK, dto.WebhookResponse{Received: true, Status: "duplicate"})
		return
	}

	if err := h.processor.HandleEvent(ctx, event); err != nil {
		if rerr := h.deduper.Release(context.WithoutCancel(ctx), event.ID); rerr != nil {
			log.Warn().Err(rerr).Msg("failed to release event claim")
		}
		switch {
		case errors.Is(err, service.ErrUnknownCustomer):
			log.Warn().Err(err).Msg("webhook references unknown customer")
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, service.ErrMalformedEvent):
			log.Warn().Err(err).Msg("malformed webhook event")
			writeError(w, http.StatusBadRequest, "Malformed event")
		default:
			log.Error().Err(err).Msg("failed to process webhook event")
			errtrack.CaptureWithExtra(err, "stripe_event", event.ID)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	log.Info().Msg("webhook event processed")
	writeJSON(w, http.StatusOK, dto.WebhookResponse{Received: true, Status: "processed"})
}
