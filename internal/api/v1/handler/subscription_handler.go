package handler

import (
	"errors"
	"net/http"
	"strings"

	"bakery/internal/api/v1/dto"
	"bakery/internal/middleware"
	"bakery/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// SubscriptionHandler handles subscription-related endpoints.
type SubscriptionHandler struct {
	stripeSvc *service.StripeService
	subSvc    service.SubscriptionService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(stripeSvc *service.StripeService, subSvc service.SubscriptionService, v *validator.Validate, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		stripeSvc: stripeSvc,
		subSvc:    subSvc,
		validate:  v,
		logger:    logger.With().Str("handler", "SubscriptionHandler").Logger(),
	}
}

// RegisterRoutes registers the subscription endpoints.
func (h *SubscriptionHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/subscriptions/create", h.Create)
		r.Post("/subscriptions/cancel", h.Cancel)
		r.Get("/subscriptions/status", h.Status)
		r.Post("/subscriptions/checkout", h.Checkout)
		r.Get("/subscriptions/portal", h.Portal)
	})
}

// Create godoc
// @Summary Subscribe to a paid plan
// @Description Creates an incomplete Stripe subscription and returns the secret that confirms its first payment.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param subscription body dto.CreateSubscriptionRequest true "Plan id or Stripe price id"
// @Success 200 {object} dto.CreateSubscriptionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /subscriptions/create [post]
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req dto.CreateSubscriptionRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if strings.TrimSpace(req.PlanID) == "" && strings.TrimSpace(req.PriceID) == "" {
		writeError(w, http.StatusBadRequest, "planId or priceId is required")
		return
	}

	res, err := h.subSvc.Create(r.Context(), userID, service.CreateSubscriptionInput{PlanID: req.PlanID, PriceID: req.PriceID})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			writeError(w, http.StatusNotFound, "Subscription plan not found")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, service.ErrAlreadySubscribed):
			writeError(w, http.StatusBadRequest, "User already has an active subscription")
		case errors.Is(err, service.ErrFreePlanNotPurchasable):
			writeError(w, http.StatusBadRequest, "The free plan does not need a subscription")
		default:
			internalError(w, r, h.logger, err, "Failed to create subscription")
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.CreateSubscriptionResponse{
		SubscriptionID:       res.SubscriptionID,
		StripeSubscriptionID: res.StripeSubscriptionID,
		ClientSecret:         res.ClientSecret,
	})
}

// Cancel godoc
// @Summary Cancel a subscription at period end
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param subscription body dto.CancelSubscriptionRequest true "Subscription id"
// @Success 200 {object} dto.CancelSubscriptionResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /subscriptions/cancel [post]
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req dto.CancelSubscriptionRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if _, err := h.subSvc.Cancel(r.Context(), userID, req.SubscriptionID); err != nil {
		switch {
		case errors.Is(err, service.ErrSubscriptionNotFound):
			writeError(w, http.StatusNotFound, "Subscription not found")
		case errors.Is(err, service.ErrNotSubscriptionOwner):
			writeError(w, http.StatusForbidden, "Unauthorized to cancel this subscription")
		default:
			internalError(w, r, h.logger, err, "Failed to cancel subscription")
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.CancelSubscriptionResponse{
		Success: true,
		Message: "Subscription will be canceled at the end of the billing period",
	})
}

// Status godoc
// @Summary Active subscription status
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SubscriptionStatusResponse
// @Router /subscriptions/status [get]
func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	st, err := h.subSvc.Status(r.Context(), userID)
	if err != nil {
		internalError(w, r, h.logger, err, "Failed to fetch subscription status")
		return
	}
	if st == nil {
		writeJSON(w, http.StatusOK, dto.SubscriptionStatusResponse{HasActiveSubscription: false})
		return
	}
	sub := st.Subscription
	writeJSON(w, http.StatusOK, dto.SubscriptionStatusResponse{
		HasActiveSubscription: true,
		Subscription: &dto.SubscriptionStatusDTO{
			ID:                sub.ID,
			PlanID:            sub.PlanID,
			Status:            sub.Status,
			CurrentPeriodEnd:  sub.CurrentPeriodEnd,
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			PlanDetails: dto.PlanDetailsDTO{
				Name:     st.Plan.Name,
				Price:    st.Plan.Price,
				Features: st.Plan.Features,
			},
		},
	})
}

// Checkout godoc
// @Summary Initiate a Stripe Checkout session for plan upgrade
// @Description Creates a Stripe Checkout session and returns its URL.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param subscription body dto.SubscriptionCheckoutRequest true "Subscription checkout request"
// @Success 200 {object} dto.URLResponse "URL of the Stripe Checkout session"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /subscriptions/checkout [post]
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req dto.SubscriptionCheckoutRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	url, err := h.stripeSvc.CreateCheckoutSession(r.Context(), userID, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			writeError(w, http.StatusNotFound, "Subscription plan not found")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, service.ErrFreePlanNotPurchasable):
			writeError(w, http.StatusBadRequest, "The free plan does not need a subscription")
		default:
			internalError(w, r, h.logger, err, "Failed to create checkout session")
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.URLResponse{URL: url})
}

// Portal godoc
// @Summary Create a Stripe Customer Portal session
// @Description Generates a Stripe Customer Portal session URL for the authenticated user.
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.URLResponse "URL of the Customer Portal session"
// @Failure 400 {object} dto.ErrorResponse "no billing account"
// @Router /subscriptions/portal [get]
func (h *SubscriptionHandler) Portal(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	url, err := h.stripeSvc.CreatePortalSession(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoStripeCustomer):
			writeError(w, http.StatusBadRequest, "No billing account for this user")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		default:
			internalError(w, r, h.logger, err, "Failed to create portal session")
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.URLResponse{URL: url})
}
