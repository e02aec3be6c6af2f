package handler

import (
	"errors"
	"net/http"

	"bakery/internal/api/v1/dto"
	"bakery/internal/middleware"
	"bakery/internal/pricing"
	"bakery/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type CreditHandler struct {
	credits  service.CreditService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewCreditHandler(credits service.CreditService, v *validator.Validate, logger zerolog.Logger) *CreditHandler {
	return &CreditHandler{
		credits:  credits,
		validate: v,
		logger:   logger.With().Str("handler", "CreditHandler").Logger(),
	}
}

func (h *CreditHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMw)
		r.Get("/credits/balance", h.balance)
		r.Get("/credits/transactions", h.transactions)
		r.Post("/credits/quote", h.quote)
		r.Post("/credits/use", h.use)
		r.Post("/credits/purchase", h.purchase)
	})
}

// writeUsageError maps pricing and ledger errors to client responses.
func (h *CreditHandler) writeUsageError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *service.InsufficientCreditsError
	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusForbidden, dto.InsufficientCreditsResponse{
			Error:            "Insufficient credits",
			RequiredCredits:  insufficient.Required.Float(),
			AvailableCredits: insufficient.Available.Float(),
		})
	case errors.Is(err, pricing.ErrInvalidOperation):
		writeError(w, http.StatusBadRequest, "Invalid operation")
	case errors.Is(err, pricing.ErrMissingModel):
		writeError(w, http.StatusBadRequest, "Model is required")
	case errors.Is(err, pricing.ErrUnknownModel):
		writeError(w, http.StatusBadRequest, "Invalid model or operation")
	case errors.Is(err, pricing.ErrMissingQuantity),
		errors.Is(err, service.ErrInvalidParameters),
		errors.Is(err, service.ErrInvalidOutputURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	default:
		internalError(w, r, h.logger, err, "Failed to process credit usage")
	}
}

// balance godoc
// @Summary Credit balance
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.BalanceResponse
// @Router /credits/balance [get]
func (h *CreditHandler) balance(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	b, err := h.credits.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		internalError(w, r, h.logger, err, "Failed to fetch balance")
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Credits: b.Credits.Float(), Plan: b.Plan})
}

// transactions godoc
// @Summary Credit ledger, newest first
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.TransactionsResponse
// @Router /credits/transactions [get]
func (h *CreditHandler) transactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	limit, offset := pagination(r)

	txs, err := h.credits.Transactions(r.Context(), userID, limit, offset)
	if err != nil {
		internalError(w, r, h.logger, err, "Failed to list transactions")
		return
	}
	out := make([]dto.TransactionDTO, 0, len(txs))
	for _, t := range txs {
		out = append(out, dto.NewTransactionDTO(t))
	}
	writeJSON(w, http.StatusOK, dto.TransactionsResponse{Transactions: out})
}

// quote godoc
// @Summary Price a generation without debiting
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UsageRequest true "Operation and parameters"
// @Success 200 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /credits/quote [post]
func (h *CreditHandler) quote(w http.ResponseWriter, r *http.Request) {
	var req dto.UsageRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	q, err := h.credits.Quote(r.Context(), req.Operation, req.Parameters)
	if err != nil {
		h.writeUsageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.QuoteResponse{
		Operation:   req.Operation,
		ModelID:     q.ModelID,
		CreditCost:  q.Cost.Float(),
		Description: q.Description,
	})
}

// use godoc
// @Summary Debit credits for a generation
// @Description Debits the cost and records the media output in one transaction.
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UsageRequest true "Operation, parameters and output"
// @Success 200 {object} dto.UseResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.InsufficientCreditsResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /credits/use [post]
func (h *CreditHandler) use(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req dto.UsageRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	res, err := h.credits.Use(r.Context(), userID, service.UseInput{
		Operation:  req.Operation,
		Parameters: req.Parameters,
		Title:      req.Title,
		OutputURL:  req.OutputURL,
	})
	if err != nil {
		h.writeUsageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.UseResponse{
		Success:          true,
		CreditCost:       res.CreditCost.Float(),
		RemainingCredits: res.RemainingCredits.Float(),
		MediaID:          res.MediaID,
	})
}

// purchase godoc
// @Summary Start a credit pack purchase
// @Description Creates a PaymentIntent. Credits are granted when the payment succeeds.
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.PurchaseRequest true "Pack"
// @Success 200 {object} dto.PurchaseResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse "no active subscription"
// @Router /credits/purchase [post]
func (h *CreditHandler) purchase(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req dto.PurchaseRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	res, err := h.credits.Purchase(r.Context(), userID, req.PackID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPack):
			writeError(w, http.StatusBadRequest, "Invalid credit pack")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, service.ErrSubscriptionRequired):
			writeError(w, http.StatusForbidden, "You need an active subscription to purchase credits")
		default:
			internalError(w, r, h.logger, err, "Failed to start credit purchase")
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.PurchaseResponse{
		ClientSecret: res.ClientSecret,
		PackDetails: dto.PackDetails{
			Credits: res.Package.Credits.Float(),
			Price:   float64(res.Package.PriceCents) / 100,
		},
	})
}
