package handler

import (
	"errors"
	"net/http"

	"bakery/internal/api/v1/dto"
	"bakery/internal/middleware"
	"bakery/internal/model"
	"bakery/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type UserHandler struct {
	userService service.UserService
	subService  service.SubscriptionService
	logger      zerolog.Logger
}

func NewUserHandler(userService service.UserService, subService service.SubscriptionService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		subService:  subService,
		logger:      logger.With().Str("handler", "UserHandler").Logger(),
	}
}

// RegisterRoutes mounts v1 user routes
func (h *UserHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.With(authMw).Get("/users/me", h.getMe)
	r.With(authMw).Get("/users/{userId}/subscriptions", h.listSubscriptions)
}

// getMe godoc
// @Summary Current user profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.UserResponseDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /users/me [get]
func (h *UserHandler) getMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		internalError(w, r, h.logger, err, "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserResponse(user))
}

// listSubscriptions godoc
// @Summary Subscriptions of a user
// @Description Lists every subscription of the user. Callers may only list their own.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {array} model.Subscription
// @Failure 403 {object} dto.ErrorResponse
// @Router /users/{userId}/subscriptions [get]
func (h *UserHandler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	subs, err := h.subService.ListForUser(r.Context(), userID, chi.URLParam(r, "userId"))
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		internalError(w, r, h.logger, err, "Failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}
