package handler

import (
	"errors"
	"net/http"

	"bakery/internal/api/v1/dto"
	"bakery/internal/middleware"
	"bakery/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// bcrypt ignores everything past this many bytes.
const maxPasswordBytes = 72

type AuthHandler struct {
	userService service.UserService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewAuthHandler(userService service.UserService, v *validator.Validate, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		validate:    v,
		logger:      logger.With().Str("handler", "AuthHandler").Logger(),
	}
}

// RegisterRoutes mounts v1 auth routes
func (h *AuthHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.With(authMw).Get("/auth/session", h.session)
}

// register godoc
// @Summary Register a new account
// @Description Creates a free-plan user holding the monthly free allowance.
// @Tags auth
// @Accept json
// @Produce json
// @Param user body dto.RegisterRequest true "Account details"
// @Success 201 {object} dto.RegisterResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "email already registered"
// @Router /auth/register [post]
func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if len(req.Password) > maxPasswordBytes {
		writeError(w, http.StatusBadRequest, "password must be at most 72 bytes")
		return
	}

	u, err := h.userService.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyRegistered) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		internalError(w, r, h.logger, err, "Failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, dto.RegisterResponse{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Credits: u.Credits.Float(),
	})
}

// login godoc
// @Summary Sign in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} dto.ErrorResponse "wrong password"
// @Failure 404 {object} dto.ErrorResponse "unknown email"
// @Router /auth/login [post]
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	res, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "No user found with this email")
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid password")
		default:
			internalError(w, r, h.logger, err, "Failed to log in")
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      dto.NewUserResponse(res.User),
	})
}

// session godoc
// @Summary Current session
// @Description Returns the signed-in user and their active subscription, if any.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SessionResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/session [get]
func (h *AuthHandler) session(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	sess, err := h.userService.Session(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		internalError(w, r, h.logger, err, "Failed to load session")
		return
	}

	resp := dto.SessionResponse{User: dto.SessionUser{
		ID:    sess.User.ID,
		Name:  sess.User.Name,
		Email: sess.User.Email,
		Image: sess.User.Image,
	}}
	if sub := sess.Subscription; sub != nil {
		resp.User.Subscription = &dto.SessionSubscription{
			ID:               sub.ID,
			Plan:             sub.PlanID,
			Status:           sub.Status,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
