package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"bakery/internal/model"
	"bakery/internal/repository"
	"bakery/internal/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Session is the signed-in user with their active subscription, if any.
type Session struct {
	User         *model.User
	Subscription *model.Subscription
}

type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Session(ctx context.Context, userID string) (*Session, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type UserServiceConfig struct {
	JWTSecret   string
	JWTTTL      time.Duration
	FreeCredits model.Credits
}

type userService struct {
	userRepo repository.UserRepository
	subRepo  repository.SubscriptionRepository
	cfg      UserServiceConfig
	now      func() time.Time
	logger   zerolog.Logger
}

func NewUserService(userRepo repository.UserRepository, subRepo repository.SubscriptionRepository, cfg UserServiceConfig, logger zerolog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		subRepo:  subRepo,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With().Str("service", "UserService").Logger(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a free-plan account holding the free allowance. The
// allowance is booked against this month so renewal skips the user until
// next month.
func (s *userService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	hash, err := util.HashPassword(in.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		return nil, err
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Credits:      s.cfg.FreeCredits,
		Plan:         model.FreePlanID,
	}

	var opening *model.CreditTransaction
	if s.cfg.FreeCredits > 0 {
		ref := FreeAllowanceReference(u.ID, s.now())
		opening = &model.CreditTransaction{
			ID:          uuid.NewString(),
			UserID:      u.ID,
			Amount:      s.cfg.FreeCredits,
			Type:        model.TransactionTypeSubscriptionRenewal,
			Description: "Free plan credits",
			ReferenceID: &ref,
		}
	}

	if err := s.userRepo.CreateUser(ctx, u, opening); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailAlreadyRegistered
		}
		s.logger.Error().Err(err).Str("email", u.Email).Msg("Failed to create user")
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID).Msg("User registered")
	return u, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch user for login")
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	ok, err := util.CheckPassword(u.PasswordHash, password)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", u.ID).Msg("Stored password hash is unreadable")
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := util.IssueJWT(u.ID, u.Email, s.cfg.JWTSecret, s.cfg.JWTTTL, s.now())
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", u.ID).Msg("Failed to issue token")
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

func (s *userService) Session(ctx context.Context, userID string) (*Session, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subRepo.GetActiveSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch active subscription for session")
		return nil, err
	}
	return &Session{User: u, Subscription: sub}, nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id).Msg("Failed to fetch user")
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
