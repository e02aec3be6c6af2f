package service

import (
	"context"
	"strings"
	"time"

	"bakery/internal/billing"
	"bakery/internal/model"
	"bakery/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type CreateSubscriptionInput struct {
	PlanID  string
	PriceID string
}

type CreateSubscriptionResult struct {
	SubscriptionID       string
	StripeSubscriptionID string
	// ClientSecret confirms the first payment on the client.
	ClientSecret string
}

// PlanDetails is the catalogue view of a subscription's plan.
type PlanDetails struct {
	Name     string
	Price    string
	Features []string
}

type SubscriptionStatus struct {
	Subscription *model.Subscription
	Plan         PlanDetails
}

// SubscriptionService defines business logic methods for subscriptions.
type SubscriptionService interface {
	Create(ctx context.Context, userID string, in CreateSubscriptionInput) (*CreateSubscriptionResult, error)
	// Cancel stops renewal at the end of the current period.
	Cancel(ctx context.Context, userID, subscriptionID string) (*model.Subscription, error)
	// Status returns nil when the user has no active or trialing subscription.
	Status(ctx context.Context, userID string) (*SubscriptionStatus, error)
	ListForUser(ctx context.Context, requesterID, userID string) ([]model.Subscription, error)
}

type subscriptionService struct {
	userRepo repository.UserRepository
	subRepo  repository.SubscriptionRepository
	catalog  CatalogService
	gateway  billing.Gateway
	now      func() time.Time
	logger   zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(userRepo repository.UserRepository, subRepo repository.SubscriptionRepository, catalog CatalogService, gateway billing.Gateway, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		userRepo: userRepo,
		subRepo:  subRepo,
		catalog:  catalog,
		gateway:  gateway,
		now:      time.Now,
		logger:   logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func (s *subscriptionService) resolvePlan(ctx context.Context, in CreateSubscriptionInput) (*model.SubscriptionPlan, error) {
	var plan *model.SubscriptionPlan
	var err error
	if id := strings.TrimSpace(in.PlanID); id != "" {
		plan, err = s.catalog.GetPlan(ctx, id)
	} else {
		plan, err = s.catalog.GetPlanByPriceID(ctx, strings.TrimSpace(in.PriceID))
	}
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.IsActive {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

func (s *subscriptionService) Create(ctx context.Context, userID string, in CreateSubscriptionInput) (*CreateSubscriptionResult, error) {
	plan, err := s.resolvePlan(ctx, in)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user")
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	active, err := s.subRepo.GetActiveSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch active subscription")
		return nil, err
	}
	if active != nil {
		return nil, ErrAlreadySubscribed
	}
	if plan.PlanID == model.FreePlanID || plan.PriceCents == 0 {
		return nil, ErrFreePlanNotPurchasable
	}

	customerID, err := ensureCustomer(ctx, s.gateway, s.userRepo, user, s.logger)
	if err != nil {
		return nil, err
	}

	stripeSub, err := s.gateway.CreateSubscription(ctx, customerID, plan.StripePriceID, map[string]string{
		"user_id": userID,
		"plan_id": plan.PlanID,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("plan_id", plan.PlanID).Msg("Failed to create Stripe subscription")
		return nil, err
	}

	start, end := stripeSub.CurrentPeriodStart, stripeSub.CurrentPeriodEnd
	if start.IsZero() {
		start = s.now().UTC()
	}
	if end.IsZero() {
		end = start
	}
	status := stripeSub.Status
	if status == "" {
		status = model.SubscriptionStatusIncomplete
	}

	sub := &model.Subscription{
		ID:                   uuid.NewString(),
		UserID:               userID,
		PlanID:               plan.PlanID,
		StripePriceID:        plan.StripePriceID,
		StripeSubscriptionID: stripeSub.ID,
		Status:               status,
		IncludedCredits:      plan.IncludedCredits,
		CurrentPeriodStart:   start,
		CurrentPeriodEnd:     end,
		CancelAtPeriodEnd:    stripeSub.CancelAtPeriodEnd,
	}
	if err := s.subRepo.UpsertSubscription(ctx, sub); err != nil {
		s.logger.Error().Err(err).Str("stripe_subscription_id", stripeSub.ID).Msg("Failed to store subscription")
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Str("plan_id", plan.PlanID).Str("stripe_subscription_id", stripeSub.ID).Msg("Subscription created")
	return &CreateSubscriptionResult{
		SubscriptionID:       sub.ID,
		StripeSubscriptionID: stripeSub.ID,
		ClientSecret:         stripeSub.ClientSecret,
	}, nil
}

// findSubscription accepts either the local id or the Stripe subscription id.
func (s *subscriptionService) findSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	if _, err := uuid.Parse(id); err == nil {
		sub, err := s.subRepo.GetSubscriptionByID(ctx, id)
		if err != nil || sub != nil {
			return sub, err
		}
	}
	return s.subRepo.GetSubscriptionByStripeID(ctx, id)
}

func (s *subscriptionService) Cancel(ctx context.Context, userID, subscriptionID string) (*model.Subscription, error) {
	sub, err := s.findSubscription(ctx, strings.TrimSpace(subscriptionID))
	if err != nil {
		s.logger.Error().Err(err).Str("subscription_id", subscriptionID).Msg("Failed to fetch subscription")
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	if sub.UserID != userID {
		return nil, ErrNotSubscriptionOwner
	}

	if _, err := s.gateway.SetCancelAtPeriodEnd(ctx, sub.StripeSubscriptionID, true); err != nil {
		s.logger.Error().Err(err).Str("stripe_subscription_id", sub.StripeSubscriptionID).Msg("Failed to cancel Stripe subscription")
		return nil, err
	}
	if err := s.subRepo.SetCancelAtPeriodEnd(ctx, sub.ID, true); err != nil {
		s.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("Failed to mark subscription canceled")
		return nil, err
	}
	sub.CancelAtPeriodEnd = true

	s.logger.Info().Str("user_id", userID).Str("subscription_id", sub.ID).Msg("Subscription set to cancel at period end")
	return sub, nil
}

func (s *subscriptionService) Status(ctx context.Context, userID string) (*SubscriptionStatus, error) {
	sub, err := s.subRepo.GetActiveSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch active subscription")
		return nil, err
	}
	if sub == nil {
		return nil, nil
	}

	details := PlanDetails{Name: "Unknown", Price: "0", Features: []string{}}
	plan, err := s.catalog.GetPlan(ctx, sub.PlanID)
	if err != nil {
		s.logger.Warn().Err(err).Str("plan_id", sub.PlanID).Msg("Failed to fetch plan details")
	} else if plan != nil {
		details = PlanDetails{Name: plan.Name, Price: plan.PriceLabel(), Features: plan.Features}
		if details.Features == nil {
			details.Features = []string{}
		}
	}
	return &SubscriptionStatus{Subscription: sub, Plan: details}, nil
}

func (s *subscriptionService) ListForUser(ctx context.Context, requesterID, userID string) ([]model.Subscription, error) {
	if requesterID != userID {
		return nil, ErrForbidden
	}
	subs, err := s.subRepo.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list subscriptions")
		return nil, err
	}
	return subs, nil
}
