package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bakery/internal/billing"
	"bakery/internal/model"
	"bakery/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

const unknownPlanID = "unknown"

// StripeService manages Stripe integration: customers, hosted checkout and
// portal sessions, and reconciliation of webhook events.
type StripeService struct {
	gateway    billing.Gateway
	userRepo   repository.UserRepository
	subRepo    repository.SubscriptionRepository
	creditRepo repository.CreditRepository
	catalog    CatalogService
	returnURL  string
	now        func() time.Time
	logger     zerolog.Logger
}

func NewStripeService(gateway billing.Gateway, userRepo repository.UserRepository, subRepo repository.SubscriptionRepository, creditRepo repository.CreditRepository, catalog CatalogService, returnURL string, logger zerolog.Logger) *StripeService {
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{
		gateway:    gateway,
		userRepo:   userRepo,
		subRepo:    subRepo,
		creditRepo: creditRepo,
		catalog:    catalog,
		returnURL:  returnURL,
		now:        time.Now,
		logger:     lg,
	}
}

// GetOrCreateCustomer ensures a Stripe Customer exists for a user and stores its id.
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	return ensureCustomer(ctx, s.gateway, s.userRepo, user, s.logger)
}

func ensureCustomer(ctx context.Context, gateway billing.Gateway, userRepo repository.UserRepository, user *model.User, logger zerolog.Logger) (string, error) {
	if user.HasStripeCustomer() {
		return *user.StripeCustomerID, nil
	}

	customerID, err := gateway.CreateCustomer(ctx, user.Email, user.Name, user.ID)
	if err != nil {
		logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to create Stripe customer")
		return "", err
	}
	if err := userRepo.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
		logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to store stripe customer id")
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	user.StripeCustomerID = &customerID
	return customerID, nil
}

// CreateCheckoutSession creates a Stripe Checkout session for a paid plan.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, planID string) (string, error) {
	plan, err := s.catalog.GetPlan(ctx, planID)
	if err != nil {
		return "", err
	}
	if plan == nil || !plan.IsActive || plan.StripePriceID == "" {
		return "", ErrPlanNotFound
	}
	if plan.PlanID == model.FreePlanID || plan.PriceCents == 0 {
		return "", ErrFreePlanNotPurchasable
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for checkout session")
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	customerID, err := s.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	url, err := s.gateway.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		CustomerID: customerID,
		PriceID:    plan.StripePriceID,
		SuccessURL: s.returnURL + "?status=success",
		CancelURL:  s.returnURL + "?status=cancel",
		Metadata:   map[string]string{"user_id": userID, "plan_id": plan.PlanID},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("plan_id", planID).Msg("Failed to create Stripe checkout session")
		return "", err
	}
	return url, nil
}

// CreatePortalSession creates a Stripe Customer Portal session.
func (s *StripeService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for portal session")
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	if !user.HasStripeCustomer() {
		return "", ErrNoStripeCustomer
	}
	url, err := s.gateway.CreatePortalSession(ctx, *user.StripeCustomerID, s.returnURL)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe billing portal session")
		return "", err
	}
	return url, nil
}

// HandleEvent applies one verified Stripe event to local state. Unhandled
// event types are acknowledged.
func (s *StripeService) HandleEvent(ctx context.Context, event stripe.Event) error {
	log := s.logger.With().Str("event_id", event.ID).Str("event_type", string(event.Type)).Logger()
	log.Info().Msg("Stripe webhook received")

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var ss stripe.Subscription
		if err := decodeEventObject(event, &ss); err != nil {
			return err
		}
		_, err := s.syncSubscription(ctx, billing.FromStripeSubscription(&ss), "")
		return err

	case "customer.subscription.deleted":
		var ss stripe.Subscription
		if err := decodeEventObject(event, &ss); err != nil {
			return err
		}
		return s.handleSubscriptionDeleted(ctx, billing.FromStripeSubscription(&ss))

	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := decodeEventObject(event, &invoice); err != nil {
			return err
		}
		return s.handleInvoicePaid(ctx, &invoice)

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := decodeEventObject(event, &invoice); err != nil {
			return err
		}
		subID := invoiceSubscriptionID(&invoice)
		if subID == "" {
			log.Info().Str("invoice_id", invoice.ID).Msg("Invoice has no subscription, skipping subscription update")
			return nil
		}
		found, err := s.subRepo.UpdateStatus(ctx, subID, model.SubscriptionStatusPastDue, nil)
		if err != nil {
			return err
		}
		if !found {
			log.Warn().Str("subscription_id", subID).Msg("Payment failed for unknown subscription")
		}
		return nil

	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := decodeEventObject(event, &pi); err != nil {
			return err
		}
		return s.handleCreditPurchase(ctx, &pi)

	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := decodeEventObject(event, &cs); err != nil {
			return err
		}
		if cs.Mode != stripe.CheckoutSessionModeSubscription || cs.Subscription == nil || cs.Subscription.ID == "" {
			log.Info().Str("checkout_session_id", cs.ID).Msg("Checkout session has no subscription, skipping")
			return nil
		}
		info, err := s.gateway.GetSubscription(ctx, cs.Subscription.ID)
		if err != nil {
			log.Error().Err(err).Str("subscription_id", cs.Subscription.ID).Msg("Failed to fetch subscription details")
			return err
		}
		_, err = s.syncSubscription(ctx, info, cs.Metadata["user_id"])
		return err

	default:
		log.Warn().Msg("Unhandled Stripe webhook event")
		return nil
	}
}

func decodeEventObject(event stripe.Event, dst any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("%w: event %s has no data", ErrMalformedEvent, event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// resolveUser finds the user behind a Stripe object: customer id first,
// then the user_id metadata, then the caller's fallback id.
func (s *StripeService) resolveUser(ctx context.Context, customerID string, metadata map[string]string, fallbackUserID string) (*model.User, error) {
	if customerID != "" {
		u, err := s.userRepo.GetUserByStripeCustomerID(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("failed to lookup user by Stripe customer ID: %w", err)
		}
		if u != nil {
			return u, nil
		}
	}
	for _, id := range []string{metadata["user_id"], fallbackUserID} {
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		u, err := s.userRepo.GetUserByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to lookup user %s: %w", id, err)
		}
		if u != nil {
			return u, nil
		}
	}
	return nil, nil
}

// syncSubscription upserts the local copy of a Stripe subscription and moves
// the user's plan along with it.
func (s *StripeService) syncSubscription(ctx context.Context, info *billing.Subscription, fallbackUserID string) (*model.Subscription, error) {
	user, err := s.resolveUser(ctx, info.CustomerID, info.Metadata, fallbackUserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.logger.Warn().Str("subscription_id", info.ID).Str("stripe_customer_id", info.CustomerID).Msg("No user for subscription")
		return nil, ErrUnknownCustomer
	}

	planID := unknownPlanID
	var included model.Credits
	if info.PriceID != "" {
		plan, err := s.catalog.GetPlanByPriceID(ctx, info.PriceID)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			planID = plan.PlanID
			included = plan.IncludedCredits
		}
	}
	if planID == unknownPlanID && info.Metadata["plan_id"] != "" {
		planID = info.Metadata["plan_id"]
		if plan, err := s.catalog.GetPlan(ctx, planID); err == nil && plan != nil {
			included = plan.IncludedCredits
		}
	}

	now := s.now().UTC()
	start, end := info.CurrentPeriodStart, info.CurrentPeriodEnd
	if start.IsZero() {
		start = now
	}
	if end.IsZero() {
		end = start
	}

	sub := &model.Subscription{
		ID:                   uuid.NewString(),
		UserID:               user.ID,
		PlanID:               planID,
		StripePriceID:        info.PriceID,
		StripeSubscriptionID: info.ID,
		Status:               info.Status,
		IncludedCredits:      included,
		CurrentPeriodStart:   start,
		CurrentPeriodEnd:     end,
		CancelAtPeriodEnd:    info.CancelAtPeriodEnd,
	}
	if info.Status == model.SubscriptionStatusCanceled {
		sub.CanceledAt = &now
	}
	if err := s.subRepo.UpsertSubscription(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.syncUserPlan(ctx, user, sub); err != nil {
		return nil, err
	}
	s.logger.Info().Str("subscription_id", info.ID).Str("plan_id", planID).Str("status", info.Status).Str("user_id", user.ID).Msg("Subscription synced")
	return sub, nil
}

func (s *StripeService) syncUserPlan(ctx context.Context, user *model.User, sub *model.Subscription) error {
	if model.IsActiveStatus(sub.Status) {
		if user.Plan == sub.PlanID || sub.PlanID == unknownPlanID {
			return nil
		}
		return s.userRepo.UpdatePlan(ctx, user.ID, sub.PlanID)
	}
	if user.Plan == model.FreePlanID {
		return nil
	}
	active, err := s.subRepo.GetActiveSubscription(ctx, user.ID)
	if err != nil {
		return err
	}
	if active != nil {
		return nil
	}
	return s.userRepo.UpdatePlan(ctx, user.ID, model.FreePlanID)
}

func (s *StripeService) handleSubscriptionDeleted(ctx context.Context, info *billing.Subscription) error {
	user, err := s.resolveUser(ctx, info.CustomerID, info.Metadata, "")
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.Warn().Str("subscription_id", info.ID).Str("stripe_customer_id", info.CustomerID).Msg("No user for deleted subscription")
		return ErrUnknownCustomer
	}

	status := info.Status
	if status == "" {
		status = model.SubscriptionStatusCanceled
	}
	now := s.now().UTC()
	found, err := s.subRepo.UpdateStatus(ctx, info.ID, status, &now)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Warn().Str("subscription_id", info.ID).Msg("Deleted subscription was never stored")
	}

	active, err := s.subRepo.GetActiveSubscription(ctx, user.ID)
	if err != nil {
		return err
	}
	if active == nil && user.Plan != model.FreePlanID {
		if err := s.userRepo.UpdatePlan(ctx, user.ID, model.FreePlanID); err != nil {
			return err
		}
	}
	s.logger.Info().Str("subscription_id", info.ID).Str("user_id", user.ID).Msg("Subscription canceled")
	return nil
}

func invoiceSubscriptionID(invoice *stripe.Invoice) string {
	if invoice.Lines == nil {
		return ""
	}
	for _, line := range invoice.Lines.Data {
		if line.Subscription != nil && line.Subscription.ID != "" {
			return line.Subscription.ID
		}
	}
	return ""
}

// handleInvoicePaid marks the subscription active and grants the plan's
// included credits once per invoice.
func (s *StripeService) handleInvoicePaid(ctx context.Context, invoice *stripe.Invoice) error {
	subID := invoiceSubscriptionID(invoice)
	if subID == "" {
		s.logger.Info().Str("invoice_id", invoice.ID).Msg("Invoice has no subscription, skipping subscription update")
		return nil
	}

	local, err := s.subRepo.GetSubscriptionByStripeID(ctx, subID)
	if err != nil {
		return err
	}
	if local == nil {
		info, err := s.gateway.GetSubscription(ctx, subID)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", subID).Msg("Failed to fetch subscription details")
			return err
		}
		info.Status = model.SubscriptionStatusActive
		if local, err = s.syncSubscription(ctx, info, ""); err != nil {
			return err
		}
	} else {
		if _, err := s.subRepo.UpdateStatus(ctx, subID, model.SubscriptionStatusActive, nil); err != nil {
			return err
		}
		local.Status = model.SubscriptionStatusActive
		user, err := s.userRepo.GetUserByID(ctx, local.UserID)
		if err != nil {
			return err
		}
		if user != nil {
			if err := s.syncUserPlan(ctx, user, local); err != nil {
				return err
			}
		}
	}

	amount := local.IncludedCredits
	planName := local.PlanID
	if plan, err := s.catalog.GetPlan(ctx, local.PlanID); err == nil && plan != nil {
		amount = plan.IncludedCredits
		planName = plan.Name
	}
	if amount <= 0 {
		return nil
	}

	applied, err := s.creditRepo.Grant(ctx, repository.CreditGrant{
		TransactionID: uuid.NewString(),
		UserID:        local.UserID,
		Amount:        amount,
		Type:          model.TransactionTypeSubscriptionRenewal,
		Description:   fmt.Sprintf("%s plan credits", planName),
		Metadata:      mustJSON(map[string]string{"subscriptionId": subID, "planId": local.PlanID}),
		ReferenceID:   invoice.ID,
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("invoice_id", invoice.ID).Str("user_id", local.UserID).Bool("applied", applied).Str("credits", amount.String()).Msg("Subscription credits granted")
	return nil
}

func (s *StripeService) handleCreditPurchase(ctx context.Context, pi *stripe.PaymentIntent) error {
	if pi.Metadata["type"] != "credit_purchase" {
		s.logger.Debug().Str("payment_intent_id", pi.ID).Msg("Payment intent is not a credit purchase, skipping")
		return nil
	}

	userID := pi.Metadata["userId"]
	credits, err := strconv.ParseFloat(pi.Metadata["credits"], 64)
	if _, uerr := uuid.Parse(userID); err != nil || uerr != nil || credits <= 0 {
		return fmt.Errorf("%w: payment intent %s has invalid purchase metadata", ErrMalformedEvent, pi.ID)
	}
	amount := model.CreditsFromFloat(credits)

	applied, err := s.creditRepo.Grant(ctx, repository.CreditGrant{
		TransactionID: uuid.NewString(),
		UserID:        userID,
		Amount:        amount,
		Type:          model.TransactionTypePurchase,
		Description:   fmt.Sprintf("Purchased %s credits", amount),
		Metadata:      mustJSON(map[string]string{"packId": pi.Metadata["packId"], "paymentIntentId": pi.ID}),
		ReferenceID:   pi.ID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUnknownCustomer
		}
		return err
	}
	s.logger.Info().Str("payment_intent_id", pi.ID).Str("user_id", userID).Bool("applied", applied).Str("credits", amount.String()).Msg("Credit purchase granted")
	return nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
