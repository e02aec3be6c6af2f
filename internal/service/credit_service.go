package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"bakery/internal/billing"
	"bakery/internal/model"
	"bakery/internal/pricing"
	"bakery/internal/pubsub"
	"bakery/internal/repository"
	"bakery/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultTransactionLimit = 20
	maxTransactionLimit     = 100
)

type Balance struct {
	Credits model.Credits
	Plan    string
}

type UseInput struct {
	Operation  string
	Parameters json.RawMessage
	Title      string
	// OutputURL is an absolute http(s) URL or a storage key owned by the user.
	OutputURL string
}

type UseResult struct {
	TransactionID    string
	CreditCost       model.Credits
	RemainingCredits model.Credits
	MediaID          string
}

type PurchaseResult struct {
	PaymentIntentID string
	ClientSecret    string
	Package         *model.CreditPackage
}

// UsageEvent is published after a successful debit.
type UsageEvent struct {
	TransactionID    string        `json:"transactionId"`
	UserID           string        `json:"userId"`
	Operation        string        `json:"operation"`
	ModelID          string        `json:"modelId"`
	CreditCost       model.Credits `json:"creditCost"`
	RemainingCredits model.Credits `json:"remainingCredits"`
	MediaID          string        `json:"mediaId,omitempty"`
	OccurredAt       time.Time     `json:"occurredAt"`
}

type CreditService interface {
	Balance(ctx context.Context, userID string) (*Balance, error)
	Transactions(ctx context.Context, userID string, limit, offset int) ([]model.CreditTransaction, error)
	Quote(ctx context.Context, operation string, parameters json.RawMessage) (*pricing.Quote, error)
	Use(ctx context.Context, userID string, in UseInput) (*UseResult, error)
	// Purchase starts a card payment for a credit pack. Credits arrive with
	// the payment_intent.succeeded webhook.
	Purchase(ctx context.Context, userID, packID string) (*PurchaseResult, error)
}

type CreditServiceConfig struct {
	UsageTopic string
}

type creditService struct {
	userRepo   repository.UserRepository
	subRepo    repository.SubscriptionRepository
	creditRepo repository.CreditRepository
	catalog    CatalogService
	gateway    billing.Gateway
	store      storage.ObjectStore
	publisher  pubsub.Publisher
	cfg        CreditServiceConfig
	now        func() time.Time
	logger     zerolog.Logger
}

// NewCreditService wires the credit operations. store and publisher may be
// nil when storage or usage events are not configured.
func NewCreditService(
	userRepo repository.UserRepository,
	subRepo repository.SubscriptionRepository,
	creditRepo repository.CreditRepository,
	catalog CatalogService,
	gateway billing.Gateway,
	store storage.ObjectStore,
	publisher pubsub.Publisher,
	cfg CreditServiceConfig,
	logger zerolog.Logger,
) CreditService {
	if publisher == nil {
		publisher = pubsub.NopPublisher()
	}
	return &creditService{
		userRepo:   userRepo,
		subRepo:    subRepo,
		creditRepo: creditRepo,
		catalog:    catalog,
		gateway:    gateway,
		store:      store,
		publisher:  publisher,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger.With().Str("service", "CreditService").Logger(),
	}
}

func (s *creditService) getUser(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user")
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *creditService) Balance(ctx context.Context, userID string) (*Balance, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Balance{Credits: u.Credits, Plan: u.Plan}, nil
}

func (s *creditService) Transactions(ctx context.Context, userID string, limit, offset int) ([]model.CreditTransaction, error) {
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if limit > maxTransactionLimit {
		limit = maxTransactionLimit
	}
	if offset < 0 {
		offset = 0
	}
	txs, err := s.creditRepo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list transactions")
		return nil, err
	}
	return txs, nil
}

func (s *creditService) Quote(ctx context.Context, operation string, parameters json.RawMessage) (*pricing.Quote, error) {
	q, _, err := s.quote(ctx, operation, parameters)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *creditService) quote(ctx context.Context, operation string, parameters json.RawMessage) (*pricing.Quote, pricing.Parameters, error) {
	var p pricing.Parameters
	if len(parameters) == 0 {
		return nil, p, ErrInvalidParameters
	}
	if err := json.Unmarshal(parameters, &p); err != nil {
		return nil, p, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	modelID, mediaType, err := pricing.ResolveModel(operation, p)
	if err != nil {
		return nil, p, err
	}
	setting, err := s.catalog.GetUsageSetting(ctx, modelID)
	if err != nil {
		return nil, p, err
	}
	if setting == nil || setting.Category != mediaType {
		return nil, p, pricing.ErrUnknownModel
	}

	q, err := pricing.Cost(*setting, mediaType, p)
	if err != nil {
		return nil, p, err
	}
	return &q, p, nil
}

func (s *creditService) Use(ctx context.Context, userID string, in UseInput) (*UseResult, error) {
	q, p, err := s.quote(ctx, in.Operation, in.Parameters)
	if err != nil {
		return nil, err
	}

	var media *model.Media
	if strings.TrimSpace(in.OutputURL) != "" {
		media, err = s.buildMedia(ctx, userID, in, q, p)
		if err != nil {
			return nil, err
		}
	}

	txID := uuid.NewString()
	remaining, err := s.creditRepo.Debit(ctx, repository.UsageDebit{
		TransactionID: txID,
		UserID:        userID,
		Amount:        q.Cost,
		Description:   q.Description,
		Metadata:      in.Parameters,
		Media:         media,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrInsufficientCredits):
			return nil, &InsufficientCreditsError{Required: q.Cost, Available: remaining}
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to debit credits")
		return nil, err
	}

	res := &UseResult{TransactionID: txID, CreditCost: q.Cost, RemainingCredits: remaining}
	if media != nil {
		res.MediaID = media.ID
	}
	s.logger.Info().Str("user_id", userID).Str("model_id", q.ModelID).Str("cost", q.Cost.String()).Msg("Credits used")
	s.publishUsage(ctx, userID, in.Operation, q, res)
	return res, nil
}

func (s *creditService) publishUsage(ctx context.Context, userID, operation string, q *pricing.Quote, res *UseResult) {
	if s.cfg.UsageTopic == "" {
		return
	}
	event := UsageEvent{
		TransactionID:    res.TransactionID,
		UserID:           userID,
		Operation:        operation,
		ModelID:          q.ModelID,
		CreditCost:       res.CreditCost,
		RemainingCredits: res.RemainingCredits,
		MediaID:          res.MediaID,
		OccurredAt:       s.now().UTC(),
	}
	attrs := map[string]string{"operation": operation, "model": q.ModelID}
	if _, err := pubsub.PublishJSON(ctx, s.publisher, s.cfg.UsageTopic, event, attrs); err != nil {
		s.logger.Warn().Err(err).Str("transaction_id", res.TransactionID).Msg("Failed to publish usage event")
	}
}

func (s *creditService) buildMedia(ctx context.Context, userID string, in UseInput, q *pricing.Quote, p pricing.Parameters) (*model.Media, error) {
	out := strings.TrimSpace(in.OutputURL)
	m := &model.Media{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        q.MediaType,
		Title:       strings.TrimSpace(in.Title),
		URL:         out,
		FileSize:    p.FileSize,
		Resolution:  p.Resolution,
		Format:      p.Format,
		ModelUsed:   q.ModelID,
		PromptText:  p.Prompt,
		CreditsCost: q.Cost,
		Metadata:    in.Parameters,
	}
	if m.Title == "" {
		m.Title = pricing.DefaultTitle(q.MediaType)
	}
	if p.DurationSeconds > 0 && q.MediaType != model.MediaTypeImage {
		d := p.DurationSeconds
		m.Duration = &d
	}

	if u, err := url.Parse(out); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		if m.Format == "" {
			m.Format = strings.TrimPrefix(path.Ext(u.Path), ".")
		}
		return m, nil
	}

	if s.store == nil || !storage.OwnsKey(userID, out) {
		return nil, ErrInvalidOutputURL
	}
	size, exists, err := s.store.Stat(ctx, out)
	if err != nil {
		s.logger.Error().Err(err).Str("key", out).Msg("Failed to inspect uploaded object")
		return nil, err
	}
	if !exists {
		return nil, ErrInvalidOutputURL
	}
	m.StorageKey = &out
	if m.FileSize == 0 {
		m.FileSize = size
	}
	if m.Format == "" {
		m.Format = strings.TrimPrefix(path.Ext(out), ".")
	}
	return m, nil
}

func (s *creditService) Purchase(ctx context.Context, userID, packID string) (*PurchaseResult, error) {
	pack, err := s.catalog.GetPackage(ctx, packID)
	if err != nil {
		return nil, err
	}
	if pack == nil || !pack.IsActive {
		return nil, ErrInvalidPack
	}

	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subRepo.GetActiveSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch active subscription")
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionRequired
	}

	req := billing.PaymentIntentRequest{
		AmountCents: pack.PriceCents,
		Currency:    "usd",
		Metadata: map[string]string{
			"type":    "credit_purchase",
			"userId":  u.ID,
			"credits": pack.Credits.String(),
			"packId":  pack.PackID,
		},
	}
	if u.HasStripeCustomer() {
		req.CustomerID = *u.StripeCustomerID
	}
	id, secret, err := s.gateway.CreatePaymentIntent(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("pack_id", packID).Msg("Failed to create payment intent")
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("pack_id", packID).Str("payment_intent_id", id).Msg("Credit purchase started")
	return &PurchaseResult{PaymentIntentID: id, ClientSecret: secret, Package: pack}, nil
}
