package service

import (
	"context"
	"fmt"
	"time"

	"bakery/internal/model"
	"bakery/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	freeAllowancePrefix = "free:"
	renewalBatchSize    = 500
)

// FreeAllowanceReference is the ledger reference of a user's free allowance
// for the calendar month containing t.
func FreeAllowanceReference(userID string, t time.Time) string {
	return freeAllowancePrefix + userID + ":" + t.UTC().Format("2006-01")
}

// RenewalResult summarizes one renewal pass.
type RenewalResult struct {
	Candidates int
	ToppedUp   int
	Failed     int
}

// RenewalService tops free users up to the monthly allowance.
type RenewalService struct {
	creditRepo repository.CreditRepository
	allowance  model.Credits
	logger     zerolog.Logger
}

func NewRenewalService(creditRepo repository.CreditRepository, allowance model.Credits, logger zerolog.Logger) *RenewalService {
	return &RenewalService{
		creditRepo: creditRepo,
		allowance:  allowance,
		logger:     logger.With().Str("service", "RenewalService").Logger(),
	}
}

// RunOnce renews every eligible free user for the month containing now.
// A failure for one user is logged and does not stop the pass.
func (s *RenewalService) RunOnce(ctx context.Context, now time.Time) (RenewalResult, error) {
	var res RenewalResult
	if s.allowance <= 0 {
		return res, nil
	}
	suffix := ":" + now.UTC().Format("2006-01")

	after := ""
	for {
		ids, err := s.creditRepo.ListTopUpCandidates(ctx, model.FreePlanID, s.allowance, freeAllowancePrefix, suffix, after, renewalBatchSize)
		if err != nil {
			return res, fmt.Errorf("list renewal candidates: %w", err)
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.Candidates++

			granted, err := s.creditRepo.TopUp(ctx, repository.CreditGrant{
				TransactionID: uuid.NewString(),
				UserID:        id,
				Type:          model.TransactionTypeSubscriptionRenewal,
				Description:   "Free plan credits",
				ReferenceID:   FreeAllowanceReference(id, now),
			}, model.FreePlanID, s.allowance)
			if err != nil {
				res.Failed++
				s.logger.Error().Err(err).Str("user_id", id).Msg("Failed to renew free allowance")
				continue
			}
			if granted > 0 {
				res.ToppedUp++
			}
		}

		if len(ids) < renewalBatchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	s.logger.Info().
		Int("candidates", res.Candidates).
		Int("topped_up", res.ToppedUp).
		Int("failed", res.Failed).
		Msg("Free allowance renewal finished")
	return res, nil
}

// Run renews immediately and then on every tick until ctx is canceled.
func (s *RenewalService) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx, time.Now()); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("Renewal pass failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
