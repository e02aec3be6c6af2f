package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bakery/internal/model"
)

// SubscriptionRepository defines methods for accessing subscription data.
type SubscriptionRepository interface {
	GetSubscriptionByID(ctx context.Context, id string) (*model.Subscription, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error)
	// GetActiveSubscription returns the newest active or trialing subscription, or nil.
	GetActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error)
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]model.Subscription, error)
	// UpsertSubscription inserts or updates the row keyed by the Stripe subscription id.
	UpsertSubscription(ctx context.Context, s *model.Subscription) error
	// UpdateStatus reports false when no subscription has that Stripe id.
	UpdateStatus(ctx context.Context, stripeSubscriptionID, status string, canceledAt *time.Time) (bool, error)
	SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) error
}

type subscriptionRepo struct {
	db *sql.DB
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

const subscriptionColumns = `id, user_id, plan_id, stripe_price_id, stripe_subscription_id, status, included_credits,
	current_period_start, current_period_end, cancel_at_period_end, canceled_at, created_at, updated_at`

func scanSubscription(s scanner) (*model.Subscription, error) {
	var sub model.Subscription
	err := s.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &sub.StripePriceID, &sub.StripeSubscriptionID, &sub.Status,
		&sub.IncludedCredits, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
		&sub.CanceledAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepo) getOne(ctx context.Context, query string, arg any) (*model.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscription %v: %w", arg, err)
	}
	return sub, nil
}

func (r *subscriptionRepo) GetSubscriptionByID(ctx context.Context, id string) (*model.Subscription, error) {
	return r.getOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
}

func (r *subscriptionRepo) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error) {
	return r.getOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = $1`, stripeSubscriptionID)
}

func (r *subscriptionRepo) GetActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1
          AND status IN ('active', 'trialing')
        ORDER BY created_at DESC
        LIMIT 1`
	return r.getOne(ctx, q, userID)
}

func (r *subscriptionRepo) ListSubscriptionsByUser(ctx context.Context, userID string) ([]model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions for user %s: %w", userID, err)
	}
	defer rows.Close()

	subs := []model.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription for user %s: %w", userID, err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscriptions for user %s: %w", userID, err)
	}
	return subs, nil
}

func (r *subscriptionRepo) UpsertSubscription(ctx context.Context, s *model.Subscription) error {
	const q = `
		INSERT INTO subscriptions (id, user_id, plan_id, stripe_price_id, stripe_subscription_id, status, included_credits,
		                           current_period_start, current_period_end, cancel_at_period_end, canceled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (stripe_subscription_id) DO UPDATE
		SET plan_id = EXCLUDED.plan_id,
			stripe_price_id = EXCLUDED.stripe_price_id,
			status = EXCLUDED.status,
			included_credits = EXCLUDED.included_credits,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			canceled_at = COALESCE(EXCLUDED.canceled_at, subscriptions.canceled_at),
			updated_at = NOW()
		RETURNING id, user_id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, q, s.ID, s.UserID, s.PlanID, s.StripePriceID, s.StripeSubscriptionID, s.Status,
		s.IncludedCredits, s.CurrentPeriodStart, s.CurrentPeriodEnd, s.CancelAtPeriodEnd, s.CanceledAt).
		Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert subscription %s for user %s: %w", s.StripeSubscriptionID, s.UserID, err)
	}
	return nil
}

func (r *subscriptionRepo) UpdateStatus(ctx context.Context, stripeSubscriptionID, status string, canceledAt *time.Time) (bool, error) {
	const q = `
		UPDATE subscriptions
		SET status = $2,
			canceled_at = COALESCE($3, canceled_at),
			updated_at = NOW()
		WHERE stripe_subscription_id = $1`
	res, err := r.db.ExecContext(ctx, q, stripeSubscriptionID, status, canceledAt)
	if err != nil {
		return false, fmt.Errorf("update status of subscription %s: %w", stripeSubscriptionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for subscription %s: %w", stripeSubscriptionID, err)
	}
	return n > 0, nil
}

func (r *subscriptionRepo) SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) error {
	const q = `UPDATE subscriptions SET cancel_at_period_end = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, q, id, cancel); err != nil {
		return fmt.Errorf("set cancel_at_period_end on subscription %s: %w", id, err)
	}
	return nil
}
