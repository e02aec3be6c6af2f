package model

import "time"

// Subscription statuses mirror the payment processor's values.
const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusUnpaid            = "unpaid"
	SubscriptionStatusPaused            = "paused"
)

// Subscription is a user's paid plan as last reported by Stripe.
type Subscription struct {
	ID                   string     `db:"id" json:"id"`
	UserID               string     `db:"user_id" json:"userId"`
	PlanID               string     `db:"plan_id" json:"planId"`
	StripePriceID        string     `db:"stripe_price_id" json:"stripePriceId"`
	StripeSubscriptionID string     `db:"stripe_subscription_id" json:"stripeSubscriptionId"`
	Status               string     `db:"status" json:"status"`
	IncludedCredits      Credits    `db:"included_credits" json:"includedCredits"`
	CurrentPeriodStart   time.Time  `db:"current_period_start" json:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time  `db:"current_period_end" json:"currentPeriodEnd"`
	CancelAtPeriodEnd    bool       `db:"cancel_at_period_end" json:"cancelAtPeriodEnd"`
	CanceledAt           *time.Time `db:"canceled_at" json:"canceledAt,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsActiveStatus reports whether a subscription in this status grants paid features.
func IsActiveStatus(status string) bool {
	return status == SubscriptionStatusActive || status == SubscriptionStatusTrialing
}

// SubscriptionPlan represents a plan offered on the pricing page.
type SubscriptionPlan struct {
	PlanID          string   `db:"plan_id" json:"planId"`
	Name            string   `db:"name" json:"name"`
	Description     string   `db:"description" json:"description"`
	PriceCents      int64    `db:"price_cents" json:"priceCents"`
	Interval        string   `db:"interval" json:"interval"`
	StripePriceID   string   `db:"stripe_price_id" json:"stripePriceId"`
	IncludedCredits Credits  `db:"included_credits" json:"includedCredits"`
	Features        []string `db:"features" json:"features"`
	IsPopular       bool     `db:"is_popular" json:"isPopular"`
	IsActive        bool     `db:"is_active" json:"isActive"`
}

// PriceLabel renders the price in whole dollars the way the pricing page shows it.
func (p *SubscriptionPlan) PriceLabel() string {
	return FormatDollars(p.PriceCents)
}

// CreditPackage is a one-off pack of credits.
type CreditPackage struct {
	PackID        string  `db:"pack_id" json:"packId"`
	Name          string  `db:"name" json:"name"`
	Credits       Credits `db:"credits" json:"credits"`
	PriceCents    int64   `db:"price_cents" json:"priceCents"`
	StripePriceID string  `db:"stripe_price_id" json:"stripePriceId"`
	IsPopular     bool    `db:"is_popular" json:"isPopular"`
	IsActive      bool    `db:"is_active" json:"isActive"`
}
