package dto

import "time"

type CreateSubscriptionRequest struct {
	PlanID  string `json:"planId"`
	PriceID string `json:"priceId"`
}

type CreateSubscriptionResponse struct {
	SubscriptionID       string `json:"subscriptionId"`
	StripeSubscriptionID string `json:"stripeSubscriptionId"`
	ClientSecret         string `json:"clientSecret"`
}

type CancelSubscriptionRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

type CancelSubscriptionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PlanDetailsDTO struct {
	Name     string   `json:"name"`
	Price    string   `json:"price"`
	Features []string `json:"features"`
}

type SubscriptionStatusDTO struct {
	ID                string         `json:"id"`
	PlanID            string         `json:"planId"`
	Status            string         `json:"status"`
	CurrentPeriodEnd  time.Time      `json:"currentPeriodEnd"`
	CancelAtPeriodEnd bool           `json:"cancelAtPeriodEnd"`
	PlanDetails       PlanDetailsDTO `json:"planDetails"`
}

type SubscriptionStatusResponse struct {
	HasActiveSubscription bool                   `json:"hasActiveSubscription"`
	Subscription          *SubscriptionStatusDTO `json:"subscription,omitempty"`
}

type SubscriptionCheckoutRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

// URLResponse carries a hosted Stripe page URL.
type URLResponse struct {
	URL string `json:"url"`
}
