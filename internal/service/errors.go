package service

import (
	"errors"
	"fmt"

	"bakery/internal/model"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid password")
	ErrForbidden              = errors.New("forbidden")

	ErrPlanNotFound           = errors.New("subscription plan not found")
	ErrFreePlanNotPurchasable = errors.New("the free plan does not need a subscription")
	ErrAlreadySubscribed      = errors.New("user already has an active subscription")
	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrNotSubscriptionOwner   = errors.New("unauthorized to cancel this subscription")
	ErrNoStripeCustomer       = errors.New("no billing account for user")

	ErrInvalidPack          = errors.New("invalid credit pack")
	ErrSubscriptionRequired = errors.New("you need an active subscription to purchase credits")
	ErrInvalidParameters    = errors.New("invalid operation parameters")
	ErrInsufficientCredits  = errors.New("insufficient credits")

	ErrMediaNotFound    = errors.New("media not found")
	ErrStorageDisabled  = errors.New("media storage is not configured")
	ErrInvalidOutputURL = errors.New("outputUrl must be an http(s) URL or one of your storage keys")
	ErrUnknownCustomer  = errors.New("no user for stripe customer")
	ErrMalformedEvent   = errors.New("malformed stripe event")
)

// InsufficientCreditsError carries the amounts behind a refused debit.
type InsufficientCreditsError struct {
	Required  model.Credits
	Available model.Credits
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %s, available %s", e.Required, e.Available)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}
