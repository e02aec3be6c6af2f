package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"bakery/internal/model"
	"bakery/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscriptionRouter(svc service.SubscriptionService) http.Handler {
	h := NewSubscriptionHandler(nil, svc, NewValidator(), nopLogger)
	return newRouter(func(r chi.Router) { h.RegisterRoutes(r, withUser) })
}

func TestSubscriptionCreate(t *testing.T) {
	svc := &fakeSubscriptionService{create: func(_ context.Context, userID string, in service.CreateSubscriptionInput) (*service.CreateSubscriptionResult, error) {
		assert.Equal(t, testUserID, userID)
		assert.Equal(t, "creator", in.PlanID)
		return &service.CreateSubscriptionResult{SubscriptionID: "s1", StripeSubscriptionID: "sub_1", ClientSecret: "cs"}, nil
	}}

	rec := do(t, subscriptionRouter(svc), http.MethodPost, "/subscriptions/create", `{"planId":"creator"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "sub_1", body["stripeSubscriptionId"])
	assert.Equal(t, "cs", body["clientSecret"])
}

func TestSubscriptionCreateNeedsPlanOrPrice(t *testing.T) {
	rec := do(t, subscriptionRouter(&fakeSubscriptionService{}), http.MethodPost, "/subscriptions/create", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscriptionCreateErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{service.ErrPlanNotFound, http.StatusNotFound},
		{service.ErrUserNotFound, http.StatusNotFound},
		{service.ErrAlreadySubscribed, http.StatusBadRequest},
		{service.ErrFreePlanNotPurchasable, http.StatusBadRequest},
		{errBoom, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := &fakeSubscriptionService{create: func(context.Context, string, service.CreateSubscriptionInput) (*service.CreateSubscriptionResult, error) {
				return nil, tt.err
			}}
			rec := do(t, subscriptionRouter(svc), http.MethodPost, "/subscriptions/create", `{"priceId":"price_x"}`)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestSubscriptionCancel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"ok", nil, http.StatusOK},
		{"missing", service.ErrSubscriptionNotFound, http.StatusNotFound},
		{"not owner", service.ErrNotSubscriptionOwner, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeSubscriptionService{cancel: func(_ context.Context, _ string, id string) (*model.Subscription, error) {
				assert.Equal(t, "sub_1", id)
				if tt.err != nil {
					return nil, tt.err
				}
				return &model.Subscription{ID: "s1", CancelAtPeriodEnd: true}, nil
			}}
			rec := do(t, subscriptionRouter(svc), http.MethodPost, "/subscriptions/cancel", `{"subscriptionId":"sub_1"}`)
			require.Equal(t, tt.code, rec.Code)
			if tt.err == nil {
				assert.Equal(t, true, decodeBody(t, rec)["success"])
			}
		})
	}

	rec := do(t, subscriptionRouter(&fakeSubscriptionService{}), http.MethodPost, "/subscriptions/cancel", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscriptionStatus(t *testing.T) {
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	svc := &fakeSubscriptionService{status: func(context.Context, string) (*service.SubscriptionStatus, error) {
		return &service.SubscriptionStatus{
			Subscription: &model.Subscription{ID: "s1", PlanID: "basic", Status: "active", CurrentPeriodEnd: end},
			Plan:         service.PlanDetails{Name: "Basic", Price: "10", Features: []string{"Voice cloning"}},
		}, nil
	}}

	rec := do(t, subscriptionRouter(svc), http.MethodGet, "/subscriptions/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"hasActiveSubscription": true,
		"subscription": {
			"id": "s1",
			"planId": "basic",
			"status": "active",
			"currentPeriodEnd": "2026-11-01T00:00:00Z",
			"cancelAtPeriodEnd": false,
			"planDetails": {"name": "Basic", "price": "10", "features": ["Voice cloning"]}
		}
	}`, rec.Body.String())
}

func TestSubscriptionStatusNone(t *testing.T) {
	svc := &fakeSubscriptionService{status: func(context.Context, string) (*service.SubscriptionStatus, error) {
		return nil, nil
	}}

	rec := do(t, subscriptionRouter(svc), http.MethodGet, "/subscriptions/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"hasActiveSubscription":false}`, rec.Body.String())
}
