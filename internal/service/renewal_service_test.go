package service

import (
	"context"
	"testing"
	"time"

	"bakery/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestFreeAllowanceReference(t *testing.T) {
	at := time.Date(2026, 1, 31, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	assert.Equal(t, "free:u1:2026-02", FreeAllowanceReference("u1", at))
}

func TestRenewalTopsUpOncePerMonth(t *testing.T) {
	users := newFakeUserRepo(
		&model.User{ID: "a", Plan: model.FreePlanID, Credits: 12550},
		&model.User{ID: "b", Plan: model.FreePlanID, Credits: 50000},
		&model.User{ID: "c", Plan: "basic", Credits: 0},
		&model.User{ID: "d", Plan: model.FreePlanID, Credits: 0},
	)
	credits := newFakeCreditRepo(users)
	svc := NewRenewalService(credits, 40000, testLogger())
	ctx := context.Background()
	oct := time.Date(2026, 10, 1, 0, 5, 0, 0, time.UTC)

	res, err := svc.RunOnce(ctx, oct)
	require.NoError(t, err)
	assert.Equal(t, RenewalResult{Candidates: 2, ToppedUp: 2}, res)
	assert.Equal(t, model.Credits(40000), users.user("a").Credits)
	assert.Equal(t, model.Credits(50000), users.user("b").Credits)
	assert.Equal(t, model.Credits(0), users.user("c").Credits)
	assert.Equal(t, model.Credits(40000), users.user("d").Credits)

	// Spending within the month does not earn a second top-up.
	users.users["a"].Credits = 100
	res, err = svc.RunOnce(ctx, oct.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, res.Candidates)
	assert.Equal(t, model.Credits(100), users.user("a").Credits)

	res, err = svc.RunOnce(ctx, oct.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ToppedUp)
	assert.Equal(t, model.Credits(40000), users.user("a").Credits)

	grants := credits.transactions(model.TransactionTypeSubscriptionRenewal)
	require.Len(t, grants, 3)
	assert.Equal(t, "free:a:2026-11", *grants[2].ReferenceID)
	assert.Equal(t, model.Credits(39900), grants[2].Amount)
}

func TestRenewalContinuesPastFailures(t *testing.T) {
	users := newFakeUserRepo(
		&model.User{ID: "a", Plan: model.FreePlanID},
		&model.User{ID: "b", Plan: model.FreePlanID},
	)
	credits := newFakeCreditRepo(users)
	credits.failFor["a"] = true
	svc := NewRenewalService(credits, 40000, testLogger())

	res, err := svc.RunOnce(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, RenewalResult{Candidates: 2, ToppedUp: 1, Failed: 1}, res)
	assert.Equal(t, model.Credits(40000), users.user("b").Credits)
}

func TestRenewalRunStopsOnCancel(t *testing.T) {
	// Package-level workers started by the pubsub and redis dependencies.
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreAnyFunction("github.com/redis/go-redis/v9/internal/pool.startGlobalTimeCache.func1"),
		goleak.IgnoreCurrent(),
	)

	users := newFakeUserRepo(&model.User{ID: "a", Plan: model.FreePlanID})
	svc := NewRenewalService(newFakeCreditRepo(users), 40000, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		return users.user("a").Credits == 40000
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("renewal loop did not stop")
	}
}
