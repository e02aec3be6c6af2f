package service

import (
	"context"
	"testing"

	"bakery/internal/catalog"
	"bakery/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPlansFallsBackToBuiltIn(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()

	t.Run("empty table", func(t *testing.T) {
		svc := NewCatalogService(&fakeCatalogRepo{}, c, nil, testLogger())
		plans, err := svc.ListPlans(ctx)
		require.NoError(t, err)
		require.Len(t, plans, 4)
		assert.Equal(t, "free", plans[0].PlanID)
	})

	t.Run("database error", func(t *testing.T) {
		svc := NewCatalogService(&fakeCatalogRepo{err: errBoom}, c, nil, testLogger())
		packs, err := svc.ListPackages(ctx)
		require.NoError(t, err)
		require.Len(t, packs, 3)
		assert.Equal(t, model.Credits(500000), packs[1].Credits)
	})

	assert.Empty(t, c.data, "fallback results are not cached")
}

func TestListPlansCachesDatabaseRows(t *testing.T) {
	ctx := context.Background()
	repo := &fakeCatalogRepo{plans: []model.SubscriptionPlan{{PlanID: "studio", Name: "Studio", PriceCents: 9900, IsActive: true}}}
	c := newMapCache()
	svc := NewCatalogService(repo, c, nil, testLogger())

	for i := 0; i < 3; i++ {
		plans, err := svc.ListPlans(ctx)
		require.NoError(t, err)
		require.Len(t, plans, 1)
		assert.Equal(t, "studio", plans[0].PlanID)
	}
	assert.Equal(t, 1, repo.calls)
	assert.Contains(t, c.data, planCacheKey)
}

func TestSingleLookupsFallBack(t *testing.T) {
	ctx := context.Background()
	repo := &fakeCatalogRepo{plans: []model.SubscriptionPlan{{PlanID: "basic", Name: "Basic (db)", StripePriceID: "price_db", IsActive: true}}}
	svc := NewCatalogService(repo, nil, nil, testLogger())

	plan, err := svc.GetPlan(ctx, "basic")
	require.NoError(t, err)
	assert.Equal(t, "Basic (db)", plan.Name)

	plan, err = svc.GetPlan(ctx, "creator")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, "Creator", plan.Name)

	plan, err = svc.GetPlanByPriceID(ctx, "price_professional123")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, "professional", plan.PlanID)

	plan, err = svc.GetPlan(ctx, "enterprise")
	require.NoError(t, err)
	assert.Nil(t, plan)

	setting, err := svc.GetUsageSetting(ctx, "flux_pro")
	require.NoError(t, err)
	require.NotNil(t, setting)
	assert.Equal(t, model.UnitPerMegapixel, setting.Unit)

	pack, err := svc.GetPackage(ctx, "large")
	require.NoError(t, err)
	require.NotNil(t, pack)
	assert.Equal(t, int64(8000), pack.PriceCents)

	repo.err = errBoom
	_, err = svc.GetPlan(ctx, "basic")
	assert.ErrorIs(t, err, errBoom)
}

func TestSeedReplacesAndDropsCache(t *testing.T) {
	ctx := context.Background()
	repo := &fakeCatalogRepo{}
	c := newMapCache()
	require.NoError(t, c.SetJSON(ctx, planCacheKey, []string{"stale"}, 0))
	svc := NewCatalogService(repo, c, nil, testLogger())

	def := catalog.Default()
	require.NoError(t, svc.Seed(ctx, def))
	assert.Same(t, def, repo.replaced)
	assert.ElementsMatch(t, []string{planCacheKey, packageCacheKey}, c.deleted)
	assert.NotContains(t, c.data, planCacheKey)
}
