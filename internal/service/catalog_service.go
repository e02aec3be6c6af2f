package service

import (
	"context"
	"time"

	"bakery/internal/cache"
	"bakery/internal/catalog"
	"bakery/internal/model"
	"bakery/internal/repository"

	"github.com/rs/zerolog"
)

const (
	planCacheKey    = "catalog:plans"
	packageCacheKey = "catalog:packages"
	catalogCacheTTL = 5 * time.Minute
)

// CatalogService serves plans, credit packs and model costs. Reads fall back
// to the built-in catalogue when the database has nothing to offer.
type CatalogService interface {
	ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error)
	ListPackages(ctx context.Context) ([]model.CreditPackage, error)
	ListUsageSettings(ctx context.Context) ([]model.CreditUsageSetting, error)
	GetPlan(ctx context.Context, planID string) (*model.SubscriptionPlan, error)
	GetPlanByPriceID(ctx context.Context, priceID string) (*model.SubscriptionPlan, error)
	GetPackage(ctx context.Context, packID string) (*model.CreditPackage, error)
	GetUsageSetting(ctx context.Context, modelID string) (*model.CreditUsageSetting, error)
	// Seed replaces the stored catalogue and drops cached lists.
	Seed(ctx context.Context, c *catalog.Catalog) error
}

type catalogService struct {
	repo     repository.CatalogRepository
	cache    cache.Cache
	fallback *catalog.Catalog
	logger   zerolog.Logger
}

func NewCatalogService(repo repository.CatalogRepository, c cache.Cache, fallback *catalog.Catalog, logger zerolog.Logger) CatalogService {
	if c == nil {
		c = cache.NopCache()
	}
	if fallback == nil {
		fallback = catalog.Default()
	}
	return &catalogService{
		repo:     repo,
		cache:    c,
		fallback: fallback,
		logger:   logger.With().Str("service", "CatalogService").Logger(),
	}
}

func (s *catalogService) ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	var plans []model.SubscriptionPlan
	if found, err := s.cache.GetJSON(ctx, planCacheKey, &plans); err != nil {
		s.logger.Warn().Err(err).Msg("Plan cache read failed")
	} else if found {
		return plans, nil
	}

	plans, err := s.repo.ListActivePlans(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list plans, serving built-in catalogue")
		return s.fallback.ActivePlans(), nil
	}
	if len(plans) == 0 {
		return s.fallback.ActivePlans(), nil
	}

	if err := s.cache.SetJSON(ctx, planCacheKey, plans, catalogCacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("Plan cache write failed")
	}
	return plans, nil
}

func (s *catalogService) ListPackages(ctx context.Context) ([]model.CreditPackage, error) {
	var packs []model.CreditPackage
	if found, err := s.cache.GetJSON(ctx, packageCacheKey, &packs); err != nil {
		s.logger.Warn().Err(err).Msg("Package cache read failed")
	} else if found {
		return packs, nil
	}

	packs, err := s.repo.ListActivePackages(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list credit packages, serving built-in catalogue")
		return s.fallback.ActivePackages(), nil
	}
	if len(packs) == 0 {
		return s.fallback.ActivePackages(), nil
	}

	if err := s.cache.SetJSON(ctx, packageCacheKey, packs, catalogCacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("Package cache write failed")
	}
	return packs, nil
}

func (s *catalogService) ListUsageSettings(ctx context.Context) ([]model.CreditUsageSetting, error) {
	settings, err := s.repo.ListActiveUsageSettings(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list usage settings")
		return nil, err
	}
	if len(settings) == 0 {
		for _, us := range s.fallback.UsageSettings {
			if us.IsActive {
				settings = append(settings, us)
			}
		}
	}
	return settings, nil
}

func (s *catalogService) GetPlan(ctx context.Context, planID string) (*model.SubscriptionPlan, error) {
	plan, err := s.repo.GetPlanByID(ctx, planID)
	if err != nil {
		s.logger.Error().Err(err).Str("plan_id", planID).Msg("Failed to fetch subscription plan")
		return nil, err
	}
	if plan != nil {
		return plan, nil
	}
	if p, ok := s.fallback.Plan(planID); ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *catalogService) GetPlanByPriceID(ctx context.Context, priceID string) (*model.SubscriptionPlan, error) {
	plan, err := s.repo.GetPlanByStripePriceID(ctx, priceID)
	if err != nil {
		s.logger.Error().Err(err).Str("price_id", priceID).Msg("Failed to fetch subscription plan by price")
		return nil, err
	}
	if plan != nil {
		return plan, nil
	}
	for _, p := range s.fallback.Plans {
		if p.StripePriceID == priceID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *catalogService) GetPackage(ctx context.Context, packID string) (*model.CreditPackage, error) {
	pack, err := s.repo.GetPackageByID(ctx, packID)
	if err != nil {
		s.logger.Error().Err(err).Str("pack_id", packID).Msg("Failed to fetch credit package")
		return nil, err
	}
	if pack != nil {
		return pack, nil
	}
	if p, ok := s.fallback.Package(packID); ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *catalogService) GetUsageSetting(ctx context.Context, modelID string) (*model.CreditUsageSetting, error) {
	setting, err := s.repo.GetUsageSetting(ctx, modelID)
	if err != nil {
		s.logger.Error().Err(err).Str("model_id", modelID).Msg("Failed to fetch usage setting")
		return nil, err
	}
	if setting != nil {
		return setting, nil
	}
	for _, us := range s.fallback.UsageSettings {
		if us.ModelID == modelID {
			cp := us
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *catalogService) Seed(ctx context.Context, c *catalog.Catalog) error {
	if err := s.repo.ReplaceCatalog(ctx, c); err != nil {
		s.logger.Error().Err(err).Msg("Failed to replace catalogue")
		return err
	}
	if err := s.cache.Delete(ctx, planCacheKey, packageCacheKey); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to drop catalogue cache")
	}
	s.logger.Info().Int("plans", len(c.Plans)).Int("packages", len(c.Packages)).Int("usage_settings", len(c.UsageSettings)).Msg("Catalogue seeded")
	return nil
}
