package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"bakery/internal/catalog"
	"bakery/internal/model"
)

// CatalogRepository reads and replaces plans, credit packs and model costs.
type CatalogRepository interface {
	ListActivePlans(ctx context.Context) ([]model.SubscriptionPlan, error)
	GetPlanByID(ctx context.Context, planID string) (*model.SubscriptionPlan, error)
	GetPlanByStripePriceID(ctx context.Context, priceID string) (*model.SubscriptionPlan, error)
	ListActivePackages(ctx context.Context) ([]model.CreditPackage, error)
	GetPackageByID(ctx context.Context, packID string) (*model.CreditPackage, error)
	ListActiveUsageSettings(ctx context.Context) ([]model.CreditUsageSetting, error)
	GetUsageSetting(ctx context.Context, modelID string) (*model.CreditUsageSetting, error)
	// ReplaceCatalog deletes every plan, pack and usage setting and inserts c.
	ReplaceCatalog(ctx context.Context, c *catalog.Catalog) error
}

type catalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) CatalogRepository {
	return &catalogRepo{db: db}
}

const planColumns = `plan_id, name, description, price_cents, interval, stripe_price_id, included_credits, features, is_popular, is_active`

func scanPlan(s scanner) (*model.SubscriptionPlan, error) {
	var p model.SubscriptionPlan
	var rawFeatures []byte
	err := s.Scan(&p.PlanID, &p.Name, &p.Description, &p.PriceCents, &p.Interval, &p.StripePriceID,
		&p.IncludedCredits, &rawFeatures, &p.IsPopular, &p.IsActive)
	if err != nil {
		return nil, err
	}
	if len(rawFeatures) > 0 {
		if err := json.Unmarshal(rawFeatures, &p.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features for plan %s: %w", p.PlanID, err)
		}
	}
	return &p, nil
}

func (r *catalogRepo) ListActivePlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	q := `SELECT ` + planColumns + ` FROM subscription_plans WHERE is_active ORDER BY price_cents, plan_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var plans []model.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (r *catalogRepo) getPlan(ctx context.Context, query string, arg string) (*model.SubscriptionPlan, error) {
	p, err := scanPlan(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch plan %s: %w", arg, err)
	}
	return p, nil
}

func (r *catalogRepo) GetPlanByID(ctx context.Context, planID string) (*model.SubscriptionPlan, error) {
	return r.getPlan(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE plan_id = $1`, planID)
}

func (r *catalogRepo) GetPlanByStripePriceID(ctx context.Context, priceID string) (*model.SubscriptionPlan, error) {
	q := `SELECT ` + planColumns + ` FROM subscription_plans WHERE stripe_price_id = $1 ORDER BY is_active DESC LIMIT 1`
	return r.getPlan(ctx, q, priceID)
}

const packageColumns = `pack_id, name, credits, price_cents, stripe_price_id, is_popular, is_active`

func scanPackage(s scanner) (*model.CreditPackage, error) {
	var p model.CreditPackage
	if err := s.Scan(&p.PackID, &p.Name, &p.Credits, &p.PriceCents, &p.StripePriceID, &p.IsPopular, &p.IsActive); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *catalogRepo) ListActivePackages(ctx context.Context) ([]model.CreditPackage, error) {
	q := `SELECT ` + packageColumns + ` FROM credit_packages WHERE is_active ORDER BY price_cents, pack_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing credit packages: %w", err)
	}
	defer rows.Close()

	var packs []model.CreditPackage
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credit package: %w", err)
		}
		packs = append(packs, *p)
	}
	return packs, rows.Err()
}

func (r *catalogRepo) GetPackageByID(ctx context.Context, packID string) (*model.CreditPackage, error) {
	p, err := scanPackage(r.db.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM credit_packages WHERE pack_id = $1`, packID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch credit package %s: %w", packID, err)
	}
	return p, nil
}

const usageColumns = `model_id, category, credit_cost, unit, is_active`

func (r *catalogRepo) ListActiveUsageSettings(ctx context.Context) ([]model.CreditUsageSetting, error) {
	q := `SELECT ` + usageColumns + ` FROM credit_usage_settings WHERE is_active ORDER BY category, model_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing usage settings: %w", err)
	}
	defer rows.Close()

	settings := []model.CreditUsageSetting{}
	for rows.Next() {
		var s model.CreditUsageSetting
		if err := rows.Scan(&s.ModelID, &s.Category, &s.CreditCost, &s.Unit, &s.IsActive); err != nil {
			return nil, fmt.Errorf("scanning usage setting: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (r *catalogRepo) GetUsageSetting(ctx context.Context, modelID string) (*model.CreditUsageSetting, error) {
	var s model.CreditUsageSetting
	err := r.db.QueryRowContext(ctx, `SELECT `+usageColumns+` FROM credit_usage_settings WHERE model_id = $1`, modelID).
		Scan(&s.ModelID, &s.Category, &s.CreditCost, &s.Unit, &s.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch usage setting %s: %w", modelID, err)
	}
	return &s, nil
}

func (r *catalogRepo) ReplaceCatalog(ctx context.Context, c *catalog.Catalog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog replace: %w", err)
	}
	defer rollback(tx)

	for _, table := range []string{"subscription_plans", "credit_packages", "credit_usage_settings"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	const planQ = `INSERT INTO subscription_plans (` + planColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, p := range c.Plans {
		features, err := json.Marshal(p.Features)
		if err != nil {
			return fmt.Errorf("marshal features for plan %s: %w", p.PlanID, err)
		}
		if _, err := tx.ExecContext(ctx, planQ, p.PlanID, p.Name, p.Description, p.PriceCents, p.Interval,
			p.StripePriceID, p.IncludedCredits, string(features), p.IsPopular, p.IsActive); err != nil {
			return fmt.Errorf("insert plan %s: %w", p.PlanID, err)
		}
	}

	const packQ = `INSERT INTO credit_packages (` + packageColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, p := range c.Packages {
		if _, err := tx.ExecContext(ctx, packQ, p.PackID, p.Name, p.Credits, p.PriceCents, p.StripePriceID,
			p.IsPopular, p.IsActive); err != nil {
			return fmt.Errorf("insert credit package %s: %w", p.PackID, err)
		}
	}

	const usageQ = `INSERT INTO credit_usage_settings (` + usageColumns + `) VALUES ($1, $2, $3, $4, $5)`
	for _, s := range c.UsageSettings {
		if _, err := tx.ExecContext(ctx, usageQ, s.ModelID, s.Category, s.CreditCost, s.Unit, s.IsActive); err != nil {
			return fmt.Errorf("insert usage setting %s: %w", s.ModelID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog replace: %w", err)
	}
	return nil
}
