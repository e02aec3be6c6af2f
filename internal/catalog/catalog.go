// Package catalog holds the plans, credit packs and model costs offered by
// the product, loaded from YAML.
package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"

	"bakery/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog is the full product catalogue.
type Catalog struct {
	Plans         []model.SubscriptionPlan
	Packages      []model.CreditPackage
	UsageSettings []model.CreditUsageSetting
}

type planEntry struct {
	PlanID          string   `yaml:"plan_id"`
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Price           float64  `yaml:"price"`
	Interval        string   `yaml:"interval"`
	StripePriceID   string   `yaml:"stripe_price_id"`
	IncludedCredits float64  `yaml:"included_credits"`
	Features        []string `yaml:"features"`
	Popular         bool     `yaml:"popular"`
	Inactive        bool     `yaml:"inactive"`
}

type packageEntry struct {
	PackID        string  `yaml:"pack_id"`
	Name          string  `yaml:"name"`
	Credits       float64 `yaml:"credits"`
	Price         float64 `yaml:"price"`
	StripePriceID string  `yaml:"stripe_price_id"`
	Popular       bool    `yaml:"popular"`
	Inactive      bool    `yaml:"inactive"`
}

type usageEntry struct {
	ModelID    string  `yaml:"model_id"`
	Category   string  `yaml:"category"`
	CreditCost float64 `yaml:"credit_cost"`
	Unit       string  `yaml:"unit"`
	Inactive   bool    `yaml:"inactive"`
}

type document struct {
	Plans         []planEntry    `yaml:"plans"`
	Packages      []packageEntry `yaml:"packages"`
	UsageSettings []usageEntry   `yaml:"usage_settings"`
}

// Default returns the built-in catalogue. It is also the fallback when the
// database holds no plans or packs.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Load reads a catalogue from a YAML file.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalogue.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{}
	seen := map[string]bool{}
	for _, p := range doc.Plans {
		if p.PlanID == "" || p.Name == "" {
			return nil, fmt.Errorf("plan entry needs plan_id and name")
		}
		if seen["plan:"+p.PlanID] {
			return nil, fmt.Errorf("duplicate plan %q", p.PlanID)
		}
		seen["plan:"+p.PlanID] = true
		interval := p.Interval
		if interval == "" {
			interval = "monthly"
		}
		if interval != "monthly" && interval != "yearly" {
			return nil, fmt.Errorf("plan %q: invalid interval %q", p.PlanID, p.Interval)
		}
		c.Plans = append(c.Plans, model.SubscriptionPlan{
			PlanID:          p.PlanID,
			Name:            p.Name,
			Description:     p.Description,
			PriceCents:      dollarsToCents(p.Price),
			Interval:        interval,
			StripePriceID:   p.StripePriceID,
			IncludedCredits: model.CreditsFromFloat(p.IncludedCredits),
			Features:        p.Features,
			IsPopular:       p.Popular,
			IsActive:        !p.Inactive,
		})
	}

	for _, p := range doc.Packages {
		if p.PackID == "" || p.Credits <= 0 {
			return nil, fmt.Errorf("package entry needs pack_id and positive credits")
		}
		if seen["pack:"+p.PackID] {
			return nil, fmt.Errorf("duplicate package %q", p.PackID)
		}
		seen["pack:"+p.PackID] = true
		c.Packages = append(c.Packages, model.CreditPackage{
			PackID:        p.PackID,
			Name:          p.Name,
			Credits:       model.CreditsFromFloat(p.Credits),
			PriceCents:    dollarsToCents(p.Price),
			StripePriceID: p.StripePriceID,
			IsPopular:     p.Popular,
			IsActive:      !p.Inactive,
		})
	}

	for _, u := range doc.UsageSettings {
		if u.ModelID == "" || u.Unit == "" {
			return nil, fmt.Errorf("usage setting needs model_id and unit")
		}
		switch model.MediaType(u.Category) {
		case model.MediaTypeVideo, model.MediaTypeImage, model.MediaTypeAudio:
		default:
			return nil, fmt.Errorf("usage setting %q: invalid category %q", u.ModelID, u.Category)
		}
		if seen["model:"+u.ModelID] {
			return nil, fmt.Errorf("duplicate usage setting %q", u.ModelID)
		}
		seen["model:"+u.ModelID] = true
		c.UsageSettings = append(c.UsageSettings, model.CreditUsageSetting{
			ModelID:    u.ModelID,
			Category:   model.MediaType(u.Category),
			CreditCost: u.CreditCost,
			Unit:       u.Unit,
			IsActive:   !u.Inactive,
		})
	}

	return c, nil
}

// Plan returns the plan with the given id.
func (c *Catalog) Plan(planID string) (*model.SubscriptionPlan, bool) {
	for i := range c.Plans {
		if c.Plans[i].PlanID == planID {
			return &c.Plans[i], true
		}
	}
	return nil, false
}

// Package returns the credit pack with the given id.
func (c *Catalog) Package(packID string) (*model.CreditPackage, bool) {
	for i := range c.Packages {
		if c.Packages[i].PackID == packID {
			return &c.Packages[i], true
		}
	}
	return nil, false
}

// ActivePlans returns the plans that are offered.
func (c *Catalog) ActivePlans() []model.SubscriptionPlan {
	var out []model.SubscriptionPlan
	for _, p := range c.Plans {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

// ActivePackages returns the packs that are offered.
func (c *Catalog) ActivePackages() []model.CreditPackage {
	var out []model.CreditPackage
	for _, p := range c.Packages {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

func dollarsToCents(d float64) int64 {
	return int64(math.Round(d * 100))
}
