package dto

import "bakery/internal/model"

type PlanDTO struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Price           float64  `json:"price"`
	Interval        string   `json:"interval"`
	StripePriceID   string   `json:"stripePriceId"`
	IncludedCredits float64  `json:"includedCredits"`
	Features        []string `json:"features"`
	IsPopular       bool     `json:"isPopular"`
}

func NewPlanDTO(p model.SubscriptionPlan) PlanDTO {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	return PlanDTO{
		ID:              p.PlanID,
		Name:            p.Name,
		Description:     p.Description,
		Price:           float64(p.PriceCents) / 100,
		Interval:        p.Interval,
		StripePriceID:   p.StripePriceID,
		IncludedCredits: p.IncludedCredits.Float(),
		Features:        features,
		IsPopular:       p.IsPopular,
	}
}

type PackageDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Credits       float64 `json:"credits"`
	Price         float64 `json:"price"`
	StripePriceID string  `json:"stripePriceId"`
	IsPopular     bool    `json:"isPopular"`
}

func NewPackageDTO(p model.CreditPackage) PackageDTO {
	return PackageDTO{
		ID:            p.PackID,
		Name:          p.Name,
		Credits:       p.Credits.Float(),
		Price:         float64(p.PriceCents) / 100,
		StripePriceID: p.StripePriceID,
		IsPopular:     p.IsPopular,
	}
}

type UsageSettingDTO struct {
	ModelID    string  `json:"modelId"`
	Category   string  `json:"category"`
	CreditCost float64 `json:"creditCost"`
	Unit       string  `json:"unit"`
}
