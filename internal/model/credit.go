package model

import (
	"encoding/json"
	"time"
)

// Ledger transaction types.
const (
	TransactionTypeSubscriptionRenewal = "subscription_renewal"
	TransactionTypePurchase            = "purchase"
	TransactionTypeUsage               = "usage"
)

// CreditTransaction is one signed entry of a user's credit ledger.
type CreditTransaction struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"userId"`
	Amount      Credits         `db:"amount" json:"amount"`
	Type        string          `db:"type" json:"type"`
	Description string          `db:"description" json:"description"`
	Metadata    json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	ReferenceID *string         `db:"reference_id" json:"referenceId,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// Usage cost units.
const (
	UnitPerSecond     = "per_second"
	UnitPerMegapixel  = "per_megapixel"
	UnitPer1000Chars  = "per_1000_chars"
	UnitPerGeneration = "per_generation"
)

// CreditUsageSetting is the per-unit credit cost of one generation model.
type CreditUsageSetting struct {
	ModelID    string    `db:"model_id" json:"modelId"`
	Category   MediaType `db:"category" json:"category"`
	CreditCost float64   `db:"credit_cost" json:"creditCost"`
	Unit       string    `db:"unit" json:"unit"`
	IsActive   bool      `db:"is_active" json:"isActive"`
}
