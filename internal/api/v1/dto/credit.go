package dto

import (
	"encoding/json"
	"time"

	"bakery/internal/model"
)

type BalanceResponse struct {
	Credits float64 `json:"credits"`
	Plan    string  `json:"plan"`
}

type TransactionDTO struct {
	ID          string          `json:"id"`
	Amount      float64         `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	ReferenceID *string         `json:"referenceId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type TransactionsResponse struct {
	Transactions []TransactionDTO `json:"transactions"`
}

func NewTransactionDTO(t model.CreditTransaction) TransactionDTO {
	return TransactionDTO{
		ID:          t.ID,
		Amount:      t.Amount.Float(),
		Type:        t.Type,
		Description: t.Description,
		Metadata:    t.Metadata,
		ReferenceID: t.ReferenceID,
		CreatedAt:   t.CreatedAt,
	}
}

// UsageRequest is shared by the quote and use endpoints. Parameters are kept
// raw so they can be stored verbatim on the ledger entry.
type UsageRequest struct {
	Operation  string          `json:"operation" validate:"required"`
	Parameters json.RawMessage `json:"parameters" validate:"required"`
	Title      string          `json:"title,omitempty" validate:"max=200"`
	OutputURL  string          `json:"outputUrl,omitempty" validate:"max=2048"`
}

type QuoteResponse struct {
	Operation   string  `json:"operation"`
	ModelID     string  `json:"modelId"`
	CreditCost  float64 `json:"creditCost"`
	Description string  `json:"description"`
}

type UseResponse struct {
	Success          bool    `json:"success"`
	CreditCost       float64 `json:"creditCost"`
	RemainingCredits float64 `json:"remainingCredits"`
	MediaID          string  `json:"mediaId,omitempty"`
}

type InsufficientCreditsResponse struct {
	Error            string  `json:"error"`
	RequiredCredits  float64 `json:"requiredCredits"`
	AvailableCredits float64 `json:"availableCredits"`
}

type PurchaseRequest struct {
	PackID string `json:"packId" validate:"required"`
}

type PackDetails struct {
	Credits float64 `json:"credits"`
	Price   float64 `json:"price"`
}

type PurchaseResponse struct {
	ClientSecret string      `json:"clientSecret"`
	PackDetails  PackDetails `json:"packDetails"`
}
