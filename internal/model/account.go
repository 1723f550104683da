package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/loyalty-ledger/internal/tier"
)

// Account holds a customer's spendable points and lifetime watermark.
// HighestPoints never decreases and Tier is always tier.For(HighestPoints).
type Account struct {
	ID            uuid.UUID  `json:"id"`
	Points        int64      `json:"points"`
	HighestPoints int64      `json:"highest_points"`
	Tier          tier.Tier  `json:"tier"`
	TierUpdatedAt *time.Time `json:"tier_updated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Balance returns the caller-facing view of the account.
func (a *Account) Balance() BalanceResult {
	return BalanceResult{
		AccountID:     a.ID,
		Points:        a.Points,
		HighestPoints: a.HighestPoints,
		Tier:          a.Tier,
		TierUpdatedAt: a.TierUpdatedAt,
	}
}

// BalanceResult is returned by every ledger operation.
type BalanceResult struct {
	AccountID     uuid.UUID  `json:"account_id"`
	Points        int64      `json:"points"`
	HighestPoints int64      `json:"highest_points"`
	Tier          tier.Tier  `json:"tier"`
	TierUpdatedAt *time.Time `json:"tier_updated_at,omitempty"`
}

// OpenAccountRequest is the DTO for opening a points account.
// AccountID is optional; a new id is generated when empty.
type OpenAccountRequest struct {
	AccountID string `json:"account_id" validate:"omitempty,uuid"`
}

// PointsRequest is the DTO for credit, debit and refund calls.
type PointsRequest struct {
	Amount      *int64 `json:"amount" validate:"required,gte=1"`
	Description string `json:"description" validate:"max=500"`
	ActorID     string `json:"actor_id" validate:"max=255"`
}
