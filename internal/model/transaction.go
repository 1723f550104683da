package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a balance-affecting event.
type TransactionType string

const (
	TxPointsAdded    TransactionType = "points_added"
	TxRewardRedeemed TransactionType = "reward_redeemed"
	TxPointsRedeemed TransactionType = "points_redeemed"
	TxPointsRefunded TransactionType = "points_refunded"
)

// TransactionEntry is an immutable transaction log row.
// Amount is signed: positive credits the balance, negative debits it.
type TransactionEntry struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	Type        TransactionType `json:"type"`
	Amount      int64           `json:"amount"`
	RewardID    *uuid.UUID      `json:"reward_id,omitempty"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TypeStats aggregates one transaction type for an account.
type TypeStats struct {
	Sum   int64 `json:"sum"`
	Count int64 `json:"count"`
}

// PointsSummary is the statistics view derived from the transaction log.
type PointsSummary struct {
	AccountID       uuid.UUID                     `json:"account_id"`
	ByType          map[TransactionType]TypeStats `json:"by_type"`
	TotalEarned     int64                         `json:"total_earned"`
	TotalSpent      int64                         `json:"total_spent"`
	TotalRefunded   int64                         `json:"total_refunded"`
	NetPoints       int64                         `json:"net_points"`
	RedemptionCount int64                         `json:"redemption_count"`
	RedemptionRatio decimal.Decimal               `json:"redemption_ratio"`
}
