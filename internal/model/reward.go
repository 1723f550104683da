package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/loyalty-ledger/internal/tier"
)

// Reward is a catalog item exchangeable for points.
// Rewards are never hard-deleted; IsActive=false retires them.
type Reward struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	PointsCost  int64      `json:"points_cost"`
	IsActive    bool       `json:"is_active"`
	MinimumTier *tier.Tier `json:"minimum_tier,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// AvailableTo reports whether an account with the given watermark and balance can redeem r.
func (r *Reward) AvailableTo(highestPoints, points int64) bool {
	return r.IsActive && r.PointsCost <= points && tier.For(highestPoints).Meets(r.MinimumTier)
}

// CreateRewardRequest is the DTO for adding a reward to the catalog.
type CreateRewardRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"max=2000"`
	PointsCost  *int64 `json:"points_cost" validate:"required,gte=1"`
	MinimumTier string `json:"minimum_tier" validate:"omitempty,oneof=bronze silver gold"`
}
