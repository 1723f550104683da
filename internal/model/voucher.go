package model

import (
	"time"

	"github.com/google/uuid"
)

// VoucherStatus is the lifecycle state of a voucher.
type VoucherStatus string

const (
	VoucherActive VoucherStatus = "active"
	VoucherUsed   VoucherStatus = "used"
)

// Voucher is a single-use credential for a granted reward.
type Voucher struct {
	ID         uuid.UUID     `json:"id"`
	Code       string        `json:"code"`
	AccountID  uuid.UUID     `json:"account_id"`
	RewardID   uuid.UUID     `json:"reward_id"`
	Status     VoucherStatus `json:"status"`
	RedeemedAt time.Time     `json:"redeemed_at"`
	UsedAt     *time.Time    `json:"used_at,omitempty"`
}

// UseVoucherRequest is the DTO for consuming a voucher.
type UseVoucherRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
}
