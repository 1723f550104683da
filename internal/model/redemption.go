package model

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the state of a redeem request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// ProcessAction is a staff decision on a pending request.
type ProcessAction string

const (
	ActionApprove ProcessAction = "approve"
	ActionReject  ProcessAction = "reject"
)

// RedeemRequest is a customer's deferred redemption awaiting staff review.
// PointsReserved is fixed at creation and never recomputed from the reward.
type RedeemRequest struct {
	ID             uuid.UUID     `json:"id"`
	AccountID      uuid.UUID     `json:"account_id"`
	RewardID       uuid.UUID     `json:"reward_id"`
	PointsReserved int64         `json:"points_reserved"`
	Status         RequestStatus `json:"status"`
	VoucherID      *uuid.UUID    `json:"voucher_id,omitempty"`
	ProcessedBy    string        `json:"processed_by,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ProcessedAt    *time.Time    `json:"processed_at,omitempty"`
}

// RedeemRewardRequest is the DTO for both instant redemption and request creation.
type RedeemRewardRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
	RewardID  string `json:"reward_id" validate:"required,uuid"`
}

// ProcessRequestRequest is the DTO for a staff decision.
type ProcessRequestRequest struct {
	Action  string `json:"action" validate:"required,oneof=approve reject"`
	StaffID string `json:"staff_id" validate:"required,notblank,max=255"`
	Notes   string `json:"notes" validate:"max=2000"`
}

// RedemptionResult is returned by every workflow operation.
// Balance, Voucher and Request are set when the operation touched them.
type RedemptionResult struct {
	Balance *BalanceResult `json:"balance,omitempty"`
	Voucher *Voucher       `json:"voucher,omitempty"`
	Request *RedeemRequest `json:"request,omitempty"`
}
