package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/internal/tier"
)

var (
	// ErrNotFound is the parent of every "entity absent" error.
	ErrNotFound = errors.New("not found")

	// ErrAccountNotFound is returned when an account cannot be found
	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)

	// ErrRewardNotFound is returned when a reward cannot be found
	ErrRewardNotFound = fmt.Errorf("reward %w", ErrNotFound)

	// ErrRequestNotFound is returned when a redeem request cannot be found
	ErrRequestNotFound = fmt.Errorf("redeem request %w", ErrNotFound)

	// ErrVoucherNotFound is returned when a voucher cannot be found
	ErrVoucherNotFound = fmt.Errorf("voucher %w", ErrNotFound)

	// ErrAccountExists is returned when opening an account whose id is taken
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidAmount is returned for non-positive point amounts
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance is returned when a debit exceeds the spendable balance
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrRewardInactive is returned when redeeming a deactivated reward
	ErrRewardInactive = errors.New("reward is not active")

	// ErrTierTooLow is returned when the account tier is below the reward's minimum
	ErrTierTooLow = errors.New("tier too low for reward")

	// ErrInvalidTransition is returned for any state change the workflow does not allow
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAlreadyProcessed is returned when processing a request that is no longer pending
	ErrAlreadyProcessed = fmt.Errorf("redeem request already processed: %w", ErrInvalidTransition)

	// ErrAlreadyUsed is returned when using a voucher that is not active
	ErrAlreadyUsed = errors.New("voucher already used")

	// ErrNotApproved is returned when a voucher's owning request is not approved
	ErrNotApproved = errors.New("redeem request not approved")

	// ErrForbidden is returned when an entity does not belong to the caller
	ErrForbidden = errors.New("forbidden")

	// ErrInvariantViolation signals corrupted ledger state. It is a defect, never a user error.
	ErrInvariantViolation = errors.New("ledger invariant violated")
)

// InvalidAmountError carries the rejected amount.
type InvalidAmountError struct {
	Amount int64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %d: must be greater than zero", e.Amount)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

func (e *InvalidAmountError) Details() map[string]any {
	return map[string]any{"amount": e.Amount}
}

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	AccountID uuid.UUID
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

func (e *InsufficientBalanceError) Details() map[string]any {
	return map[string]any{
		"available": e.Available,
		"requested": e.Requested,
		"shortfall": e.Requested - e.Available,
	}
}

// TierTooLowError reports the tier gap for a reward.
type TierTooLowError struct {
	Current  tier.Tier
	Required tier.Tier
}

func (e *TierTooLowError) Error() string {
	return fmt.Sprintf("tier too low for reward: have %s, need %s", e.Current, e.Required)
}

func (e *TierTooLowError) Unwrap() error { return ErrTierTooLow }

func (e *TierTooLowError) Details() map[string]any {
	return map[string]any{"current_tier": e.Current, "required_tier": e.Required}
}

// AlreadyProcessedError reports the terminal status a request already holds.
type AlreadyProcessedError struct {
	RequestID uuid.UUID
	Status    model.RequestStatus
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("redeem request %s already %s", e.RequestID, e.Status)
}

func (e *AlreadyProcessedError) Unwrap() error { return ErrAlreadyProcessed }

func (e *AlreadyProcessedError) Details() map[string]any {
	return map[string]any{"status": e.Status}
}

// AlreadyUsedError reports when a voucher was consumed.
type AlreadyUsedError struct {
	VoucherID uuid.UUID
	UsedAt    *time.Time
}

func (e *AlreadyUsedError) Error() string {
	return fmt.Sprintf("voucher %s already used", e.VoucherID)
}

func (e *AlreadyUsedError) Unwrap() error { return ErrAlreadyUsed }

func (e *AlreadyUsedError) Details() map[string]any {
	d := map[string]any{"status": model.VoucherUsed}
	if e.UsedAt != nil {
		d["used_at"] = e.UsedAt
	}
	return d
}

// InvariantViolationError captures the account state that failed a consistency check.
type InvariantViolationError struct {
	AccountID     uuid.UUID
	Points        int64
	HighestPoints int64
	Tier          tier.Tier
	Reason        string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("ledger invariant violated for account %s: %s (points=%d highest_points=%d tier=%s)",
		e.AccountID, e.Reason, e.Points, e.HighestPoints, e.Tier)
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// IsClientError reports whether err was caused by caller input or business rules.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrRewardInactive) ||
		errors.Is(err, ErrTierTooLow) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrNotApproved) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrAccountExists)
}
