package service

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/internal/tier"
)

// checkInvariants rejects account state that no ledger operation can produce.
func checkInvariants(a *model.Account) error {
	var reason string
	switch {
	case a.Points < 0:
		reason = "negative balance"
	case a.HighestPoints < a.Points:
		reason = "highest_points below points"
	case !a.Tier.Valid():
		reason = "unknown tier"
	case a.Tier.Rank() > tier.For(a.HighestPoints).Rank():
		reason = "tier above what highest_points allows"
	default:
		return nil
	}
	return &InvariantViolationError{
		AccountID:     a.ID,
		Points:        a.Points,
		HighestPoints: a.HighestPoints,
		Tier:          a.Tier,
		Reason:        reason,
	}
}

// syncTier derives the tier from the watermark. Tier only moves up because the watermark only moves up.
func syncTier(a *model.Account, now time.Time) bool {
	derived := tier.For(a.HighestPoints)
	if derived == a.Tier {
		return false
	}
	a.Tier = derived
	a.TierUpdatedAt = &now
	return true
}

// prepare validates a freshly locked account and brings a lagging tier up to its watermark.
func prepare(a *model.Account, now time.Time) error {
	if err := checkInvariants(a); err != nil {
		return err
	}
	previous := a.Tier
	if syncTier(a, now) {
		log.Warn().
			Str("account_id", a.ID.String()).
			Str("stored_tier", previous.String()).
			Str("derived_tier", a.Tier.String()).
			Msg("stale tier recomputed from highest_points")
	}
	return nil
}

// applyCredit adds amount to the balance, raising the watermark and tier when exceeded.
func applyCredit(a *model.Account, amount int64, now time.Time) error {
	if amount <= 0 || a.Points > math.MaxInt64-amount {
		return &InvalidAmountError{Amount: amount}
	}
	if err := prepare(a, now); err != nil {
		return err
	}

	a.Points += amount
	if a.Points > a.HighestPoints {
		a.HighestPoints = a.Points
		syncTier(a, now)
	}
	a.UpdatedAt = now
	return checkInvariants(a)
}

// applyDebit removes amount from the balance. The watermark and tier never move down.
func applyDebit(a *model.Account, amount int64, now time.Time) error {
	if amount <= 0 {
		return &InvalidAmountError{Amount: amount}
	}
	if err := prepare(a, now); err != nil {
		return err
	}
	if a.Points < amount {
		return &InsufficientBalanceError{AccountID: a.ID, Available: a.Points, Requested: amount}
	}

	a.Points -= amount
	a.UpdatedAt = now
	return checkInvariants(a)
}
