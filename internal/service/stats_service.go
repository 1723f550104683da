package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
)

const (
	// DefaultHistoryLimit is used when a caller does not ask for a page size.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps one page of history or activities.
	MaxHistoryLimit = 100
)

var summaryTypes = []model.TransactionType{
	model.TxPointsAdded,
	model.TxRewardRedeemed,
	model.TxPointsRedeemed,
	model.TxPointsRefunded,
}

// StatsService derives read-only views from the transaction and activity logs.
type StatsService struct {
	accounts     AccountRepositoryInterface
	transactions TransactionRepositoryInterface
	activities   ActivityReader
}

// NewStatsService creates a StatsService.
func NewStatsService(repos Repositories) *StatsService {
	return &StatsService{
		accounts:     repos.Accounts,
		transactions: repos.Transactions,
		activities:   repos.Activities,
	}
}

// Summary aggregates the transaction log for one account.
// RedemptionRatio is (spent - refunded) / earned, rounded to 4 places, and zero when nothing was earned.
func (s *StatsService) Summary(ctx context.Context, accountID uuid.UUID) (*model.PointsSummary, error) {
	if err := s.ensureAccount(ctx, accountID); err != nil {
		return nil, err
	}

	summary := &model.PointsSummary{
		AccountID: accountID,
		ByType:    make(map[model.TransactionType]model.TypeStats, len(summaryTypes)),
	}
	for _, t := range summaryTypes {
		sum, err := s.transactions.SumByType(ctx, accountID, t)
		if err != nil {
			return nil, fmt.Errorf("sum %s: %w", t, err)
		}
		count, err := s.transactions.CountByType(ctx, accountID, t)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", t, err)
		}
		summary.ByType[t] = model.TypeStats{Sum: sum, Count: count}
	}

	added := summary.ByType[model.TxPointsAdded]
	redeemed := summary.ByType[model.TxRewardRedeemed]
	reserved := summary.ByType[model.TxPointsRedeemed]
	refunded := summary.ByType[model.TxPointsRefunded]

	summary.TotalEarned = added.Sum
	summary.TotalSpent = -(redeemed.Sum + reserved.Sum)
	summary.TotalRefunded = refunded.Sum
	summary.NetPoints = added.Sum + redeemed.Sum + reserved.Sum + refunded.Sum
	summary.RedemptionCount = redeemed.Count

	summary.RedemptionRatio = decimal.Zero
	if summary.TotalEarned > 0 {
		net := decimal.NewFromInt(summary.TotalSpent - summary.TotalRefunded)
		summary.RedemptionRatio = net.Div(decimal.NewFromInt(summary.TotalEarned)).Round(4)
	}
	return summary, nil
}

// History returns the newest transaction entries for an account.
func (s *StatsService) History(ctx context.Context, accountID uuid.UUID, limit int) ([]model.TransactionEntry, error) {
	if err := s.ensureAccount(ctx, accountID); err != nil {
		return nil, err
	}
	entries, err := s.transactions.ListByAccount(ctx, accountID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return entries, nil
}

// Activities returns the newest recorded activities targeting an account.
func (s *StatsService) Activities(ctx context.Context, accountID uuid.UUID, limit int) ([]model.ActivityLog, error) {
	if err := s.ensureAccount(ctx, accountID); err != nil {
		return nil, err
	}
	logs, err := s.activities.ListByTarget(ctx, accountID.String(), ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return logs, nil
}

// ClampLimit maps a requested page size into [1, MaxHistoryLimit]; non-positive means the default.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

func (s *StatsService) ensureAccount(ctx context.Context, id uuid.UUID) error {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return ErrAccountNotFound
	}
	return nil
}
