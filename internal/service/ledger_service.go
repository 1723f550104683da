package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/internal/tier"
)

// PointsOptions annotates a ledger adjustment.
type PointsOptions struct {
	Description string
	ActorID     string
}

type adjustment struct {
	txType      model.TransactionType
	debit       bool
	description string
}

var (
	creditAdjustment = adjustment{txType: model.TxPointsAdded, description: "Points added"}
	debitAdjustment  = adjustment{txType: model.TxPointsRedeemed, debit: true, description: "Points redeemed"}
	refundAdjustment = adjustment{txType: model.TxPointsRefunded, description: "Points refunded"}
)

// LedgerService owns account balances and the highest-points watermark.
type LedgerService struct {
	pool         TxBeginner
	accounts     AccountRepositoryInterface
	transactions TransactionRepositoryInterface
	recorder     ActivityRecorder
	clock        Clock
}

// NewLedgerService creates a LedgerService. recorder and clock may be nil.
func NewLedgerService(pool TxBeginner, repos Repositories, recorder ActivityRecorder, clock Clock) *LedgerService {
	recorder, clock = orDefaults(recorder, clock)
	return &LedgerService{
		pool:         pool,
		accounts:     repos.Accounts,
		transactions: repos.Transactions,
		recorder:     recorder,
		clock:        clock,
	}
}

// OpenAccount creates an empty bronze account. A zero id generates a new one.
// Returns ErrAccountExists if the id is taken.
func (s *LedgerService) OpenAccount(ctx context.Context, id uuid.UUID) (*model.BalanceResult, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := s.clock.Now()
	account := &model.Account{
		ID:        id,
		Tier:      tier.For(0),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.accounts.Insert(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	balance := account.Balance()
	return &balance, nil
}

// GetBalance returns the current balance, watermark and tier.
func (s *LedgerService) GetBalance(ctx context.Context, id uuid.UUID) (*model.BalanceResult, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	balance := account.Balance()
	return &balance, nil
}

// Credit adds points, raising the watermark and tier when the new balance exceeds it.
func (s *LedgerService) Credit(ctx context.Context, accountID uuid.UUID, amount int64, opts PointsOptions) (*model.BalanceResult, error) {
	return s.adjust(ctx, accountID, amount, creditAdjustment, opts)
}

// Debit removes points. Returns an InsufficientBalanceError when the balance cannot cover amount.
// The watermark and tier are never lowered.
func (s *LedgerService) Debit(ctx context.Context, accountID uuid.UUID, amount int64, opts PointsOptions) (*model.BalanceResult, error) {
	return s.adjust(ctx, accountID, amount, debitAdjustment, opts)
}

// Refund returns points to the account under the same watermark rule as Credit.
func (s *LedgerService) Refund(ctx context.Context, accountID uuid.UUID, amount int64, opts PointsOptions) (*model.BalanceResult, error) {
	return s.adjust(ctx, accountID, amount, refundAdjustment, opts)
}

func (s *LedgerService) adjust(ctx context.Context, accountID uuid.UUID, amount int64, adj adjustment, opts PointsOptions) (*model.BalanceResult, error) {
	if amount <= 0 {
		return nil, &InvalidAmountError{Amount: amount}
	}
	description := opts.Description
	if description == "" {
		description = adj.description
	}

	var balance model.BalanceResult
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, accountID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("get account for update: %w", err)
		}

		now := s.clock.Now()
		if adj.debit {
			err = applyDebit(account, amount, now)
		} else {
			err = applyCredit(account, amount, now)
		}
		if err != nil {
			return err
		}

		if err := s.accounts.UpdateBalance(ctx, tx, account); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		entry := &model.TransactionEntry{
			ID:          uuid.New(),
			AccountID:   accountID,
			Type:        adj.txType,
			Amount:      balanceDelta(adj, amount),
			Description: description,
			CreatedAt:   now,
		}
		if err := s.transactions.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}

		balance = account.Balance()
		return nil
	})
	if err != nil {
		return nil, err
	}

	actorID, actorRole := opts.ActorID, model.RoleStaff
	if actorID == "" {
		actorID, actorRole = "system", model.RoleSystem
	}
	record(ctx, s.recorder, model.Activity{
		ActorID:     actorID,
		ActorRole:   actorRole,
		TargetID:    accountID.String(),
		TargetRole:  model.RoleCustomer,
		Description: description,
		PointsDelta: balanceDelta(adj, amount),
		OccurredAt:  s.clock.Now(),
	})

	return &balance, nil
}

func balanceDelta(adj adjustment, amount int64) int64 {
	if adj.debit {
		return -amount
	}
	return amount
}
