package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/pkg/database"
)

// AccountRepositoryInterface defines the interface for account data access.
type AccountRepositoryInterface interface {
	Insert(ctx context.Context, account *model.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.Account, error)
	UpdateBalance(ctx context.Context, tx database.TxQuerier, account *model.Account) error
}

// RewardRepositoryInterface defines the interface for reward catalog access.
type RewardRepositoryInterface interface {
	Insert(ctx context.Context, reward *model.Reward) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Reward, error)
	GetSnapshot(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.Reward, error)
	ListActive(ctx context.Context) ([]model.Reward, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// RedeemRequestRepositoryInterface defines the interface for redeem request access.
type RedeemRequestRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, req *model.RedeemRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.RedeemRequest, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.RedeemRequest, error)
	GetByVoucherID(ctx context.Context, tx database.TxQuerier, voucherID uuid.UUID) (*model.RedeemRequest, error)
	Resolve(ctx context.Context, tx database.TxQuerier, req *model.RedeemRequest) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]model.RedeemRequest, error)
	ListPending(ctx context.Context) ([]model.RedeemRequest, error)
}

// VoucherRepositoryInterface defines the interface for voucher access.
type VoucherRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, voucher *model.Voucher) error
	GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.Voucher, error)
	MarkUsed(ctx context.Context, tx database.TxQuerier, id uuid.UUID, usedAt time.Time) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Voucher, error)
}

// TransactionRepositoryInterface defines the append-only transaction log.
type TransactionRepositoryInterface interface {
	Append(ctx context.Context, tx database.TxQuerier, entry *model.TransactionEntry) error
	SumByType(ctx context.Context, accountID uuid.UUID, txType model.TransactionType) (int64, error)
	CountByType(ctx context.Context, accountID uuid.UUID, txType model.TransactionType) (int64, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.TransactionEntry, error)
}

// ActivityReader lists recorded activities for a target.
type ActivityReader interface {
	ListByTarget(ctx context.Context, targetID string, limit int) ([]model.ActivityLog, error)
}

// Repositories bundles the stores a service may need. Unused fields may be nil.
type Repositories struct {
	Accounts     AccountRepositoryInterface
	Rewards      RewardRepositoryInterface
	Requests     RedeemRequestRepositoryInterface
	Vouchers     VoucherRepositoryInterface
	Transactions TransactionRepositoryInterface
	Activities   ActivityReader
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ActivityRecorder receives audit facts after a unit of work commits.
// Implementations may fail; callers treat recording as best-effort.
type ActivityRecorder interface {
	Record(ctx context.Context, activity model.Activity) error
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, model.Activity) error { return nil }

func orDefaults(recorder ActivityRecorder, clock Clock) (ActivityRecorder, Clock) {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return recorder, clock
}

// inTx runs fn as one unit of work. Any error rolls everything back.
func inTx(ctx context.Context, pool TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op once committed

	if err := fn(tx); err != nil {
		var iv *InvariantViolationError
		if errors.As(err, &iv) {
			log.Error().
				Err(err).
				Str("account_id", iv.AccountID.String()).
				Int64("points", iv.Points).
				Int64("highest_points", iv.HighestPoints).
				Str("tier", iv.Tier.String()).
				Msg("LEDGER INVARIANT VIOLATION: unit of work rolled back")
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// record hands an activity to the recorder without affecting the caller's result.
func record(ctx context.Context, recorder ActivityRecorder, activity model.Activity) {
	if err := recorder.Record(ctx, activity); err != nil {
		log.Warn().
			Err(err).
			Str("actor_id", activity.ActorID).
			Str("target_id", activity.TargetID).
			Msg("failed to record activity")
	}
}
