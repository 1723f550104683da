package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/internal/service"
	"github.com/fairyhunter13/loyalty-ledger/pkg/database"
)

const voucherColumns = `id, code, account_id, reward_id, status, redeemed_at, used_at`

// VoucherRepository provides data access for vouchers.
type VoucherRepository struct {
	pool PoolInterface
}

// NewVoucherRepository creates a new VoucherRepository.
func NewVoucherRepository(pool PoolInterface) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// Insert issues a voucher within a transaction.
func (r *VoucherRepository) Insert(ctx context.Context, tx database.TxQuerier, v *model.Voucher) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO vouchers (id, code, account_id, reward_id, status, redeemed_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.Code, v.AccountID, v.RewardID, string(v.Status), v.RedeemedAt)
	if err != nil {
		return fmt.Errorf("insert voucher: %w", err)
	}
	return nil
}

// GetForUpdate retrieves a voucher with a row lock.
// Returns service.ErrVoucherNotFound if the voucher doesn't exist.
func (r *VoucherRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.Voucher, error) {
	v, err := scanVoucher(tx.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrVoucherNotFound
		}
		return nil, fmt.Errorf("get voucher for update %s: %w", id, err)
	}
	return v, nil
}

// MarkUsed moves an active voucher to used. Returns service.ErrAlreadyUsed when it was not active.
func (r *VoucherRepository) MarkUsed(ctx context.Context, tx database.TxQuerier, id uuid.UUID, usedAt time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE vouchers SET status = 'used', used_at = $2 WHERE id = $1 AND status = 'active'`, id, usedAt)
	if err != nil {
		return fmt.Errorf("mark voucher %s used: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrAlreadyUsed
	}
	return nil
}

// ListByAccount returns an account's vouchers, newest first.
func (r *VoucherRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Voucher, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE account_id = $1 ORDER BY redeemed_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list vouchers for %s: %w", accountID, err)
	}
	vouchers, err := collect(rows, scanVoucher)
	if err != nil {
		return nil, fmt.Errorf("scan voucher: %w", err)
	}
	return vouchers, nil
}

func scanVoucher(row pgx.Row) (*model.Voucher, error) {
	var (
		v      model.Voucher
		status string
	)
	if err := row.Scan(&v.ID, &v.Code, &v.AccountID, &v.RewardID, &status, &v.RedeemedAt, &v.UsedAt); err != nil {
		return nil, err
	}
	v.Status = model.VoucherStatus(status)
	return &v, nil
}
