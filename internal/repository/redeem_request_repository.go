package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/internal/service"
	"github.com/fairyhunter13/loyalty-ledger/pkg/database"
)

const requestColumns = `id, account_id, reward_id, points_reserved, status, voucher_id, processed_by, notes, created_at, processed_at`

// RedeemRequestRepository provides data access for deferred redemptions.
type RedeemRequestRepository struct {
	pool PoolInterface
}

// NewRedeemRequestRepository creates a new RedeemRequestRepository.
func NewRedeemRequestRepository(pool PoolInterface) *RedeemRequestRepository {
	return &RedeemRequestRepository{pool: pool}
}

// Insert stores a new pending request within a transaction.
func (r *RedeemRequestRepository) Insert(ctx context.Context, tx database.TxQuerier, req *model.RedeemRequest) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO redeem_requests (id, account_id, reward_id, points_reserved, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.AccountID, req.RewardID, req.PointsReserved, string(req.Status), req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert redeem request: %w", err)
	}
	return nil
}

// GetByID retrieves a request. Returns nil, nil if not found.
func (r *RedeemRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RedeemRequest, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM redeem_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get redeem request %s: %w", id, err)
	}
	return req, nil
}

// GetForUpdate retrieves a request with a row lock so two staff members cannot process it at once.
// Returns service.ErrRequestNotFound if the request doesn't exist.
func (r *RedeemRequestRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.RedeemRequest, error) {
	req, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM redeem_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrRequestNotFound
		}
		return nil, fmt.Errorf("get redeem request for update %s: %w", id, err)
	}
	return req, nil
}

// GetByVoucherID returns the request that issued a voucher, or nil, nil for instant vouchers.
func (r *RedeemRequestRepository) GetByVoucherID(ctx context.Context, tx database.TxQuerier, voucherID uuid.UUID) (*model.RedeemRequest, error) {
	req, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM redeem_requests WHERE voucher_id = $1`, voucherID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get redeem request by voucher %s: %w", voucherID, err)
	}
	return req, nil
}

// Resolve records a staff decision. The update only matches a pending row, so a
// second decision returns service.ErrAlreadyProcessed even without the row lock.
func (r *RedeemRequestRepository) Resolve(ctx context.Context, tx database.TxQuerier, req *model.RedeemRequest) error {
	tag, err := tx.Exec(ctx,
		`UPDATE redeem_requests
		 SET status = $2, voucher_id = $3, processed_by = $4, notes = $5, processed_at = $6
		 WHERE id = $1 AND status = 'pending'`,
		req.ID, string(req.Status), req.VoucherID, req.ProcessedBy, req.Notes, req.ProcessedAt)
	if err != nil {
		return fmt.Errorf("resolve redeem request %s: %w", req.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrAlreadyProcessed
	}
	return nil
}

// ListByAccount returns an account's requests, newest first.
func (r *RedeemRequestRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]model.RedeemRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM redeem_requests WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list redeem requests for %s: %w", accountID, err)
	}
	reqs, err := collect(rows, scanRequest)
	if err != nil {
		return nil, fmt.Errorf("scan redeem request: %w", err)
	}
	return reqs, nil
}

// ListPending returns the review queue, oldest first.
func (r *RedeemRequestRepository) ListPending(ctx context.Context) ([]model.RedeemRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM redeem_requests WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending redeem requests: %w", err)
	}
	reqs, err := collect(rows, scanRequest)
	if err != nil {
		return nil, fmt.Errorf("scan redeem request: %w", err)
	}
	return reqs, nil
}

func scanRequest(row pgx.Row) (*model.RedeemRequest, error) {
	var (
		req    model.RedeemRequest
		status string
	)
	err := row.Scan(&req.ID, &req.AccountID, &req.RewardID, &req.PointsReserved, &status,
		&req.VoucherID, &req.ProcessedBy, &req.Notes, &req.CreatedAt, &req.ProcessedAt)
	if err != nil {
		return nil, err
	}
	req.Status = model.RequestStatus(status)
	return &req, nil
}
