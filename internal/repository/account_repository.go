package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/internal/service"
	"github.com/fairyhunter13/loyalty-ledger/internal/tier"
	"github.com/fairyhunter13/loyalty-ledger/pkg/database"
)

const accountColumns = `id, points, highest_points, tier, tier_updated_at, created_at, updated_at`

// AccountRepository provides data access for accounts using pgx.
type AccountRepository struct {
	pool PoolInterface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool PoolInterface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Insert inserts a new account.
// Returns service.ErrAccountExists if the id is already taken.
func (r *AccountRepository) Insert(ctx context.Context, account *model.Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, points, highest_points, tier, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID, account.Points, account.HighestPoints, string(account.Tier), account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return service.ErrAccountExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID retrieves an account without locking it.
// Returns nil, nil if the account is not found.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return account, nil
}

// GetForUpdate retrieves an account with a row lock (SELECT FOR UPDATE).
// The lock is held until the transaction completes, serializing every balance change.
// Returns service.ErrAccountNotFound if the account doesn't exist.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.Account, error) {
	account, err := scanAccount(tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account for update %s: %w", id, err)
	}
	return account, nil
}

// UpdateBalance writes points, watermark and tier back.
// Must be called within a transaction after locking the row.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx database.TxQuerier, account *model.Account) error {
	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET points = $2, highest_points = $3, tier = $4, tier_updated_at = $5, updated_at = $6 WHERE id = $1`,
		account.ID, account.Points, account.HighestPoints, string(account.Tier), account.TierUpdatedAt, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update balance for %s: %w", account.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a        model.Account
		tierName string
	)
	if err := row.Scan(&a.ID, &a.Points, &a.HighestPoints, &tierName, &a.TierUpdatedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	// Stored verbatim; an unknown value surfaces later as an invariant violation.
	a.Tier = tier.Tier(tierName)
	return &a, nil
}
