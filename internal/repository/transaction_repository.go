package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/pkg/database"
)

// TransactionRepository is the append-only transaction log.
// It has no update or delete; a trigger rejects both at the database.
type TransactionRepository struct {
	pool PoolInterface
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool PoolInterface) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Append writes one entry within the caller's transaction.
func (r *TransactionRepository) Append(ctx context.Context, tx database.TxQuerier, e *model.TransactionEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO transaction_log (id, account_id, type, amount, reward_id, description, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.AccountID, string(e.Type), e.Amount, e.RewardID, e.Description, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// SumByType totals the signed amounts of one type for an account.
func (r *TransactionRepository) SumByType(ctx context.Context, accountID uuid.UUID, txType model.TransactionType) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::BIGINT FROM transaction_log WHERE account_id = $1 AND type = $2`,
		accountID, string(txType)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum %s for %s: %w", txType, accountID, err)
	}
	return sum, nil
}

// CountByType counts entries of one type for an account.
func (r *TransactionRepository) CountByType(ctx context.Context, accountID uuid.UUID, txType model.TransactionType) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transaction_log WHERE account_id = $1 AND type = $2`,
		accountID, string(txType)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s for %s: %w", txType, accountID, err)
	}
	return n, nil
}

// ListByAccount returns the newest entries first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.TransactionEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, type, amount, reward_id, description, created_at
		 FROM transaction_log WHERE account_id = $1 ORDER BY created_at DESC, id LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", accountID, err)
	}
	entries, err := collect(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (*model.TransactionEntry, error) {
	var (
		e      model.TransactionEntry
		txType string
	)
	if err := row.Scan(&e.ID, &e.AccountID, &txType, &e.Amount, &e.RewardID, &e.Description, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Type = model.TransactionType(txType)
	return &e, nil
}
